package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty config gets name and development", func(t *testing.T) {
		cfg := ServiceConfig{}
		cfg.ApplyDefaults()
		if cfg.Name != "recpipe" {
			t.Errorf("expected 'recpipe', got %q", cfg.Name)
		}
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug logging in development, got %q", cfg.Logging.Level)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info logging, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := func() ServiceConfig {
		c := ServiceConfig{Name: "svc", Environment: "staging"}
		c.Logging.ApplyDefaults()
		return c
	}
	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
		errMsg string
	}{
		{"valid", func(*ServiceConfig) {}, ""},
		{"missing name", func(c *ServiceConfig) { c.Name = "" }, "config.name is required"},
		{"invalid environment", func(c *ServiceConfig) { c.Environment = "qa" }, "config.environment must be one of"},
		{"invalid logging", func(c *ServiceConfig) { c.Logging.Level = "loud" }, "config.logging"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Fatalf("expected error containing %q, got %v", tc.errMsg, err)
			}
		})
	}
}

type poolSection struct {
	Workers        int     `mapstructure:"workers"`
	InFlightFactor float64 `mapstructure:"in_flight_factor"`
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Pool          poolSection `mapstructure:"pool"`
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "recpipe.yml")

	yamlContent := `
name: recpipe
environment: staging
pool:
  workers: 3
  in_flight_factor: 1.5
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg testConfig
	if err := LoadConfig("recpipe", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := poolSection{Workers: 3, InFlightFactor: 1.5}
	if diff := cmp.Diff(want, cfg.Pool); diff != "" {
		t.Errorf("pool mismatch (-want +got):\n%s", diff)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment 'staging', got %q", cfg.Environment)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "recpipe.yml")
	if err := os.WriteFile(configPath, []byte("pool:\n  workers: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("RECPIPE_POOL_WORKERS", "8")
	t.Setenv("POOL_WORKERS", "99")

	var cfg testConfig
	if err := LoadConfig("recpipe", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pool.Workers != 8 {
		t.Errorf("expected prefixed env to win with 8, got %d", cfg.Pool.Workers)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("RECPIPE_POOL_IN_FLIGHT_FACTOR=2.5\n"), 0644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("RECPIPE_POOL_IN_FLIGHT_FACTOR") })

	var cfg testConfig
	if err := LoadConfig("recpipe", &cfg, WithEnvFile(envPath), WithSearchDirs(dir)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pool.InFlightFactor != 2.5 {
		t.Errorf("expected in_flight_factor 2.5 from env file, got %v", cfg.Pool.InFlightFactor)
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "recpipe.yml")
	if err := os.WriteFile(configPath, []byte("pool: [unclosed\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	var cfg testConfig
	err := LoadConfig("recpipe", &cfg, WithConfigFile(configPath))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestDiscover(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		lc    LoaderConfig
		want  Sources
	}{
		{
			name:  "service file beats generic names",
			files: []string{"config/config.yml", "recpipe.yml", ".env"},
			want:  Sources{ConfigFile: "recpipe.yml", EnvFile: ".env"},
		},
		{
			name:  "service env file first",
			files: []string{".env", "config/.env.recpipe"},
			want:  Sources{EnvFile: "config/.env.recpipe"},
		},
		{
			name:  "config dir fallback",
			files: []string{"config/config.yaml"},
			want:  Sources{ConfigFile: "config/config.yaml"},
		},
		{
			name:  "explicit paths kept",
			files: []string{"recpipe.yml"},
			lc:    LoaderConfig{ConfigFile: "a.yml", EnvFile: "b.env"},
			want:  Sources{ConfigFile: "a.yml", EnvFile: "b.env"},
		},
		{
			name: "nothing found",
			want: Sources{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := &mockFS{files: map[string]bool{}}
			for _, f := range tc.files {
				fs.files[f] = true
			}
			lc := tc.lc
			lc.FileSystem = fs
			lc.SearchDirs = []string{".", "config"}
			if diff := cmp.Diff(tc.want, Discover("recpipe", lc)); diff != "" {
				t.Errorf("sources mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestEnvPrefix(t *testing.T) {
	tests := map[string]string{
		"recpipe":        "RECPIPE_",
		"recpipe-worker": "RECPIPE_WORKER_",
	}
	for in, want := range tests {
		if got := EnvPrefix(in); got != want {
			t.Errorf("EnvPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnvKeyCandidates(t *testing.T) {
	if diff := cmp.Diff([]string{"workers"}, envKeyCandidates("WORKERS")); diff != "" {
		t.Errorf("single part (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"pool_workers", "pool.workers"}, envKeyCandidates("POOL_WORKERS")); diff != "" {
		t.Errorf("two parts (-want +got):\n%s", diff)
	}

	nested := envKeyCandidates("POOL_IN_FLIGHT_FACTOR")
	if len(nested) != 8 {
		t.Errorf("expected 8 candidates, got %d: %v", len(nested), nested)
	}
	found := false
	for _, v := range nested {
		if v == "pool.in_flight_factor" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected pool.in_flight_factor among %v", nested)
	}

	long := envKeyCandidates("A_B_C_D_E_F_G")
	if diff := cmp.Diff([]string{"a_b_c_d_e_f_g", "a.b_c_d_e_f_g"}, long); diff != "" {
		t.Errorf("long key (-want +got):\n%s", diff)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	WithFileSystem(&mockFS{})(&lc)
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	WithSearchDirs("/etc/recpipe")(&lc)
	if lc.FileSystem == nil || lc.ConfigFile != "/path/to/config.yml" || lc.EnvFile != "/path/to/.env" {
		t.Errorf("options not applied: %+v", lc)
	}
	if diff := cmp.Diff([]string{"/etc/recpipe"}, lc.SearchDirs); diff != "" {
		t.Errorf("search dirs (-want +got):\n%s", diff)
	}
}
