package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem is the slice of the filesystem the loader touches.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

type osFS struct{}

func (osFS) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (osFS) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Sources are the files a load reads. Empty fields are skipped.
type Sources struct {
	ConfigFile string
	EnvFile    string
}

// LoaderConfig holds the loader dependencies and explicit file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	SearchDirs []string
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem replaces the filesystem used for discovery.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file; discovery is skipped.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit dotenv file; discovery is skipped.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithSearchDirs replaces the directories searched for config and dotenv files.
func WithSearchDirs(dirs ...string) LoaderOption {
	return func(lc *LoaderConfig) { lc.SearchDirs = dirs }
}

// DefaultSearchDirs lists the working directory, ./config and the user
// config directory for the service, in that order.
func DefaultSearchDirs(serviceName string) []string {
	dirs := []string{".", "config"}
	if home, err := os.UserConfigDir(); err == nil && home != "" {
		dirs = append(dirs, filepath.Join(home, serviceName))
	}
	return dirs
}

// Discover resolves the config and dotenv files for a service. Explicit
// paths are returned as given; otherwise the first existing candidate in
// the search directories wins.
func Discover(serviceName string, lc LoaderConfig) Sources {
	fs := lc.FileSystem
	if fs == nil {
		fs = osFS{}
	}
	dirs := lc.SearchDirs
	if dirs == nil {
		dirs = DefaultSearchDirs(serviceName)
	}

	src := Sources{ConfigFile: lc.ConfigFile, EnvFile: lc.EnvFile}
	if src.ConfigFile == "" {
		src.ConfigFile = firstExisting(fs, dirs,
			serviceName+".yml", serviceName+".yaml", "config.yml", "config.yaml")
	}
	if src.EnvFile == "" {
		src.EnvFile = firstExisting(fs, dirs, ".env."+serviceName, ".env")
	}
	return src
}

// firstExisting walks names in priority order, trying every directory for
// each name before moving to the next.
func firstExisting(fs FileSystem, dirs []string, names ...string) string {
	for _, name := range names {
		for _, dir := range dirs {
			p := filepath.Join(dir, name)
			if fs.Exists(p) {
				return p
			}
		}
	}
	return ""
}

// LoadConfig fills cfg from, in increasing precedence, the YAML config file,
// the dotenv file and environment variables carrying the service prefix
// (RECPIPE_ for "recpipe"). A missing file is not an error; an unreadable
// one is.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = osFS{}
	}
	return load(serviceName, cfg, Discover(serviceName, lc), lc.FileSystem)
}

func load(serviceName string, cfg interface{}, src Sources, fs FileSystem) error {
	v := viper.New()

	if src.ConfigFile != "" && fs.Exists(src.ConfigFile) {
		v.SetConfigFile(src.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", src.ConfigFile, err)
		}
	}

	// dotenv never overrides variables already present in the process.
	if src.EnvFile != "" && fs.Exists(src.EnvFile) {
		if err := fs.LoadEnv(src.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", src.EnvFile, err)
		}
	}
	bindPrefixedEnv(v, EnvPrefix(serviceName))

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config for %s: %w", serviceName, err)
	}
	return nil
}

// EnvPrefix returns the environment variable prefix for a service name:
// "recpipe" becomes "RECPIPE_".
func EnvPrefix(serviceName string) string {
	p := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(serviceName))
	return p + "_"
}

// bindPrefixedEnv sets every prefixed variable under each key it could
// name. Underscores are ambiguous (POOL_IN_FLIGHT_FACTOR may be
// pool.in_flight_factor or pool.in.flight_factor), so all splits are set and
// the decoder picks the one that matches a field.
func bindPrefixedEnv(v *viper.Viper, prefix string) {
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.TrimPrefix(name, prefix)
		if key == "" {
			continue
		}
		for _, k := range envKeyCandidates(key) {
			v.Set(k, value)
		}
	}
}

// maxEnvKeyParts bounds the 2^(n-1) split enumeration.
const maxEnvKeyParts = 6

// envKeyCandidates lists the config keys an env key may name, flattest
// first:
//
//	POOL_WORKERS -> [pool_workers, pool.workers]
func envKeyCandidates(envKey string) []string {
	parts := strings.Split(strings.ToLower(envKey), "_")
	if len(parts) == 1 {
		return parts
	}
	if len(parts) > maxEnvKeyParts {
		flat := strings.Join(parts, "_")
		return []string{flat, parts[0] + "." + strings.Join(parts[1:], "_")}
	}

	gaps := len(parts) - 1
	out := make([]string, 0, 1<<gaps)
	for mask := 0; mask < 1<<gaps; mask++ {
		var b strings.Builder
		b.WriteString(parts[0])
		for i := 1; i < len(parts); i++ {
			if mask&(1<<(i-1)) != 0 {
				b.WriteByte('.')
			} else {
				b.WriteByte('_')
			}
			b.WriteString(parts[i])
		}
		out = append(out, b.String())
	}
	return out
}
