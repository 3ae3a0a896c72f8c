package main

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/recpipe/batch"
	"github.com/kbukum/recpipe/component"
)

func TestReadRatings(t *testing.T) {
	in := `# comment
{"user":"u1","item":"a","rating":4.5}

{"user":"u1","item":"b"}
`
	ds, err := readRatings(strings.NewReader(in))
	if err != nil {
		t.Fatalf("readRatings: %v", err)
	}
	want := []component.Rating{
		{User: "u1", Item: "a", Value: 4.5},
		{User: "u1", Item: "b", Value: 1},
	}
	if diff := cmp.Diff(want, ds.Ratings); diff != "" {
		t.Fatalf("ratings mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRatings_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "\n# only comments\n", "no rows"},
		{"bad json", "{nope\n", "line 1"},
		{"missing item", "{\"user\":\"u1\"}\n", "user and item are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readRatings(strings.NewReader(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestReadRequests(t *testing.T) {
	in := `{"user":"u1"}
{"id":"r2","user":"u2"}
{"id":"raw","params":{"raw":[[1]]}}
`
	reqs, err := readRequests(strings.NewReader(in))
	if err != nil {
		t.Fatalf("readRequests: %v", err)
	}
	want := []batch.Request{
		{ID: "u1", Params: map[string]any{"query": map[string]any{"user": "u1"}}},
		{ID: "r2", Params: map[string]any{"query": map[string]any{"user": "u2"}}},
		{ID: "raw", Params: map[string]any{"raw": []any{[]any{float64(1)}}}},
	}
	if diff := cmp.Diff(want, reqs); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}

	if _, err := readRequests(strings.NewReader("{\"id\":\"x\"}\n")); err == nil {
		t.Fatal("expected error for a line with neither params nor user")
	}
}

func TestParseParams(t *testing.T) {
	file := `{"query":{"user":"u1"},"n":5}`
	tests := []struct {
		name string
		file string
		kvs  []string
		want map[string]any
	}{
		{"json value", "", []string{"raw=[[1,2]]"}, map[string]any{"raw": []any{[]any{float64(1), float64(2)}}}},
		{"plain string", "", []string{"query=u1"}, map[string]any{"query": "u1"}},
		{"value with equals", "", []string{"q=a=b"}, map[string]any{"q": "a=b"}},
		{"flag overrides file", "-", []string{"n=10"}, map[string]any{"query": map[string]any{"user": "u1"}, "n": float64(10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.file, tt.kvs, strings.NewReader(file))
			if err != nil {
				t.Fatalf("parseParams: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("params mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := parseParams("", []string{"novalue"}, nil); err == nil {
		t.Fatal("expected error for a param without =")
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Environment != "production" || cfg.Logging.Level != "info" {
		t.Errorf("unexpected service defaults %+v", cfg.ServiceConfig)
	}
	if cfg.Pool.Workers < 1 || cfg.Worker.Mode != "process" || cfg.Artifacts.Backend != "file" || cfg.Sink.Kind != "stdout" {
		t.Errorf("unexpected section defaults %+v", cfg)
	}

	cfg.Sink.Kind = "jsonl"
	cfg.Sink.Path = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "config.sink") {
		t.Fatalf("expected sink validation error, got %v", err)
	}
}
