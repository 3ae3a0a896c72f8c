package validation

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/recpipe/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("name", "")
	v.Required("other", "  ")
	v.Required("ok", "value")
	if len(v.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(v.Errors()))
	}
}

func TestValidatorIdentifier(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"", true},
		{"score", true},
		{"user-knn", true},
		{"items.scored", true},
		{"_private", true},
		{"9lives", false},
		{"has space", false},
	}
	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			v := New().Identifier("name", tc.value)
			if v.HasErrors() == tc.ok {
				t.Errorf("Identifier(%q) errors=%v, want ok=%v", tc.value, v.Errors(), tc.ok)
			}
		})
	}
}

func TestValidatorUnique(t *testing.T) {
	seen := map[string]bool{}
	v := New()
	v.Unique("nodes[0].name", "a", seen)
	v.Unique("nodes[1].name", "b", seen)
	v.Unique("nodes[2].name", "a", seen)
	want := FieldErrors{{Field: "nodes[2].name", Message: `duplicate "a"`}}
	if diff := cmp.Diff(want, v.Errors()); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidatorCheck(t *testing.T) {
	v := New()
	v.Check(true, "a", "never")
	v.Check(false, "outputs.top", "references unknown node %q", "rank")
	want := FieldErrors{{Field: "outputs.top", Message: `references unknown node "rank"`}}
	if diff := cmp.Diff(want, v.Errors()); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidatorValidate(t *testing.T) {
	if New().Validate() != nil {
		t.Fatal("expected nil without errors")
	}

	v := New().Required("name", "").Check(false, "k", "must be at least %d", 0)
	err := v.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", err.Code)
	}
	if err.Message != "name: is required; k: must be at least 0" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if _, ok := err.Details["fields"].([]FieldError); !ok {
		t.Errorf("expected field details, got %T", err.Details["fields"])
	}
}

func TestValidatorValidateAs(t *testing.T) {
	err := New().Required("outputs", "").ValidateAs(errors.ErrCodeInvalidGraph)
	if err == nil || err.Code != errors.ErrCodeInvalidGraph {
		t.Fatalf("expected INVALID_GRAPH, got %v", err)
	}
}

func TestFieldErrorsEmpty(t *testing.T) {
	if FieldErrors(nil).AppError(errors.ErrCodeInvalidInput) != nil {
		t.Fatal("expected nil for an empty list")
	}
	if got := FieldErrors(nil).String(); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

type poolSection struct {
	Workers        int     `mapstructure:"workers" validate:"gte=1"`
	InFlightFactor float64 `mapstructure:"in_flight_factor" validate:"gt=0"`
	Mode           string  `mapstructure:"mode" validate:"oneof=local process"`
	Endpoint       string  `mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Label          string  `mapstructure:"label" validate:"omitempty,alpha"`
}

type appConfig struct {
	Pool poolSection `mapstructure:"pool"`
}

func TestStructValidateValid(t *testing.T) {
	cfg := appConfig{Pool: poolSection{Workers: 2, InFlightFactor: 2, Mode: "local"}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	cfg := appConfig{Pool: poolSection{Workers: 0, InFlightFactor: 0, Mode: "remote"}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	fields := appErr.Details["fields"].([]FieldError)
	got := make([]string, len(fields))
	for i, f := range fields {
		got[i] = f.Field
	}
	want := []string{"pool.workers", "pool.in_flight_factor", "pool.mode"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field paths mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(appErr.Message, "pool.workers: must be >= 1") {
		t.Errorf("unexpected message %q", appErr.Message)
	}
}

func TestStructValidateMessages(t *testing.T) {
	cfg := appConfig{Pool: poolSection{Workers: 1, InFlightFactor: 1, Mode: "local", Endpoint: "nohost", Label: "x1"}}
	err := Validate(cfg)
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	want := "pool.endpoint: must be host:port; pool.label: failed alpha"
	if appErr.Message != want {
		t.Errorf("message = %q, want %q", appErr.Message, want)
	}
}

func TestStructValidateNotStruct(t *testing.T) {
	if !errors.HasCode(Validate(42), errors.ErrCodeInvalidInput) {
		t.Fatal("expected INVALID_INPUT for a non-struct")
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"InFlightFactor": "in_flight_factor",
		"Workers":        "workers",
		"k":              "k",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
