package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found")
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "not found" {
		t.Errorf("expected message 'not found', got %q", err.Message)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	for _, code := range []ErrorCode{ErrCodeTimeout, ErrCodeWorkerFailure, ErrCodeStorage} {
		if !New(code, "x").Retryable {
			t.Errorf("%s should be retryable", code)
		}
	}
	for _, code := range []ErrorCode{ErrCodeNodeExecution, ErrCodeInvalidOutput, ErrCodeCycle, ErrCodeAborted} {
		if New(code, "x").Retryable {
			t.Errorf("%s should not be retryable", code)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := NodeExecution("score", nil, fmt.Errorf("boom"))
	got := err.Error()
	if !strings.Contains(got, "NODE_EXECUTION") || !strings.Contains(got, "boom") {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestInvalidOutput(t *testing.T) {
	err := InvalidOutput("scores", fmt.Errorf("unsupported value: NaN"))
	if FamilyOf(err.Code) != FamilyNodeExecution {
		t.Errorf("unexpected family %q", FamilyOf(err.Code))
	}
	p := err.ToPayload()
	if p.Details["output"] != "scores" || !strings.Contains(p.Cause, "NaN") {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	sentinel := fmt.Errorf("sentinel")
	err := Internal(sentinel)
	if !stderrors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to find cause")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := New(ErrCodeInvalidGraph, "bad").WithDetail("a", 1).WithDetails(map[string]any{"b": 2})
	if diff := cmp.Diff(map[string]any{"a": 1, "b": 2}, err.Details); diff != "" {
		t.Fatalf("details mismatch (-want +got):\n%s", diff)
	}
}

func TestGraphBuildConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{"duplicate", DuplicateNode("a"), ErrCodeDuplicateNode},
		{"unknown", UnknownInput("b", "x", "node", "zz"), ErrCodeUnknownInput},
		{"unbound", UnboundInput("b", "x"), ErrCodeUnboundInput},
		{"mismatch", TypeMismatch("b", "x", "scores", "matrix"), ErrCodeTypeMismatch},
		{"cycle", Cycle([]string{"a", "b", "a"}), ErrCodeCycle},
		{"frozen", FrozenGraph("add_node"), ErrCodeFrozenGraph},
		{"invalid", InvalidGraph("no outputs"), ErrCodeInvalidGraph},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, tc.err.Code)
			}
			if Family(tc.err) != FamilyGraphBuild {
				t.Fatalf("expected graph_build family, got %q", Family(tc.err))
			}
		})
	}
}

func TestCycle_MessageNamesPath(t *testing.T) {
	err := Cycle([]string{"a", "b", "c", "a"})
	if !strings.Contains(err.Message, "a -> b -> c -> a") {
		t.Fatalf("unexpected message %q", err.Message)
	}
}

func TestTimeout_Details(t *testing.T) {
	err := Timeout("request", 2*time.Second)
	if err.Details["after"] != "2s" {
		t.Fatalf("expected after=2s, got %v", err.Details["after"])
	}
	if FamilyOf(err.Code) != FamilyTimeout {
		t.Fatalf("unexpected family %q", FamilyOf(err.Code))
	}
}

func TestInvalidInput_EmptyField(t *testing.T) {
	err := InvalidInput("", "bad")
	if _, ok := err.Details["field"]; ok {
		t.Error("expected no field detail")
	}
}

func TestPayload_RoundTrip(t *testing.T) {
	orig := NodeExecution("rank", []string{"scores<-node:score"}, fmt.Errorf("index out of range"))
	back := FromPayload(orig.ToPayload())

	if back.Code != orig.Code || back.Message != orig.Message {
		t.Fatalf("code/message mismatch: %v", back)
	}
	if back.Cause == nil || back.Cause.Error() != "index out of range" {
		t.Fatalf("expected cause to survive, got %v", back.Cause)
	}
	if NodeOf(back) != "rank" {
		t.Fatalf("expected node rank, got %q", NodeOf(back))
	}
}

func TestFromPayload_Nil(t *testing.T) {
	if FromPayload(nil) != nil {
		t.Fatal("expected nil")
	}
}

func TestFrom(t *testing.T) {
	if From(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	app := Aborted("fail-fast")
	if From(fmt.Errorf("wrapped: %w", app)) != app {
		t.Fatal("expected wrapped AppError to be returned")
	}
	if From(fmt.Errorf("plain")).Code != ErrCodeInternal {
		t.Fatal("expected plain error to become internal")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Cancelled("soft"))
	if !HasCode(err, ErrCodeCancelled) {
		t.Fatal("expected CANCELLED")
	}
	if HasCode(fmt.Errorf("x"), ErrCodeCancelled) {
		t.Fatal("plain error has no code")
	}
}

func TestFamily(t *testing.T) {
	if Family(nil) != "" {
		t.Fatal("expected empty family for nil")
	}
	if Family(fmt.Errorf("x")) != FamilyGeneral {
		t.Fatal("expected general family for plain error")
	}
	if Family(WorkerFailure("w1", nil)) != FamilyWorkerFailure {
		t.Fatal("expected worker_failure family")
	}
}

func TestNodeOf_Missing(t *testing.T) {
	if NodeOf(fmt.Errorf("x")) != "" {
		t.Fatal("expected empty node")
	}
	if NodeOf(Internal(nil)) != "" {
		t.Fatal("expected empty node for error without details")
	}
}

func TestIsAppError(t *testing.T) {
	if !IsAppError(NotFound("pipeline", "x")) {
		t.Fatal("expected AppError")
	}
	if IsAppError(fmt.Errorf("x")) {
		t.Fatal("plain error is not AppError")
	}
	if _, ok := AsAppError(fmt.Errorf("x")); ok {
		t.Fatal("expected AsAppError to fail")
	}
}
