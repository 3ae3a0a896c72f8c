package batch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func seqs(rs []Result) []int {
	out := make([]int, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Sequence)
	}
	return out
}

func TestCollector(t *testing.T) {
	tests := []struct {
		name     string
		delivery Delivery
		n        int
		adds     []int
		want     [][]int
		complete bool
	}{
		{
			name: "in order restores submission order",
			n:    4, adds: []int{2, 0, 3, 1},
			want:     [][]int{{}, {0}, {}, {1, 2, 3}},
			complete: true,
		},
		{
			name: "in order ignores duplicates and strangers",
			n:    2, adds: []int{1, 1, 7, -1, 0},
			want:     [][]int{{}, {}, {}, {}, {0, 1}},
			complete: true,
		},
		{
			name:     "as completed passes through",
			delivery: AsCompleted,
			n:        3, adds: []int{2, 0, 2},
			want: [][]int{{2}, {0}, {}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCollector(tc.n, tc.delivery)
			for i, seq := range tc.adds {
				got := seqs(c.Add(Result{Sequence: seq}))
				if diff := cmp.Diff(tc.want[i], got); diff != "" {
					t.Fatalf("add %d (seq %d) mismatch (-want +got):\n%s", i, seq, diff)
				}
			}
			if c.Complete() != tc.complete {
				t.Fatalf("Complete() = %v, want %v", c.Complete(), tc.complete)
			}
		})
	}
}

func TestReportFailures(t *testing.T) {
	r := &Report{Results: []Result{{Sequence: 0}, {Sequence: 1, Err: nil}}}
	if len(r.Failures()) != 0 {
		t.Fatal("expected no failures")
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Workers < 1 || cfg.InFlightFactor != 2 || cfg.capacity() != 2*cfg.Workers {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	cfg.RequestTimeout = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected negative timeout to fail validation")
	}
}

func TestPolicyDefaults(t *testing.T) {
	cfg := Config{RequestTimeout: 3, JobTimeout: 9}
	got := Policy{RequestTimeout: 1}.withDefaults(cfg)
	if got.RequestTimeout != 1 || got.JobTimeout != 9 {
		t.Fatalf("unexpected policy %+v", got)
	}
}
