package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/kbukum/recpipe/batch"
	"github.com/kbukum/recpipe/components"
	"github.com/kbukum/recpipe/eval"
	"github.com/kbukum/recpipe/sink"
)

// measuringSink scores each result's list against the truth for its
// request id before passing the result on. Failed requests and
// unreadable outputs are measured as empty lists.
type measuringSink struct {
	sink.Sink
	acc    *eval.Accumulator
	truth  map[string]eval.Set
	output string
}

func newMeasuringSink(next sink.Sink, truth map[string]eval.Set, output string, k int) (*measuringSink, error) {
	acc, err := eval.NewAccumulator(k)
	if err != nil {
		return nil, err
	}
	return &measuringSink{Sink: next, acc: acc, truth: truth, output: output}, nil
}

func (m *measuringSink) Write(ctx context.Context, r batch.Result) error {
	if rel, ok := m.truth[r.RequestID]; ok {
		var ids []string
		if r.OK() {
			ids, _ = components.ItemIDs(r.Outputs[m.output])
		}
		m.acc.Measure(r.RequestID, ids, rel)
	}
	return m.Sink.Write(ctx, r)
}

func (m *measuringSink) Summary() eval.Summary {
	return m.acc.Summary()
}

func printReport(w io.Writer, rep *batch.Report) {
	fmt.Fprintf(w, "job %s %s", rep.JobID, rep.Status)
	if rep.Reason != "" {
		fmt.Fprintf(w, " (%s)", rep.Reason)
	}
	fmt.Fprintf(w, ": %d requests, %d ok, %d failed in %s\n",
		len(rep.Results), rep.Succeeded, rep.Failed, rep.Duration.Round(time.Millisecond))

	for _, r := range rep.Failures() {
		id := r.RequestID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "  seq %d (%s): %v\n", r.Sequence, id, r.Err)
	}
}

func printMetrics(w io.Writer, s eval.Summary) {
	fmt.Fprintf(w, "metrics (k=%d, %d lists)\n", s.K, s.Lists)
	for _, name := range s.Names() {
		v := s.Mean[name]
		if math.IsNaN(v) {
			v = 0
		}
		fmt.Fprintf(w, "  %-11s %.4f\n", name, v)
	}
}
