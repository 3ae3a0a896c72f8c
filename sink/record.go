package sink

import (
	"github.com/kbukum/recpipe/batch"
	"github.com/kbukum/recpipe/errors"
)

// Record is the persisted form of one batch result.
type Record struct {
	JobID      string          `json:"job_id"`
	RequestID  string          `json:"request_id,omitempty"`
	Sequence   int             `json:"seq"`
	Status     string          `json:"status"`
	Outputs    map[string]any  `json:"outputs,omitempty"`
	Error      *errors.Payload `json:"error,omitempty"`
	Attempts   int             `json:"attempts"`
	Workers    []string        `json:"workers,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// Record statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// NewRecord converts r.
func NewRecord(r batch.Result) Record {
	rec := Record{
		JobID:      r.JobID,
		RequestID:  r.RequestID,
		Sequence:   r.Sequence,
		Status:     StatusOK,
		Outputs:    r.Outputs,
		Attempts:   r.Attempts,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		rec.Status = StatusError
		rec.Outputs = nil
		rec.Error = r.Err.ToPayload()
	}
	for _, a := range r.History {
		rec.Workers = append(rec.Workers, a.Worker)
	}
	return rec
}
