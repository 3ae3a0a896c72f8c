package batch

import (
	"time"

	"github.com/kbukum/recpipe/errors"
)

// MaxAttempts is how many times a request may be sent to a worker. Only
// worker failures and request timeouts earn the second attempt.
const MaxAttempts = 2

// Delivery selects the order in which results are streamed.
type Delivery int

const (
	// InOrder delivers results in submission order.
	InOrder Delivery = iota
	// AsCompleted delivers each result as soon as it resolves.
	AsCompleted
)

func (d Delivery) String() string {
	if d == AsCompleted {
		return "as_completed"
	}
	return "in_order"
}

// CancelMode selects what happens to dispatched work on cancellation.
// Unsent work is dropped in both modes.
type CancelMode int

const (
	// Soft lets dispatched requests finish and delivers their results.
	Soft CancelMode = iota
	// Hard resolves dispatched requests as CANCELLED at once and discards
	// their late results.
	Hard
)

// Policy controls how a job completes.
type Policy struct {
	// FailFast aborts the job on the first failed request.
	FailFast bool
	Delivery Delivery
	// RequestTimeout and JobTimeout override the pool defaults when set.
	RequestTimeout time.Duration
	JobTimeout     time.Duration
}

func (p Policy) withDefaults(cfg Config) Policy {
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = cfg.RequestTimeout
	}
	if p.JobTimeout <= 0 {
		p.JobTimeout = cfg.JobTimeout
	}
	return p
}

// Request is one query of a job.
type Request struct {
	// ID is an optional caller identifier echoed in the result.
	ID     string         `json:"id,omitempty"`
	Params map[string]any `json:"params"`
}

// Job is an ordered sequence of requests run against the pool's pipeline.
type Job struct {
	// ID defaults to a random UUID.
	ID       string
	Requests []Request
	Policy   Policy
}

// Attempt records one send of a request to a worker.
type Attempt struct {
	Worker   string           `json:"worker"`
	Code     errors.ErrorCode `json:"code,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// Result is the outcome of one request. Exactly one of Outputs and Err is
// meaningful.
type Result struct {
	JobID     string           `json:"job_id"`
	RequestID string           `json:"request_id,omitempty"`
	Sequence  int              `json:"seq"`
	Outputs   map[string]any   `json:"outputs,omitempty"`
	Err       *errors.AppError `json:"error,omitempty"`
	Attempts  int              `json:"attempts"`
	History   []Attempt        `json:"history,omitempty"`
	Duration  time.Duration    `json:"duration"`
}

// OK reports whether the request succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Status is the job-level outcome.
type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusPartialFailure Status = "partial_failure"
	StatusAborted        Status = "aborted"
)

// Abort reasons.
const (
	ReasonFailFast    = "fail_fast"
	ReasonCancelled   = "cancelled"
	ReasonTimeout     = "timeout"
	ReasonShutdown    = "shutdown"
	ReasonUnavailable = "unavailable"
)

// Report summarizes a finished job. Results are indexed by sequence.
type Report struct {
	JobID     string        `json:"job_id"`
	Status    Status        `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Results   []Result      `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Failures returns the failed results in sequence order.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}
