package worker

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/errors"
)

// Kind identifies a frame.
type Kind string

const (
	KindInit      Kind = "init"
	KindReady     Kind = "ready"
	KindWork      Kind = "work"
	KindResult    Kind = "result"
	KindHeartbeat Kind = "heartbeat"
	KindShutdown  Kind = "shutdown"
	KindAck       Kind = "ack"
	KindError     Kind = "error"
)

// MaxFrameSize bounds a single frame body.
const MaxFrameSize = 64 << 20

// ErrFrameTooLarge is returned for frames above MaxFrameSize.
var ErrFrameTooLarge = stderrors.New("worker: frame too large")

// Frame is one message on the worker wire. Exactly one payload field is
// set, depending on Kind.
type Frame struct {
	Kind   Kind            `json:"kind"`
	Worker string          `json:"worker,omitempty"`
	Init   *Init           `json:"init,omitempty"`
	Work   *WorkUnit       `json:"work,omitempty"`
	Result *WorkResult     `json:"result,omitempty"`
	Error  *errors.Payload `json:"error,omitempty"`
}

// Init is the first frame a worker receives.
type Init struct {
	WorkerID  string         `json:"worker_id"`
	Blueprint *dag.Blueprint `json:"blueprint"`
	// Heartbeat is the interval between heartbeat frames.
	Heartbeat time.Duration `json:"heartbeat"`
}

// WorkUnit is one query sent to a worker.
type WorkUnit struct {
	Job      string         `json:"job"`
	Sequence int            `json:"seq"`
	Attempt  int            `json:"attempt"`
	Params   map[string]any `json:"params"`
}

// WorkResult answers one WorkUnit, correlated by Sequence. Error is set
// when the pipeline run failed.
type WorkResult struct {
	Sequence int             `json:"seq"`
	Outputs  map[string]any  `json:"outputs,omitempty"`
	Error    *errors.Payload `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// WriteFrame encodes f as a 4-byte big-endian length followed by its JSON
// body, in a single write. Nothing is written when f does not encode.
func WriteFrame(w io.Writer, f *Frame) error {
	buf, err := encodeFrame(f)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// encodeFrame returns the length-prefixed wire form of f.
func encodeFrame(f *Frame) ([]byte, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("worker: encoding %s frame: %w", f.Kind, err)
	}
	if len(body) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	return buf, nil
}

// ReadFrame decodes the next frame. A clean end of stream between frames
// is io.EOF; a stream cut inside a frame is io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) (*Frame, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	var f Frame
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("worker: decoding frame: %w", err)
	}
	return &f, nil
}

// frameWriter serializes writes from the serve loop and the heartbeat.
type frameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (fw *frameWriter) write(f *Frame) error {
	buf, err := encodeFrame(f)
	if err != nil {
		return err
	}
	return fw.writeEncoded(buf)
}

func (fw *frameWriter) writeEncoded(buf []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	_, err := fw.w.Write(buf)
	return err
}
