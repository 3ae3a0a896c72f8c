package sink

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/kbukum/recpipe/batch"
	"github.com/kbukum/recpipe/errors"
)

// Sink receives batch results as they are delivered.
type Sink interface {
	Write(ctx context.Context, r batch.Result) error
	Close() error
}

// JSONL writes one JSON record per line.
type JSONL struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	count  int
}

// NewJSONL writes to w. If w is an io.Closer it is closed by Close.
func NewJSONL(w io.Writer) *JSONL {
	s := &JSONL{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// CreateJSONL creates (or truncates) the file at path.
func CreateJSONL(path string) (*JSONL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Storage("create sink", err).WithDetail("path", path)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Storage("create sink", err).WithDetail("path", path)
	}
	return NewJSONL(f), nil
}

// Stdout writes to standard output, which is flushed but never closed.
func Stdout() *JSONL {
	return &JSONL{w: bufio.NewWriter(os.Stdout)}
}

// Write implements Sink.
func (s *JSONL) Write(_ context.Context, r batch.Result) error {
	line, err := json.Marshal(NewRecord(r))
	if err != nil {
		return errors.Internal(err).WithDetail("seq", r.Sequence)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return errors.Storage("write", io.ErrClosedPipe)
	}
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		return errors.Storage("write", err)
	}
	s.count++
	return nil
}

// Count returns the number of records written.
func (s *JSONL) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close flushes buffered records. It is safe to call more than once.
func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	err := s.w.Flush()
	s.w = nil
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Discard drops every result.
type Discard struct{}

func (Discard) Write(context.Context, batch.Result) error { return nil }
func (Discard) Close() error                             { return nil }

var (
	_ Sink = (*JSONL)(nil)
	_ Sink = Discard{}
)

// Drain writes every result from results to s until the channel closes.
// The first write error stops draining; remaining results are discarded
// so the producer never blocks.
func Drain(ctx context.Context, results <-chan batch.Result, s Sink) (int, error) {
	var (
		n        int
		firstErr error
	)
	for r := range results {
		if firstErr != nil {
			continue
		}
		if err := s.Write(ctx, r); err != nil {
			firstErr = err
			continue
		}
		n++
	}
	return n, firstErr
}
