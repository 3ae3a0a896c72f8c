package resilience

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when releasing a slot nobody holds.
var ErrNotAcquired = errors.New("bulkhead release without acquire")

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of slots held at once.
	MaxConcurrent int
	// OnAcquire is called when a slot is acquired.
	OnAcquire func(name string)
	// OnRelease is called when a slot is released.
	OnRelease func(name string)
}

// Bulkhead bounds the number of concurrently held slots. The batch pool
// holds one slot per dispatched request, from send until the request is
// resolved, which gives dispatch its backpressure.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}

	mu   sync.Mutex
	peak int
}

// NewBulkhead creates a new bulkhead. A non-positive MaxConcurrent means 10.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.mu.Lock()
	if n := len(b.sem); n > b.peak {
		b.peak = n
	}
	b.mu.Unlock()
	if b.config.OnAcquire != nil {
		b.config.OnAcquire(b.config.Name)
	}
	return nil
}

// Release returns a slot. Each successful acquire must be released exactly
// once; releasing an empty bulkhead returns ErrNotAcquired.
func (b *Bulkhead) Release() error {
	select {
	case <-b.sem:
	default:
		return ErrNotAcquired
	}
	if b.config.OnRelease != nil {
		b.config.OnRelease(b.config.Name)
	}
	return nil
}

// InUse returns the number of slots currently held.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}

// Peak returns the highest number of slots held at once.
func (b *Bulkhead) Peak() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}
