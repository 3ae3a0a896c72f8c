// Package resilience provides the fault-tolerance primitives the batch pool
// is built on.
//
//   - Bulkhead: bounds concurrently held slots. The pool holds one per
//     in-flight request, so dispatch blocks once the window is full.
//   - Retry: retries an operation with exponential backoff and jitter.
//     Worker spawns go through it.
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "dispatch", MaxConcurrent: 8})
//	if err := bh.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer bh.Release()
package resilience
