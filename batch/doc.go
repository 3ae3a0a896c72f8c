// Package batch runs many independent pipeline queries across a pool of
// worker processes.
//
// A Pool owns a fixed number of worker slots, each a suture service that
// holds one worker built from the pool's blueprint. A crashed or timed-out
// worker is killed and its slot restarted with a fresh one. Jobs are
// submitted as ordered request lists:
//
//	h, err := pool.Submit(ctx, batch.Job{Requests: reqs, Policy: batch.Policy{FailFast: true}})
//	for r := range h.Results() {
//	    ...
//	}
//	report := h.Wait()
//
// Requests get sequence numbers 0..N-1 at submission. Dispatch holds a
// pool-wide bulkhead slot per request until it resolves, which bounds the
// number of requests in flight. A request whose worker is lost or times
// out is sent once more; a second failure, like any node error, is final.
// The Collector restores submission order for in-order delivery.
package batch
