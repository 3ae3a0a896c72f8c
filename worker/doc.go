// Package worker implements the wire protocol between the batch pool and
// its workers, the worker-side serve loop and the spawners that host
// workers as goroutines or child processes.
//
// Frames are a 4-byte big-endian length followed by a JSON body:
//
//	parent                     worker
//	  init{blueprint}  ──────▶
//	                   ◀──────  ready
//	  work{seq,params} ──────▶
//	                   ◀──────  heartbeat ...
//	                   ◀──────  result{seq,outputs|error}
//	  shutdown         ──────▶
//	                   ◀──────  ack
//
// A worker runs one unit at a time. The parent treats end of stream,
// heartbeat silence and request deadlines as a lost worker and kills it.
package worker
