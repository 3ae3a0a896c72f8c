// Package sink delivers batch results to their destination: a JSON-lines
// file, standard output, or a redis stream.
//
//	s, err := sink.Open(ctx, sink.Config{Kind: sink.KindJSONL, Path: "out.jsonl"}, log)
//	n, err := sink.Drain(ctx, handle.Results(), s)
package sink
