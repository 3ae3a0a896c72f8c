// recpipe builds, trains and runs recommendation pipelines.
//
// Usage:
//
//	recpipe run -p knn.yaml --param 'query={"user":"u1"}'
//	recpipe train -p knn.yaml -r ratings.jsonl
//	recpipe recommend knn u1 u2 -n 10
//	recpipe batch knn --requests users.jsonl --workers 4 --sink jsonl:out.jsonl
//	recpipe version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "recpipe:", err)
		os.Exit(1)
	}
}
