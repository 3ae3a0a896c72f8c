// Package dag builds and executes recommender pipelines: directed acyclic
// graphs of components wired slot by slot.
//
// A Builder collects parameters, nodes and output declarations and is
// frozen by Finalize, which validates bindings and types and caches a
// topological order (Kahn's algorithm, ties broken by insertion order).
// The resulting Pipeline is immutable.
//
// An Executor evaluates only the nodes the declared outputs depend on,
// each at most once per run, memoizing values in a fresh RunContext.
// Node middleware adds tracing, metrics and logging:
//
//	exec := dag.NewExecutor(
//	    dag.WithLogger(logger.Get("dag")),
//	    dag.WithTracing(observability.SpanNodeRun),
//	)
//	res, err := exec.Run(ctx, p, map[string]any{"user": "u1"})
//
// Pipelines can also be declared in YAML or JSON, validated against an
// embedded JSON schema, composed through includes and built with a
// component.Registry. A Blueprint carries a built pipeline's definition
// and trained node states so worker processes can rebuild it.
package dag
