// Package testutil provides test helpers and mock components for the
// recpipe/dag package.
//
// Example:
//
//	func TestMyPipeline(t *testing.T) {
//	    load := testutil.NewMock("matrix", matrix, nil)
//	    score := testutil.NewMock("scores", scores, nil, testutil.In("m", "matrix"))
//	    p := testutil.NewGraphBuilder("demo").
//	        Node("load", load, nil).
//	        Node("score", score, map[string]dag.Source{"m": dag.Node("load")}).
//	        Output("score").
//	        MustBuild()
//
//	    result, err := dag.Run(context.Background(), p, nil)
//	    // ... assertions
//	}
package testutil
