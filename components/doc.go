// Package components provides the reference pipeline stages: a small
// matrix toolkit (rating-matrix, row-sum, top-k) and a recommender stack
// (history, candidates, popular, user-knn, top-n).
//
// Trainable components keep their training ratings and snapshot them, so
// a pipeline trained once can be saved as a blueprint and rebuilt by
// workers with identical results.
//
// A typical recommender definition:
//
//	name: knn
//	params:
//	  - {name: query, type: query}
//	nodes:
//	  - {name: history, component: history, inputs: {query: {param: query}}}
//	  - {name: candidates, component: candidates, inputs: {query: {node: history}}}
//	  - name: score
//	    component: user-knn
//	    config: {max_nbrs: 20, min_nbrs: 2}
//	    inputs: {query: {node: history}, items: {node: candidates}}
//	  - {name: rank, component: top-n, config: {n: 10}, inputs: {items: {node: score}}}
//	outputs:
//	  recommendations: rank
package components
