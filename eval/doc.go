// Package eval scores ranked recommendation lists against held-out
// relevant items: precision, recall, NDCG and reciprocal rank, each with
// an optional length cutoff.
package eval
