// Package testutil provides helpers for tests and benchmarks: seeded vector
// generation, exact nearest-neighbor search for ground truth, and recall
// computation.
//
//	rng := testutil.NewRNG(42)
//	vectors := rng.UniformVectors(1000, 64)
//
//	exact := testutil.BruteForceSearch(vectors, query, 10, distance.Euclidean)
//	recall := testutil.ComputeRecall(exact, approximate)
package testutil
