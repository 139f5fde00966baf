package testutil

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/gannet-io/gannet/distance"
)

// SearchResult pairs a vector id with its distance to a query.
type SearchResult struct {
	ID       uint64
	Distance float32
}

// RNG is a seeded, thread-safe random source for test data.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates an RNG with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // test data only
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in [0, 1). Locks once per call.
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates vectors with values in [0, 1), sharing one backing
// array.
func (r *RNG) UniformVectors(num, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// GaussianVectors generates vectors with standard normal components.
func (r *RNG) GaussianVectors(num, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized vectors uniformly distributed on the
// hypersphere, the right shape for cosine and dot-product tests.
func (r *RNG) UnitVectors(num, dim int) [][]float32 {
	vectors := r.GaussianVectors(num, dim)
	for _, vec := range vectors {
		distance.NormalizeL2InPlace(vec)
	}
	return vectors
}

// UnitVector generates a single L2-normalized vector.
func (r *RNG) UnitVector(dim int) []float32 {
	return r.UnitVectors(1, dim)[0]
}

// ClusteredVectors generates vectors scattered around unit-vector centroids.
// Cluster assignment round-robins over the centroids; spread scales the
// Gaussian noise added per component.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)

	for i := range num {
		centroid := centroids[i%clusters]
		vec := data[i*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = centroid[j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
	}

	return vectors
}

// BruteForceSearch returns the exact k nearest vectors to query under dist,
// ascending. IDs are the vector indices.
func BruteForceSearch(vectors [][]float32, query []float32, k int, dist distance.Func) []SearchResult {
	results := make([]SearchResult, len(vectors))
	for i, v := range vectors {
		results[i] = SearchResult{ID: uint64(i), Distance: dist(query, v)}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// ComputeRecall computes recall@k of approximate against the ground truth.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))

	truthSet := make(map[uint64]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].ID] = struct{}{}
	}

	hits := 0
	for _, r := range approximate {
		if _, ok := truthSet[r.ID]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}
