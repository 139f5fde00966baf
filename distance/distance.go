// Package distance provides the distance-metric contract used by the index.
// Kernels are backed by github.com/viterin/vek, which dispatches to SIMD
// (AVX2 on x86-64) when available and falls back to pure Go otherwise.
package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/viterin/vek/vek32"
)

// Func is a function type for distance calculation. Implementations must be
// commutative and non-negative for true metrics; pseudometrics (Cosine, Dot)
// may return negative values and violate the identity property. Callers are
// responsible for passing vectors of equal length.
type Func func(a, b []float32) float32

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	return vek32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two
// vectors. Cheaper than Euclidean and induces the same ordering.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Euclidean calculates the true (square-rooted) L2 distance between two
// vectors.
func Euclidean(a, b []float32) float32 {
	return vek32.Distance(a, b)
}

// InnerProduct calculates the negated dot product, so that a larger dot
// product yields a smaller distance. Not a metric: values may be negative.
func InnerProduct(a, b []float32) float32 {
	return -vek32.Dot(a, b)
}

// Cosine calculates the cosine distance 1 - cos(a, b). Returns 1 for
// zero-norm inputs. Not a metric: the triangle inequality does not hold.
func Cosine(a, b []float32) float32 {
	dot := vek32.Dot(a, b)
	na := vek32.Dot(a, a)
	nb := vek32.Dot(b, b)
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/float32(math.Sqrt(float64(na)*float64(nb)))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := vek32.Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(float64(norm2)))
	vek32.MulNumber_Inplace(v, inv)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	// MetricEuclidean is the true L2 distance, sqrt(sum((a-b)^2)).
	MetricEuclidean Metric = iota
	// MetricSquaredL2 is the squared L2 distance; same ordering as
	// Euclidean without the square root.
	MetricSquaredL2
	// MetricCosine is 1 - cosine similarity.
	MetricCosine
	// MetricDot is the negated inner product.
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "euclidean"
	case MetricSquaredL2:
		return "squared-l2"
	case MetricCosine:
		return "cosine"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// ParseMetric resolves a metric from its string name. Used by CLI flags and
// snapshot headers.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "squared-l2", "l2-squared", "squaredl2":
		return MetricSquaredL2, nil
	case "cosine":
		return MetricCosine, nil
	case "dot", "inner-product", "ip":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unknown distance metric %q", s)
	}
}

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricEuclidean:
		return Euclidean, nil
	case MetricSquaredL2:
		return SquaredL2, nil
	case MetricCosine:
		return Cosine, nil
	case MetricDot:
		return InnerProduct, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
