package queue

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinQueueOrdering(t *testing.T) {
	q := NewMin(8)
	for _, d := range []float32{5, 1, 3, 2, 4} {
		q.Push(Item{Node: uint32(d), Dist: d})
	}

	require.Equal(t, 5, q.Len())

	var got []float32
	for q.Len() > 0 {
		it, ok := q.Pop()
		require.True(t, ok)
		got = append(got, it.Dist)
	}

	assert.Equal(t, []float32{1, 2, 3, 4, 5}, got)
}

func TestMaxQueueOrdering(t *testing.T) {
	q := NewMax(8)
	for _, d := range []float32{5, 1, 3, 2, 4} {
		q.Push(Item{Node: uint32(d), Dist: d})
	}

	var got []float32
	for q.Len() > 0 {
		it, _ := q.Pop()
		got = append(got, it.Dist)
	}

	assert.Equal(t, []float32{5, 4, 3, 2, 1}, got)
}

func TestPopEmpty(t *testing.T) {
	q := NewMin(0)

	_, ok := q.Pop()
	assert.False(t, ok)

	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestPeek(t *testing.T) {
	q := NewMax(4)
	q.Push(Item{Node: 1, Dist: 1})
	q.Push(Item{Node: 2, Dist: 9})
	q.Push(Item{Node: 3, Dist: 5})

	top, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, uint32(2), top.Node)
	assert.Equal(t, 3, q.Len(), "peek must not remove")
}

func TestPushBounded(t *testing.T) {
	q := NewMax(4)

	// Fills up to the bound.
	assert.True(t, q.PushBounded(Item{Node: 1, Dist: 10}, 3))
	assert.True(t, q.PushBounded(Item{Node: 2, Dist: 20}, 3))
	assert.True(t, q.PushBounded(Item{Node: 3, Dist: 30}, 3))
	require.Equal(t, 3, q.Len())

	// Worse than the current worst: rejected.
	assert.False(t, q.PushBounded(Item{Node: 4, Dist: 40}, 3))
	assert.Equal(t, 3, q.Len())

	// Better: evicts node 3 (dist 30).
	assert.True(t, q.PushBounded(Item{Node: 5, Dist: 5}, 3))
	require.Equal(t, 3, q.Len())

	worst, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, uint32(2), worst.Node)

	assert.False(t, q.PushBounded(Item{Node: 6, Dist: 1}, 0))
}

func TestMin(t *testing.T) {
	t.Run("MinHeap", func(t *testing.T) {
		q := NewMin(4)
		q.Push(Item{Node: 1, Dist: 3})
		q.Push(Item{Node: 2, Dist: 1})

		it, ok := q.Min()
		require.True(t, ok)
		assert.Equal(t, uint32(2), it.Node)
	})

	t.Run("MaxHeapScan", func(t *testing.T) {
		q := NewMax(4)
		q.Push(Item{Node: 1, Dist: 3})
		q.Push(Item{Node: 2, Dist: 1})
		q.Push(Item{Node: 3, Dist: 7})

		it, ok := q.Min()
		require.True(t, ok)
		assert.Equal(t, uint32(2), it.Node)
	})

	t.Run("Empty", func(t *testing.T) {
		q := NewMin(0)
		_, ok := q.Min()
		assert.False(t, ok)
	})
}

func TestReset(t *testing.T) {
	q := NewMin(4)
	q.Push(Item{Node: 1, Dist: 1})
	q.Push(Item{Node: 2, Dist: 2})

	q.Reset()
	assert.Equal(t, 0, q.Len())

	q.Push(Item{Node: 3, Dist: 3})
	it, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(3), it.Node)
}

func TestRandomizedAgainstSort(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 20; round++ {
		n := rng.Intn(200) + 1
		dists := make([]float64, n)

		q := NewMin(n)
		for i := 0; i < n; i++ {
			d := rng.Float32()
			dists[i] = float64(d)
			q.Push(Item{Node: uint32(i), Dist: d})
		}

		sort.Float64s(dists)

		for i := 0; i < n; i++ {
			it, ok := q.Pop()
			require.True(t, ok)
			assert.InDelta(t, dists[i], float64(it.Dist), 1e-6)
		}
	}
}

func BenchmarkPushPop(b *testing.B) {
	q := NewMin(1024)
	rng := rand.New(rand.NewSource(42))

	dists := make([]float32, 1024)
	for i := range dists {
		dists[i] = rng.Float32()
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		q.Reset()
		for j, d := range dists {
			q.Push(Item{Node: uint32(j), Dist: d})
		}
		for q.Len() > 0 {
			q.Pop()
		}
	}
}
