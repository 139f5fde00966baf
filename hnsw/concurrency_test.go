package hnsw

import (
	"context"
	"sync"
	"testing"

	"github.com/gannet-io/gannet/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentInsertAndSearch hammers the graph with parallel writers and
// readers. Mainly a race-detector target; the assertions are sanity floor.
func TestConcurrentInsertAndSearch(t *testing.T) {
	ctx := context.Background()

	g, err := New(func(o *Options) {
		o.Dimension = 16
		o.RandomSeed = int64Ptr(42)
	})
	require.NoError(t, err)

	vecs := testutil.NewRNG(42).UniformVectors(1200, 16)

	// Seed the graph so searches have something to chew on from the start.
	for i := range 200 {
		require.NoError(t, g.Insert(ctx, ID(i), vecs[i]))
	}

	var wg sync.WaitGroup

	const writers = 4
	perWriter := 1000 / writers

	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := 200 + w*perWriter
			for i := start; i < start+perWriter; i++ {
				assert.NoError(t, g.Insert(ctx, ID(i), vecs[i]))
			}
		}()
	}

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				results, err := g.KNNSearch(ctx, vecs[i%200], 5, 40)
				if assert.NoError(t, err) {
					assert.NotEmpty(t, results)
				}
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1200, g.Len())
	require.NoError(t, g.Validate())
}

func TestConcurrentDeleteAndSearch(t *testing.T) {
	ctx := context.Background()

	g, err := New(func(o *Options) {
		o.Dimension = 8
		o.RandomSeed = int64Ptr(42)
	})
	require.NoError(t, err)

	vecs := testutil.NewRNG(9).UniformVectors(400, 8)
	for i, v := range vecs {
		require.NoError(t, g.Insert(ctx, ID(i), v))
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.NoError(t, g.Delete(ctx, ID(i)))
		}
	}()

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				_, err := g.KNNSearch(ctx, vecs[(i*7)%400], 5, 40)
				assert.NoError(t, err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 200, g.Len())
	require.NoError(t, g.Validate())

	// Post-quiescence searches never surface the deleted half.
	results, err := g.KNNSearch(ctx, vecs[10], 10, 200)
	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, uint64(r.ID), uint64(200))
	}
}
