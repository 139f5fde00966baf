package hnsw

import (
	"context"
	"testing"

	"github.com/gannet-io/gannet/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsEmpty(t *testing.T) {
	g, err := New(func(o *Options) { o.Dimension = 4 })
	require.NoError(t, err)

	st := g.Stats()
	assert.Equal(t, 0, st.Nodes)
	assert.Equal(t, 0, st.LiveNodes)
	assert.Equal(t, -1, st.MaxLayer)
	assert.Equal(t, 4, st.Dimension)
	assert.Empty(t, st.LayerHistogram)
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	g, err := New(func(o *Options) {
		o.Dimension = 8
		o.RandomSeed = int64Ptr(42)
	})
	require.NoError(t, err)

	vecs := testutil.NewRNG(42).UniformVectors(300, 8)
	for i, v := range vecs {
		require.NoError(t, g.Insert(ctx, ID(i), v))
	}
	for i := range 30 {
		require.NoError(t, g.Delete(ctx, ID(i)))
	}

	st := g.Stats()
	assert.Equal(t, 300, st.Nodes)
	assert.Equal(t, 270, st.LiveNodes)
	assert.Equal(t, 30, st.Deleted)
	assert.Equal(t, 8, st.Dimension)
	assert.Equal(t, g.MaxLayer(), st.MaxLayer)

	total := 0
	for _, c := range st.LayerHistogram {
		total += c
	}
	assert.Equal(t, 300, total)

	assert.Positive(t, st.Connections)
	assert.Positive(t, st.AvgOutDegree)
	assert.LessOrEqual(t, st.AvgOutDegree, float64(g.opts.M0))
}
