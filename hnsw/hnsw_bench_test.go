package hnsw

import (
	"context"
	"sync"
	"testing"

	"github.com/gannet-io/gannet/testutil"
)

func BenchmarkInsert(b *testing.B) {
	ctx := context.Background()
	vectors := testutil.NewRNG(42).UniformVectors(1000, 128)

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		g, err := New(func(o *Options) {
			o.Dimension = 128
			o.RandomSeed = int64Ptr(42)
			o.InitialCapacity = len(vectors)
		})
		if err != nil {
			b.Fatal(err)
		}

		for i, v := range vectors {
			if err := g.Insert(ctx, ID(i), v); err != nil {
				b.Fatalf("insert %d: %v", i, err)
			}
		}
	}
}

func BenchmarkKNNSearch(b *testing.B) {
	ctx := context.Background()
	dim := 128
	vectors := testutil.NewRNG(42).UniformVectors(10000, dim)
	query := testutil.NewRNG(43).UniformVectors(1, dim)[0]

	g, err := New(func(o *Options) {
		o.Dimension = dim
		o.RandomSeed = int64Ptr(42)
		o.InitialCapacity = len(vectors)
	})
	if err != nil {
		b.Fatal(err)
	}

	for i, v := range vectors {
		if err := g.Insert(ctx, ID(i), v); err != nil {
			b.Fatalf("insert %d: %v", i, err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		if _, err := g.KNNSearch(ctx, query, 10, 50); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkKNNSearchParallel(b *testing.B) {
	ctx := context.Background()
	dim := 64
	vectors := testutil.NewRNG(42).UniformVectors(5000, dim)
	queries := testutil.NewRNG(43).UniformVectors(64, dim)

	g, err := New(func(o *Options) {
		o.Dimension = dim
		o.RandomSeed = int64Ptr(42)
		o.InitialCapacity = len(vectors)
	})
	if err != nil {
		b.Fatal(err)
	}

	for i, v := range vectors {
		if err := g.Insert(ctx, ID(i), v); err != nil {
			b.Fatalf("insert %d: %v", i, err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := g.KNNSearch(ctx, queries[i%len(queries)], 10, 50); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}

func BenchmarkConcurrentSearchAndInsert(b *testing.B) {
	ctx := context.Background()
	dim := 64
	vectors := testutil.NewRNG(42).UniformVectors(5000, dim)
	queries := testutil.NewRNG(43).UniformVectors(100, dim)

	g, err := New(func(o *Options) {
		o.Dimension = dim
		o.RandomSeed = int64Ptr(42)
		o.InitialCapacity = len(vectors)
	})
	if err != nil {
		b.Fatal(err)
	}

	for i := range 1000 {
		if err := g.Insert(ctx, ID(i), vectors[i]); err != nil {
			b.Fatalf("insert %d: %v", i, err)
		}
	}

	next := 1000

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		var wg sync.WaitGroup

		if next < len(vectors) {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				_ = g.Insert(ctx, ID(id), vectors[id])
			}(next)
			next++
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = g.KNNSearch(ctx, queries[i%len(queries)], 10, 50)
		}(next)

		wg.Wait()
	}
}
