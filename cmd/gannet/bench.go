package main

import (
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/gannet-io/gannet"
	"github.com/gannet-io/gannet/distance"
	"github.com/gannet-io/gannet/testutil"
)

var (
	benchVectors        int
	benchDimensions     int
	benchQueries        int
	benchK              int
	benchM              int
	benchEFConstruction int
	benchEFSearch       int
	benchMetric         string
	benchSeed           int64
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark index build and search",
	Long: `Bench builds an index over uniform random vectors, then measures
recall against exact brute-force results together with query throughput and
latency quantiles.

Examples:
  gannet bench
  gannet bench -n 50000 -d 256 --m 32 --ef-search 128
  gannet bench --metric cosine`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVarP(&benchVectors, "vectors", "n", 10000, "Number of vectors to index")
	benchCmd.Flags().IntVarP(&benchDimensions, "dim", "d", 128, "Vector dimensionality")
	benchCmd.Flags().IntVarP(&benchQueries, "queries", "q", 100, "Number of test queries")
	benchCmd.Flags().IntVarP(&benchK, "top-k", "k", 10, "Neighbors per query")
	benchCmd.Flags().IntVar(&benchM, "m", 16, "Graph connectivity")
	benchCmd.Flags().IntVar(&benchEFConstruction, "ef-construction", 128, "Construction beam width")
	benchCmd.Flags().IntVar(&benchEFSearch, "ef-search", 64, "Search beam width")
	benchCmd.Flags().StringVar(&benchMetric, "metric", "euclidean", "Distance metric")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 42, "Random seed")
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	metric, err := distance.ParseMetric(benchMetric)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Benchmark parameters:\n")
	fmt.Fprintf(out, "  Vectors:         %d\n", benchVectors)
	fmt.Fprintf(out, "  Dimensions:      %d\n", benchDimensions)
	fmt.Fprintf(out, "  Queries:         %d\n", benchQueries)
	fmt.Fprintf(out, "  k:               %d\n", benchK)
	fmt.Fprintf(out, "  M:               %d\n", benchM)
	fmt.Fprintf(out, "  EF construction: %d\n", benchEFConstruction)
	fmt.Fprintf(out, "  EF search:       %d\n", benchEFSearch)
	fmt.Fprintf(out, "  Metric:          %s\n", metric)

	rng := testutil.NewRNG(benchSeed)
	vectors := rng.UniformVectors(benchVectors, benchDimensions)
	queries := rng.UniformVectors(benchQueries, benchDimensions)

	idx, err := gannet.New(func(o *gannet.Options) {
		o.Index.Dimension = benchDimensions
		o.Index.M = benchM
		o.Index.EFConstruction = benchEFConstruction
		o.Index.EFSearch = benchEFSearch
		o.Index.Metric = metric
		o.Index.InitialCapacity = benchVectors
	})
	if err != nil {
		return err
	}
	defer idx.Close()

	fmt.Fprintf(out, "\nBuilding index...\n")

	buildStart := time.Now()
	for i, vec := range vectors {
		if err := idx.Insert(ctx, gannet.ID(i), vec); err != nil {
			return err
		}
	}
	buildTime := time.Since(buildStart)

	fmt.Fprintf(out, "  Build time:  %s\n", buildTime.Round(time.Millisecond))
	fmt.Fprintf(out, "  Vectors/sec: %.1f\n", float64(benchVectors)/buildTime.Seconds())

	st := idx.Stats()
	fmt.Fprintf(out, "\nIndex statistics:\n")
	fmt.Fprintf(out, "  Nodes:          %d\n", st.Nodes)
	fmt.Fprintf(out, "  Connections:    %d\n", st.Connections)
	fmt.Fprintf(out, "  Avg out-degree: %.2f\n", st.AvgOutDegree)
	fmt.Fprintf(out, "  Max layer:      %d\n", st.MaxLayer)
	for layer, count := range st.LayerHistogram {
		fmt.Fprintf(out, "    layer %d: %d nodes\n", layer, count)
	}

	fmt.Fprintf(out, "\nComputing ground truth for %d queries...\n", benchQueries)

	// Exact results per query, computed in parallel so the brute-force
	// scans do not dominate the wall time.
	truth := make([][]testutil.SearchResult, benchQueries)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for qi, q := range queries {
		g.Go(func() error {
			exact, err := idx.BruteSearch(gctx, q, benchK)
			if err != nil {
				return err
			}
			truth[qi] = toTestutilResults(exact)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nRunning %d queries...\n", benchQueries)

	recalls := make([]float64, benchQueries)
	latencies := make([]float64, benchQueries)

	var totalSeconds float64
	for qi, q := range queries {
		t0 := time.Now()
		results, err := idx.Search(ctx, q, benchK)
		if err != nil {
			return err
		}
		latencies[qi] = time.Since(t0).Seconds()
		totalSeconds += latencies[qi]

		recalls[qi] = testutil.ComputeRecall(truth[qi], toTestutilResults(results))
	}

	sort.Float64s(latencies)

	fmt.Fprintf(out, "  Recall@%d: %.4f +/- %.4f\n", benchK, stat.Mean(recalls, nil), stat.StdDev(recalls, nil))
	fmt.Fprintf(out, "  QPS:       %.1f\n", float64(benchQueries)/totalSeconds)
	fmt.Fprintf(out, "  Latency:   p50=%s p90=%s p99=%s\n",
		quantileDuration(0.50, latencies),
		quantileDuration(0.90, latencies),
		quantileDuration(0.99, latencies),
	)

	return nil
}

func toTestutilResults(results []gannet.SearchResult) []testutil.SearchResult {
	out := make([]testutil.SearchResult, len(results))
	for i, r := range results {
		out[i] = testutil.SearchResult{ID: uint64(r.ID), Distance: r.Distance}
	}
	return out
}

func quantileDuration(p float64, sorted []float64) time.Duration {
	return time.Duration(stat.Quantile(p, stat.Empirical, sorted, nil) * float64(time.Second))
}
