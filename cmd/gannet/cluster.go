package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gannet-io/gannet"
	"github.com/gannet-io/gannet/filter"
)

var (
	clusterInputDir  string
	clusterOutputDir string
	clusterCount     int
	clusterEF        int
	clusterWorkers   int
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster vector files around seed vectors",
	Long: `Cluster reads every file in the input directory, one space-separated
vector per line, indexes all vectors, and assigns each vector to the nearest
of the first K vectors (the cluster seeds) using a filtered index search.

Outputs one cluster_00000.txt file per cluster listing its members, plus a
cluster_stats.txt summary.

Examples:
  gannet cluster --in test_vectors --out clustered_vectors
  gannet cluster --in test_vectors --out clustered_vectors -k 25`,
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterCmd.Flags().StringVar(&clusterInputDir, "in", "test_vectors", "Input directory of vector files")
	clusterCmd.Flags().StringVar(&clusterOutputDir, "out", "clustered_vectors", "Output directory")
	clusterCmd.Flags().IntVarP(&clusterCount, "clusters", "k", 10, "Number of clusters")
	clusterCmd.Flags().IntVar(&clusterEF, "ef", 0, "Beam width for seed assignment (0 scales with the cluster count)")
	clusterCmd.Flags().IntVar(&clusterWorkers, "workers", runtime.GOMAXPROCS(0), "Concurrent assignment workers")
}

func runCluster(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	vectors, sources, err := loadVectorDir(clusterInputDir)
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		return fmt.Errorf("no vectors found in %s", clusterInputDir)
	}
	if clusterCount < 1 || clusterCount > len(vectors) {
		return fmt.Errorf("cluster count %d out of range for %d vectors", clusterCount, len(vectors))
	}

	fmt.Fprintf(out, "Loaded %d vectors from %s\n", len(vectors), clusterInputDir)

	idx, err := gannet.New(func(o *gannet.Options) {
		o.Index.Dimension = len(vectors[0])
		o.Index.InitialCapacity = len(vectors)
	})
	if err != nil {
		return err
	}
	defer idx.Close()

	for i, vec := range vectors {
		if err := idx.Insert(ctx, gannet.ID(i), vec); err != nil {
			return fmt.Errorf("index vector %d from %s: %w", i, sources[i], err)
		}
	}

	fmt.Fprintf(out, "Assigning %d vectors to %d clusters...\n", len(vectors), clusterCount)

	assignments, err := assignClusters(ctx, idx, vectors)
	if err != nil {
		return err
	}

	clusters := make([][]int, clusterCount)
	for id, c := range assignments {
		clusters[c] = append(clusters[c], id)
	}

	if err := writeClusters(clusterOutputDir, clusters, vectors, sources); err != nil {
		return err
	}

	fmt.Fprintf(out, "Wrote %d cluster files to %s\n", clusterCount, clusterOutputDir)

	return nil
}

// loadVectorDir reads every regular file in dir in name order. Tokens that
// do not parse as floats are skipped; empty lines are ignored.
func loadVectorDir(dir string) ([][]float32, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var (
		vectors [][]float32
		sources []string
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		vecs, err := readVectorFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		for _, v := range vecs {
			vectors = append(vectors, v)
			sources = append(sources, entry.Name())
		}
	}

	return vectors, sources, nil
}

func readVectorFile(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vectors [][]float32

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())

		vec := make([]float32, 0, len(fields))
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				continue
			}
			vec = append(vec, float32(v))
		}

		if len(vec) > 0 {
			vectors = append(vectors, vec)
		}
	}

	return vectors, scanner.Err()
}

// assignClusters maps every vector to its nearest seed. Seeds are the first
// clusterCount ids and assign to themselves.
func assignClusters(ctx context.Context, idx *gannet.Index, vectors [][]float32) ([]int, error) {
	seeds := filter.NewBitmap()
	for id := 0; id < clusterCount; id++ {
		seeds.Add(uint64(id))
	}

	ef := clusterEF
	if ef <= 0 {
		// A narrow filter can exhaust the beam before any seed shows up,
		// so scale the beam with the seed count.
		ef = max(64, 16*clusterCount)
	}

	assignments := make([]int, len(vectors))
	for id := 0; id < clusterCount; id++ {
		assignments[id] = id
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(clusterWorkers)

	for id := clusterCount; id < len(vectors); id++ {
		g.Go(func() error {
			results, err := idx.Search(gctx, vectors[id], 1, func(o *gannet.SearchOptions) {
				o.Filter = seeds
				o.EF = ef
			})
			if err != nil {
				return fmt.Errorf("assign vector %d: %w", id, err)
			}
			if len(results) == 0 {
				// The beam missed every seed; fall back to an exact scan.
				results, err = idx.BruteSearch(gctx, vectors[id], 1, func(o *gannet.SearchOptions) {
					o.Filter = seeds
				})
				if err != nil {
					return fmt.Errorf("assign vector %d: %w", id, err)
				}
			}

			assignments[id] = int(results[0].ID)

			return nil
		})
	}

	return assignments, g.Wait()
}

func writeClusters(dir string, clusters [][]int, vectors [][]float32, sources []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for clusterID, members := range clusters {
		if err := writeClusterFile(dir, clusterID, members, vectors, sources); err != nil {
			return err
		}
	}

	return writeClusterStats(dir, clusters, len(vectors))
}

func writeClusterFile(dir string, clusterID int, members []int, vectors [][]float32, sources []string) error {
	f, err := os.Create(filepath.Join(dir, fmt.Sprintf("cluster_%05d.txt", clusterID)))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# Cluster %d - %d vectors\n", clusterID, len(members))
	fmt.Fprintf(w, "# Format: vector_components | original_filename\n")

	for _, id := range members {
		for _, component := range vectors[id] {
			fmt.Fprintf(w, "%.6f ", component)
		}
		fmt.Fprintf(w, "| %s\n", sources[id])
	}

	return w.Flush()
}

func writeClusterStats(dir string, clusters [][]int, total int) error {
	f, err := os.Create(filepath.Join(dir, "cluster_stats.txt"))
	if err != nil {
		return err
	}
	defer f.Close()

	type clusterSize struct{ id, size int }

	sizes := make([]clusterSize, len(clusters))
	for id, members := range clusters {
		sizes[id] = clusterSize{id: id, size: len(members)}
	}
	sort.Slice(sizes, func(i, j int) bool {
		if sizes[i].size != sizes[j].size {
			return sizes[i].size > sizes[j].size
		}
		return sizes[i].id < sizes[j].id
	})

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "Clustering Statistics\n")
	fmt.Fprintf(w, "--------------------\n")
	fmt.Fprintf(w, "Total vectors: %d\n", total)
	fmt.Fprintf(w, "Number of clusters: %d\n", len(clusters))
	fmt.Fprintf(w, "\nCluster sizes:\n")

	for _, cs := range sizes {
		fmt.Fprintf(w, "Cluster %5d: %6d vectors\n", cs.id, cs.size)
	}

	return w.Flush()
}
