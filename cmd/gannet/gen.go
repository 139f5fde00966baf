package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var (
	genOutputDir  string
	genFiles      int
	genVectors    int
	genDimensions int
	genSeed       int64
)

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate clustered test vector files",
	Long: `Gen writes text files of random vectors for exercising the index.

Each file gets its own random center in [-1, 1); its vectors are the center
plus per-component noise in [-0.2, 0.2), written one space-separated vector
per line.

Examples:
  gannet gen --out test_vectors
  gannet gen --out test_vectors --files 10 --vectors 1000 --dim 128`,
	RunE: runGen,
}

func init() {
	rootCmd.AddCommand(genCmd)

	genCmd.Flags().StringVarP(&genOutputDir, "out", "o", "test_vectors", "Output directory")
	genCmd.Flags().IntVar(&genFiles, "files", 5, "Number of files to generate")
	genCmd.Flags().IntVar(&genVectors, "vectors", 100, "Vectors per file")
	genCmd.Flags().IntVar(&genDimensions, "dim", 128, "Vector dimensionality")
	genCmd.Flags().Int64Var(&genSeed, "seed", 0, "Random seed (0 seeds from the clock)")
}

func runGen(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(genOutputDir, 0o755); err != nil {
		return err
	}

	seed := genSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // test data only

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generating %d files x %d vectors x %d dimensions into %s\n",
		genFiles, genVectors, genDimensions, genOutputDir)

	for fileIdx := 0; fileIdx < genFiles; fileIdx++ {
		if err := writeVectorFile(rng, fileIdx); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Generated %d vectors\n", genFiles*genVectors)

	return nil
}

func writeVectorFile(rng *rand.Rand, fileIdx int) error {
	path := filepath.Join(genOutputDir, fmt.Sprintf("vectors_%03d.txt", fileIdx))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	center := make([]float32, genDimensions)
	for i := range center {
		center[i] = rng.Float32()*2 - 1
	}

	for v := 0; v < genVectors; v++ {
		for i := 0; i < genDimensions; i++ {
			if i > 0 {
				if err := w.WriteByte(' '); err != nil {
					return err
				}
			}
			noise := rng.Float32()*0.4 - 0.2
			if _, err := fmt.Fprintf(w, "%.8f", center[i]+noise); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}

	return w.Flush()
}
