package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gannet",
	Short: "Approximate nearest neighbor index toolbox",
	Long: `Gannet is the command line companion to the gannet library.

It generates test vector datasets, clusters vector files with the index, and
benchmarks index build and search performance.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
