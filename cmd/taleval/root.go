package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "taleval",
	Short: "LLM benchmark orchestration and evaluation analytics",
	Long: `taleval runs LLM benchmarks against an external judge service and
aggregates the resulting scores.

A benchmark is a set of test cases, metrics and models; taleval expands it
into individual evaluation tasks, fans them out to workers, tracks progress
and serves analytics over the accumulated results.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(runCmd)
}
