package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "datapilot",
	Short: "DataPilot - dataset ingestion, job tracking and ML orchestration",
	Long: `DataPilot serves the HTTP API and runs the background job worker.

Commands:
  serve    Start the HTTP API server
  worker   Consume and execute pending jobs
  sweep    Fail jobs stuck in processing, once
  migrate  Create tables and seed default feature flags`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(migrateCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("datapilot version %s\n", version)
	},
}
