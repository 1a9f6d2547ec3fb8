package main

import (
	"fmt"

	"github.com/datapilot-io/datapilot/internal/worker"
	"github.com/samber/do"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail jobs stuck in processing longer than jobs.stuckafter, once",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	sweeper := do.MustInvoke[*worker.Sweeper](a.inj)
	a.releaseDB()
	a.releaseBroker()
	a.releaseRedis()

	n, err := sweeper.SweepOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "swept %d stuck job(s)\n", n)
	return nil
}
