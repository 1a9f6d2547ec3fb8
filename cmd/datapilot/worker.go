package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/datapilot-io/datapilot/internal/worker"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume pending jobs and drive them to completion",
	Long: `Runs the broker consumer, the pending-job poller and the stuck-job sweeper
until interrupted. Several workers may run side by side: each job is claimed
by exactly one of them.`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := do.MustInvoke[*worker.Runner](a.inj)
	sweeper := do.MustInvoke[*worker.Sweeper](a.inj)
	a.releaseDB()
	a.releaseBroker()
	a.releaseRedis()

	a.log.Info("worker started",
		zap.Bool("broker", a.cfg.RabbitMQ.Enabled),
		zap.Duration("poll_interval", a.cfg.Jobs.PollInterval),
		zap.Duration("sweep_interval", a.cfg.Jobs.SweepInterval))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	err = g.Wait()
	a.log.Info("worker stopped")
	return err
}
