package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datapilot-io/datapilot/internal/bootstrap"
	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/modules/handler"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/datapilot-io/datapilot/internal/router"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags, err := do.Invoke[service.FeatureFlagService](a.inj)
	if err != nil {
		return fmt.Errorf("build feature flags: %w", err)
	}
	a.releaseDB()
	if err := bootstrap.EnsureDefaultFeatureFlags(ctx, flags, a.cfg, a.log); err != nil {
		return fmt.Errorf("seed feature flags: %w", err)
	}

	deps := routerDeps(a.inj)
	a.releaseBroker()
	a.releaseRedis()

	engine, err := router.NewRouter(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.App.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("env", a.cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func routerDeps(inj *do.Injector) router.RouterDeps {
	return router.RouterDeps{
		Config:             do.MustInvoke[*config.Config](inj),
		Log:                do.MustInvoke[*zap.Logger](inj),
		Tokens:             do.MustInvoke[service.TokenIssuer](inj),
		Resolver:           do.MustInvoke[service.IdentityResolver](inj),
		AuthHandler:        do.MustInvoke[*handler.AuthHandler](inj),
		ProjectHandler:     do.MustInvoke[*handler.ProjectHandler](inj),
		DatasetHandler:     do.MustInvoke[*handler.DatasetHandler](inj),
		JobHandler:         do.MustInvoke[*handler.JobHandler](inj),
		MLHandler:          do.MustInvoke[*handler.MLHandler](inj),
		FeatureFlagHandler: do.MustInvoke[*handler.FeatureFlagHandler](inj),
		AuditLogHandler:    do.MustInvoke[*handler.AuditLogHandler](inj),
	}
}
