package main

import (
	"context"
	"fmt"
	"time"

	"github.com/datapilot-io/datapilot/internal/bootstrap"
	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/telemetry"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// app holds the container and the process-wide dependencies every command needs.
type app struct {
	inj *do.Injector
	cfg *config.Config
	log *zap.Logger

	closers []func()
}

func newApp() (*app, error) {
	inj := bootstrap.BuildContainer()

	cfg, err := do.Invoke[*config.Config](inj)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := do.Invoke[*zap.Logger](inj)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	// telemetry is best effort, the service runs without a collector
	if _, err := telemetry.SetupTracing(cfg); err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	if _, err := telemetry.SetupMetrics(cfg); err != nil {
		log.Warn("metrics disabled", zap.Error(err))
	}
	if err := telemetry.InitDomainMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return &app{inj: inj, cfg: cfg, log: log}, nil
}

// releaseBroker, releaseRedis and releaseDB queue a shared connection for
// close. Call them only for components the command already invoked.
func (a *app) releaseBroker() {
	a.closers = append(a.closers, func() {
		if conn := do.MustInvoke[*amqp.Connection](a.inj); conn != nil {
			if err := conn.Close(); err != nil {
				a.log.Warn("close rabbitmq", zap.Error(err))
			}
		}
	})
}

func (a *app) releaseRedis() {
	a.closers = append(a.closers, func() {
		if rdb := do.MustInvoke[*redis.Client](a.inj); rdb != nil {
			if err := rdb.Close(); err != nil {
				a.log.Warn("close redis", zap.Error(err))
			}
		}
	})
}

func (a *app) releaseDB() {
	a.closers = append(a.closers, func() {
		if sqlDB, err := do.MustInvoke[*gorm.DB](a.inj).DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
}

// close releases queued connections in reverse order and flushes telemetry.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := telemetry.ShutdownMetrics(ctx); err != nil {
		a.log.Warn("shutdown metrics", zap.Error(err))
	}
	if err := telemetry.Shutdown(ctx); err != nil {
		a.log.Warn("shutdown tracing", zap.Error(err))
	}
	_ = a.log.Sync()
}
