package bootstrap

import (
	"context"
	"time"

	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/infra/blob"
	"github.com/datapilot-io/datapilot/internal/infra/cache"
	"github.com/datapilot-io/datapilot/internal/infra/db"
	"github.com/datapilot-io/datapilot/internal/infra/httpclient"
	"github.com/datapilot-io/datapilot/internal/infra/logger"
	mq "github.com/datapilot-io/datapilot/internal/infra/queue"
	"github.com/datapilot-io/datapilot/internal/modules/handler"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/datapilot-io/datapilot/internal/worker"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BuildContainer registers every component lazily. Nothing connects until
// first invoked, so each command only dials what it uses.
func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Telemetry.Enabled {
			if err := db.RegisterOpenTelemetryPlugin(d); err != nil {
				return nil, err
			}
		}
		// [optional] auto migrate
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(d); err != nil {
				return nil, err
			}
		}
		return d, nil
	})

	// Redis, nil when unset or unreachable: the job mirror is optional
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		if cfg.Redis.Addr == "" {
			return nil, nil
		}
		rdb, err := cache.New(cfg)
		if err != nil {
			log.Warn("redis unavailable, job cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			return nil, nil
		}
		if cfg.Telemetry.Enabled {
			if err := cache.RegisterOpenTelemetryPlugin(rdb); err != nil {
				return nil, err
			}
		}
		return rdb, nil
	})
	do.Provide(inj, func(i *do.Injector) (cache.JobCache, error) {
		cfg := do.MustInvoke[*config.Config](i)
		rdb := do.MustInvoke[*redis.Client](i)
		if rdb == nil {
			return nil, nil
		}
		return cache.NewJobCache(rdb, time.Duration(cfg.Redis.JobTTLSec)*time.Second), nil
	})

	// RabbitMQ Connection, nil when disabled
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.RabbitMQ.Enabled {
			return nil, nil
		}
		return mq.Dial(cfg)
	})

	// RabbitMQ Publisher
	do.Provide(inj, func(i *do.Injector) (service.Publisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		conn := do.MustInvoke[*amqp.Connection](i)
		if conn == nil {
			return nil, nil
		}
		return mq.NewPublisher(conn, do.MustInvoke[*zap.Logger](i), cfg)
	})

	// RabbitMQ Consumer
	do.Provide(inj, func(i *do.Injector) (worker.Consumer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		conn := do.MustInvoke[*amqp.Connection](i)
		if conn == nil {
			return nil, nil
		}
		return mq.NewConsumer(conn, cfg.RabbitMQ.ExchangeName.Job, cfg.RabbitMQ.Queue.Job, cfg.RabbitMQ.Prefetch,
			do.MustInvoke[*zap.Logger](i), cfg)
	})

	// Object storage
	do.Provide(inj, func(i *do.Injector) (blob.Storage, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return blob.New(context.Background(), cfg)
	})

	// ML HTTP Client
	do.Provide(inj, func(i *do.Injector) (*httpclient.MLClient, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		return httpclient.NewMLClient(cfg, log), nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.UserRepo, error) {
		return repo.NewUserRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ProjectRepo, error) {
		return repo.NewProjectRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.DatasetRepo, error) {
		return repo.NewDatasetRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.JobRepo, error) {
		return repo.NewJobRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.FeatureFlagRepo, error) {
		return repo.NewFeatureFlagRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.AuditLogRepo, error) {
		return repo.NewAuditLogRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.TokenIssuer, error) {
		return service.NewTokenIssuer(do.MustInvoke[*config.Config](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.IdentityResolver, error) {
		return service.NewIdentityResolver(
			do.MustInvoke[repo.UserRepo](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.AccessGate, error) {
		return service.NewAccessGate(do.MustInvoke[*config.Config](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.AuditService, error) {
		return service.NewAuditService(
			do.MustInvoke[repo.AuditLogRepo](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.JobService, error) {
		return service.NewJobService(
			do.MustInvoke[repo.JobRepo](i),
			do.MustInvoke[cache.JobCache](i),
			do.MustInvoke[service.Publisher](i),
			do.MustInvoke[service.AuditService](i),
			do.MustInvoke[*zap.Logger](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.UserService, error) {
		return service.NewUserService(
			do.MustInvoke[repo.UserRepo](i),
			do.MustInvoke[service.TokenIssuer](i),
			do.MustInvoke[service.AuditService](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ProjectService, error) {
		return service.NewProjectService(
			do.MustInvoke[repo.ProjectRepo](i),
			do.MustInvoke[service.AccessGate](i),
			do.MustInvoke[blob.Storage](i),
			do.MustInvoke[service.AuditService](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.DatasetService, error) {
		return service.NewDatasetService(
			do.MustInvoke[repo.DatasetRepo](i),
			do.MustInvoke[repo.ProjectRepo](i),
			do.MustInvoke[service.AccessGate](i),
			do.MustInvoke[blob.Storage](i),
			do.MustInvoke[service.JobService](i),
			do.MustInvoke[service.AuditService](i),
			do.MustInvoke[*zap.Logger](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.MLService, error) {
		return service.NewMLService(
			do.MustInvoke[service.DatasetService](i),
			do.MustInvoke[service.JobService](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.FeatureFlagService, error) {
		return service.NewFeatureFlagService(
			do.MustInvoke[repo.FeatureFlagRepo](i),
			do.MustInvoke[service.AuditService](i),
			do.MustInvoke[*zap.Logger](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.AuthHandler, error) {
		return handler.NewAuthHandler(do.MustInvoke[service.UserService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ProjectHandler, error) {
		return handler.NewProjectHandler(do.MustInvoke[service.ProjectService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.DatasetHandler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return handler.NewDatasetHandler(do.MustInvoke[service.DatasetService](i), cfg.Storage.MaxUploadBytes), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.JobHandler, error) {
		return handler.NewJobHandler(do.MustInvoke[service.JobService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.MLHandler, error) {
		return handler.NewMLHandler(do.MustInvoke[service.MLService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.FeatureFlagHandler, error) {
		return handler.NewFeatureFlagHandler(do.MustInvoke[service.FeatureFlagService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.AuditLogHandler, error) {
		return handler.NewAuditLogHandler(
			do.MustInvoke[service.AuditService](i),
			do.MustInvoke[service.ProjectService](i),
			do.MustInvoke[service.DatasetService](i),
		), nil
	})

	// Worker
	do.Provide(inj, func(i *do.Injector) (*worker.Runner, error) {
		datasets := do.MustInvoke[repo.DatasetRepo](i)
		ml := do.MustInvoke[*httpclient.MLClient](i)
		processors := map[string]worker.Processor{
			model.JobTypeProcessDataset: worker.NewDatasetProcessor(datasets, do.MustInvoke[blob.Storage](i)),
			model.JobTypeTrainModel:     worker.NewTrainProcessor(datasets, ml),
			model.JobTypePredict:        worker.NewPredictProcessor(datasets, ml),
		}
		return worker.NewRunner(
			do.MustInvoke[service.JobService](i),
			processors,
			do.MustInvoke[worker.Consumer](i),
			do.MustInvoke[*zap.Logger](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*worker.Sweeper, error) {
		return worker.NewSweeper(
			do.MustInvoke[service.JobService](i),
			do.MustInvoke[*zap.Logger](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})
	return inj
}
