package service

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/infra/blob"
	"github.com/datapilot-io/datapilot/internal/infra/cache"
	"github.com/datapilot-io/datapilot/internal/infra/db"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppCfg{Name: "datapilot", Env: "development"},
		Storage: config.StorageCfg{Backend: "local", MaxUploadBytes: 1024},
		Auth: config.AuthCfg{
			JWTSecret:      "test-secret",
			TokenTTL:       time.Hour,
			PasswordPepper: "pepper",
		},
		Jobs:     config.JobsCfg{StuckAfter: 30 * time.Minute, PollBatch: 10},
		RabbitMQ: config.RabbitMQCfg{ExchangeName: config.MQExchangeName{Job: "datapilot.job"}},
		FeatureFlags: config.FeatureFlagsCfg{
			Defaults:  map[string]bool{},
			Overrides: map[string]bool{},
		},
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := db.New(&config.Config{Database: config.DatabaseCfg{
		Driver: "sqlite",
		DSN:    "file::memory:?_pragma=foreign_keys(1)",
	}})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(d))
	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return d
}

// MockPublisher records job announcements.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error {
	args := m.Called(ctx, exchangeName, routingKey, body)
	return args.Error(0)
}

// fixture wires every service against sqlite, a temp upload dir and miniredis.
type fixture struct {
	db    *gorm.DB
	cfg   *config.Config
	store *blob.LocalStorage
	dir   string
	mr    *miniredis.Miniredis
	pub   *MockPublisher

	users    repo.UserRepo
	projects repo.ProjectRepo
	datasets repo.DatasetRepo
	jobRepo  repo.JobRepo

	audit    AuditService
	gate     AccessGate
	jobs     JobService
	project  ProjectService
	dataset  DatasetService
	ml       MLService
	flags    FeatureFlagService
	userSvc  UserService
	resolver IdentityResolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, testConfig())
}

func newFixtureWith(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	d := setupTestDB(t)
	log := zap.NewNop()

	dir := t.TempDir()
	store, err := blob.NewLocal(dir)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	pub := &MockPublisher{}
	pub.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f := &fixture{
		db:       d,
		cfg:      cfg,
		store:    store,
		dir:      dir,
		mr:       mr,
		pub:      pub,
		users:    repo.NewUserRepo(d),
		projects: repo.NewProjectRepo(d),
		datasets: repo.NewDatasetRepo(d),
		jobRepo:  repo.NewJobRepo(d),
	}
	f.audit = NewAuditService(repo.NewAuditLogRepo(d), log)
	f.gate = NewAccessGate(cfg)
	f.jobs = NewJobService(f.jobRepo, cache.NewJobCache(rdb, time.Hour), pub, f.audit, log, cfg)
	f.project = NewProjectService(f.projects, f.gate, store, f.audit, log)
	f.dataset = NewDatasetService(f.datasets, f.projects, f.gate, store, f.jobs, f.audit, log, cfg)
	f.ml = NewMLService(f.dataset, f.jobs)
	f.flags = NewFeatureFlagService(repo.NewFeatureFlagRepo(d), f.audit, log, cfg)
	f.userSvc = NewUserService(f.users, NewTokenIssuer(cfg), f.audit, cfg)
	f.resolver = NewIdentityResolver(f.users, cfg, log)
	return f
}

func (f *fixture) seedUser(t *testing.T, email string) *model.User {
	t.Helper()
	u := &model.User{Name: "user", Email: email, PasswordHash: "x"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) seedProject(t *testing.T, owner int64, name string) *model.Project {
	t.Helper()
	p, err := f.project.Create(context.Background(), CreateProjectInput{UserID: owner, Name: name})
	require.NoError(t, err)
	return p
}

func (f *fixture) count(t *testing.T, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

// storedFiles lists every object key under the upload dir.
func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	var keys []string
	err := filepath.WalkDir(f.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, _ := filepath.Rel(f.dir, p)
			keys = append(keys, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return keys
}

func (f *fixture) auditActions(t *testing.T) []string {
	t.Helper()
	var actions []string
	require.NoError(t, f.db.Model(&model.AuditLog{}).Order("id ASC").Pluck("action", &actions).Error)
	return actions
}
