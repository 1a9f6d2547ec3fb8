package repo

import (
	"context"
	"testing"

	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/infra/db"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB opens a private in-memory sqlite database with every table migrated.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{Database: config.DatabaseCfg{
		Driver: "sqlite",
		DSN:    "file::memory:?_pragma=foreign_keys(1)",
	}}
	d, err := db.New(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(d))
	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return d
}

func seedUser(t *testing.T, d *gorm.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Name: "user " + email, Email: email, PasswordHash: "x"}
	require.NoError(t, NewUserRepo(d).Create(context.Background(), u))
	return u
}

func seedProject(t *testing.T, d *gorm.DB, userID int64, name string) *model.Project {
	t.Helper()
	p := &model.Project{Name: name, UserID: userID}
	require.NoError(t, NewProjectRepo(d).Create(context.Background(), p))
	return p
}
