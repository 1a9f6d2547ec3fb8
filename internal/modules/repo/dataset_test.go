package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func processJob(ds *model.Dataset) (*model.Job, error) {
	return &model.Job{
		ID:     uuid.NewString(),
		Type:   model.JobTypeProcessDataset,
		Data:   datatypes.JSON(fmt.Sprintf(`{"dataset_id":%d}`, ds.ID)),
		Status: model.JobStatusPending,
	}, nil
}

func countRows(t *testing.T, d *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, d.Model(m).Count(&n).Error)
	return n
}

func TestDatasetRepo_CreateWithJob(t *testing.T) {
	d := setupTestDB(t)
	u := seedUser(t, d, "owner@example.com")
	p := seedProject(t, d, u.ID, "p")
	r := NewDatasetRepo(d)

	ds := &model.Dataset{Name: "sales", ProjectID: p.ID, FilePath: "projects/1/a.csv", FileType: "csv", RowCount: 2, ColumnCount: 3}
	job, err := r.CreateWithJob(context.Background(), ds, processJob)
	require.NoError(t, err)
	require.NotZero(t, ds.ID)
	assert.JSONEq(t, fmt.Sprintf(`{"dataset_id":%d}`, ds.ID), string(job.Data))

	got, err := NewJobRepo(d).Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status)
}

func TestDatasetRepo_CreateWithJob_RollsBack(t *testing.T) {
	d := setupTestDB(t)
	u := seedUser(t, d, "owner@example.com")
	p := seedProject(t, d, u.ID, "p")
	r := NewDatasetRepo(d)
	ctx := context.Background()

	existing := newJob(model.JobStatusPending)
	require.NoError(t, NewJobRepo(d).Create(ctx, existing))

	ds := &model.Dataset{Name: "sales", ProjectID: p.ID, FilePath: "projects/1/b.csv", FileType: "csv"}
	_, err := r.CreateWithJob(ctx, ds, func(*model.Dataset) (*model.Job, error) {
		// collides with an existing primary key
		return &model.Job{ID: existing.ID, Type: model.JobTypeProcessDataset, Status: model.JobStatusPending}, nil
	})
	require.Error(t, err)

	assert.Zero(t, countRows(t, d, &model.Dataset{}))
	assert.Equal(t, int64(1), countRows(t, d, &model.Job{}))

	_, err = r.CreateWithJob(ctx, &model.Dataset{Name: "x", ProjectID: p.ID, FilePath: "projects/1/c.csv", FileType: "csv"},
		func(*model.Dataset) (*model.Job, error) { return nil, errors.New("build failed") })
	require.Error(t, err)
	assert.Zero(t, countRows(t, d, &model.Dataset{}))
}

func TestDatasetRepo_CreateRequiresProject(t *testing.T) {
	d := setupTestDB(t)
	_, err := NewDatasetRepo(d).CreateWithJob(context.Background(),
		&model.Dataset{Name: "orphan", ProjectID: 999, FilePath: "projects/999/x.csv", FileType: "csv"}, processJob)
	assert.Error(t, err)
	assert.Zero(t, countRows(t, d, &model.Job{}))
}

func TestDatasetRepo_Delete(t *testing.T) {
	d := setupTestDB(t)
	u := seedUser(t, d, "owner@example.com")
	p := seedProject(t, d, u.ID, "p")
	r := NewDatasetRepo(d)
	ctx := context.Background()

	ds := &model.Dataset{Name: "sales", ProjectID: p.ID, FilePath: "projects/1/a.csv", FileType: "csv"}
	_, err := r.CreateWithJob(ctx, ds, processJob)
	require.NoError(t, err)

	deleted, err := r.Delete(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "projects/1/a.csv", deleted.FilePath)
	_, err = r.Get(ctx, ds.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = r.Delete(ctx, ds.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
