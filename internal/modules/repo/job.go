package repo

import (
	"context"
	"time"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatusChange is the set of columns written by a status transition.
type JobStatusChange struct {
	Status model.JobStatus
	Result datatypes.JSON
	Error  *string
}

type JobRepo interface {
	Create(ctx context.Context, j *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	// UpdateStatusCAS applies change only while the row is still in expected.
	// It reports false when another writer got there first.
	UpdateStatusCAS(ctx context.Context, id string, expected model.JobStatus, change JobStatusChange) (bool, error)
	ListPending(ctx context.Context, limit int) ([]*model.Job, error)
	ListStuck(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.Job, error)
}

type jobRepo struct{ db *gorm.DB }

func NewJobRepo(db *gorm.DB) JobRepo {
	return &jobRepo{db: db}
}

func (r *jobRepo) Create(ctx context.Context, j *model.Job) error {
	return r.db.WithContext(ctx).Create(j).Error
}

func (r *jobRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *jobRepo) UpdateStatusCAS(ctx context.Context, id string, expected model.JobStatus, change JobStatusChange) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Job{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]any{
			"status":     change.Status,
			"result":     change.Result,
			"error":      change.Error,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *jobRepo) ListPending(ctx context.Context, limit int) ([]*model.Job, error) {
	var items []*model.Job
	return items, r.db.WithContext(ctx).
		Where("status = ?", model.JobStatusPending).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error
}

func (r *jobRepo) ListStuck(ctx context.Context, updatedBefore time.Time, limit int) ([]*model.Job, error) {
	var items []*model.Job
	return items, r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.JobStatusProcessing, updatedBefore).
		Order("updated_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error
}
