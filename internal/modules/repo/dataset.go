package repo

import (
	"context"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"gorm.io/gorm"
)

type DatasetRepo interface {
	// CreateWithJob inserts ds and the job built by newJob in one transaction.
	// newJob runs after ds has its id.
	CreateWithJob(ctx context.Context, ds *model.Dataset, newJob func(ds *model.Dataset) (*model.Job, error)) (*model.Job, error)
	Get(ctx context.Context, id int64) (*model.Dataset, error)
	ListByProject(ctx context.Context, projectID int64) ([]*model.Dataset, error)
	// Delete removes the row and returns it as it was before the delete.
	Delete(ctx context.Context, id int64) (*model.Dataset, error)
}

type datasetRepo struct{ db *gorm.DB }

func NewDatasetRepo(db *gorm.DB) DatasetRepo {
	return &datasetRepo{db: db}
}

func (r *datasetRepo) CreateWithJob(ctx context.Context, ds *model.Dataset, newJob func(ds *model.Dataset) (*model.Job, error)) (*model.Job, error) {
	var job *model.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ds).Error; err != nil {
			return err
		}
		j, err := newJob(ds)
		if err != nil {
			return err
		}
		if err := tx.Create(j).Error; err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *datasetRepo) Get(ctx context.Context, id int64) (*model.Dataset, error) {
	var ds model.Dataset
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ds).Error; err != nil {
		return nil, err
	}
	return &ds, nil
}

func (r *datasetRepo) ListByProject(ctx context.Context, projectID int64) ([]*model.Dataset, error) {
	var items []*model.Dataset
	return items, r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
}

func (r *datasetRepo) Delete(ctx context.Context, id int64) (*model.Dataset, error) {
	var ds model.Dataset
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&ds).Error; err != nil {
			return err
		}
		return tx.Delete(&ds).Error
	})
	if err != nil {
		return nil, err
	}
	return &ds, nil
}
