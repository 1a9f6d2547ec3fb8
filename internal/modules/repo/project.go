package repo

import (
	"context"
	"time"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"gorm.io/gorm"
)

type ProjectRepo interface {
	Create(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, id int64) (*model.Project, error)
	ListByUser(ctx context.Context, userID int64, afterUpdatedAt time.Time, afterID int64, limit int) ([]*model.Project, error)
	Update(ctx context.Context, p *model.Project, fields map[string]any) error
	// Delete removes the project and its dataset rows, returning the storage
	// keys the caller must clean up after commit.
	Delete(ctx context.Context, id int64) ([]string, error)
}

type projectRepo struct{ db *gorm.DB }

func NewProjectRepo(db *gorm.DB) ProjectRepo {
	return &projectRepo{db: db}
}

func (r *projectRepo) Create(ctx context.Context, p *model.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *projectRepo) Get(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) ListByUser(ctx context.Context, userID int64, afterUpdatedAt time.Time, afterID int64, limit int) ([]*model.Project, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)

	if !afterUpdatedAt.IsZero() && afterID != 0 {
		q = q.Where(
			"(updated_at < ?) OR (updated_at = ? AND id < ?)",
			afterUpdatedAt, afterUpdatedAt, afterID,
		)
	}

	var items []*model.Project
	return items, q.Order("updated_at DESC, id DESC").Limit(limit).Find(&items).Error
}

func (r *projectRepo) Update(ctx context.Context, p *model.Project, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(p).Updates(fields).Error
}

func (r *projectRepo) Delete(ctx context.Context, id int64) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Dataset{}).Where("project_id = ?", id).Pluck("file_path", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&model.Dataset{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
