package repo

import (
	"context"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"gorm.io/gorm"
)

type FeatureFlagRepo interface {
	Create(ctx context.Context, f *model.FeatureFlag) error
	GetByName(ctx context.Context, name string) (*model.FeatureFlag, error)
	List(ctx context.Context) ([]*model.FeatureFlag, error)
	SetEnabled(ctx context.Context, name string, enabled bool) (*model.FeatureFlag, error)
}

type featureFlagRepo struct{ db *gorm.DB }

func NewFeatureFlagRepo(db *gorm.DB) FeatureFlagRepo {
	return &featureFlagRepo{db: db}
}

func (r *featureFlagRepo) Create(ctx context.Context, f *model.FeatureFlag) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *featureFlagRepo) GetByName(ctx context.Context, name string) (*model.FeatureFlag, error) {
	var f model.FeatureFlag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *featureFlagRepo) List(ctx context.Context) ([]*model.FeatureFlag, error) {
	var items []*model.FeatureFlag
	return items, r.db.WithContext(ctx).Order("name ASC").Find(&items).Error
}

func (r *featureFlagRepo) SetEnabled(ctx context.Context, name string, enabled bool) (*model.FeatureFlag, error) {
	res := r.db.WithContext(ctx).
		Model(&model.FeatureFlag{}).
		Where("name = ?", name).
		Update("enabled", enabled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByName(ctx, name)
}
