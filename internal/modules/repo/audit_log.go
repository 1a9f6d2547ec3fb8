package repo

import (
	"context"
	"time"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"gorm.io/gorm"
)

type AuditLogRepo interface {
	Create(ctx context.Context, l *model.AuditLog) error
	ListByUser(ctx context.Context, userID int64, afterCreatedAt time.Time, afterID int64, limit int) ([]*model.AuditLog, error)
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*model.AuditLog, error)
	ListByEntityForUser(ctx context.Context, userID int64, entityType, entityID string, limit int) ([]*model.AuditLog, error)
}

type auditLogRepo struct{ db *gorm.DB }

func NewAuditLogRepo(db *gorm.DB) AuditLogRepo {
	return &auditLogRepo{db: db}
}

func (r *auditLogRepo) Create(ctx context.Context, l *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *auditLogRepo) ListByUser(ctx context.Context, userID int64, afterCreatedAt time.Time, afterID int64, limit int) ([]*model.AuditLog, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)

	if !afterCreatedAt.IsZero() && afterID != 0 {
		q = q.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			afterCreatedAt, afterCreatedAt, afterID,
		)
	}

	var items []*model.AuditLog
	return items, q.Order("created_at DESC, id DESC").Limit(limit).Find(&items).Error
}

func (r *auditLogRepo) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*model.AuditLog, error) {
	var items []*model.AuditLog
	return items, r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&items).Error
}

func (r *auditLogRepo) ListByEntityForUser(ctx context.Context, userID int64, entityType, entityID string, limit int) ([]*model.AuditLog, error) {
	var items []*model.AuditLog
	return items, r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ? AND user_id = ?", entityType, entityID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&items).Error
}
