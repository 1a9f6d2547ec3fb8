package service

import (
	"context"
	"errors"
	"time"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"github.com/datapilot-io/datapilot/internal/pkg/paging"
	"github.com/datapilot-io/datapilot/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type AuditEntry struct {
	UserID     *int64
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
}

type AuditService interface {
	// Append records e. It never fails the caller: write errors are logged
	// and counted instead.
	Append(ctx context.Context, e AuditEntry)
	ListByUser(ctx context.Context, in ListAuditLogsInput) (*ListAuditLogsOutput, error)
	// ListByEntity returns every entry for the entity. Callers must have
	// authorized the actor against the entity's owner first.
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*model.AuditLog, error)
	// ListByEntityForUser is ListByEntity narrowed to entries userID wrote.
	ListByEntityForUser(ctx context.Context, userID int64, entityType, entityID string, limit int) ([]*model.AuditLog, error)
}

type auditService struct {
	r   repo.AuditLogRepo
	log *zap.Logger
}

func NewAuditService(r repo.AuditLogRepo, log *zap.Logger) AuditService {
	return &auditService{r: r, log: log}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *auditService) Append(ctx context.Context, e AuditEntry) {
	// the write must outlive a cancelled request
	ctx = context.WithoutCancel(ctx)

	entry := &model.AuditLog{
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: optString(e.EntityType),
		EntityID:   optString(e.EntityID),
		Details:    datatypes.JSONMap(e.Details),
	}
	if entry.Details == nil {
		entry.Details = datatypes.JSONMap{}
	}

	if err := s.r.Create(ctx, entry); err != nil {
		telemetry.RecordAuditFailure(ctx, e.Action)
		fields := []zap.Field{
			zap.String("action", e.Action),
			zap.String("entity_type", e.EntityType),
			zap.String("entity_id", e.EntityID),
			zap.Error(err),
		}
		if e.UserID != nil {
			fields = append(fields, zap.Int64("user_id", *e.UserID))
		}
		s.log.Error("audit write failed", fields...)
	}
}

type ListAuditLogsInput struct {
	UserID int64
	Limit  int
	Cursor string
}

type ListAuditLogsOutput struct {
	Items      []*model.AuditLog `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
	HasMore    bool              `json:"has_more"`
}

func (s *auditService) ListByUser(ctx context.Context, in ListAuditLogsInput) (*ListAuditLogsOutput, error) {
	limit := paging.ClampLimit(in.Limit)

	var afterT time.Time
	var afterID int64
	if in.Cursor != "" {
		var err error
		afterT, afterID, err = paging.DecodeCursor(in.Cursor)
		if err != nil {
			return nil, errors.Join(ErrInvalidCursor, err)
		}
	}

	items, err := s.r.ListByUser(ctx, in.UserID, afterT, afterID, limit+1)
	if err != nil {
		return nil, err
	}

	out := &ListAuditLogsOutput{Items: items}
	if len(items) > limit {
		out.HasMore = true
		out.Items = items[:limit]
		last := out.Items[len(out.Items)-1]
		out.NextCursor = paging.EncodeCursor(last.CreatedAt, last.ID)
	}
	return out, nil
}

func (s *auditService) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*model.AuditLog, error) {
	return s.r.ListByEntity(ctx, entityType, entityID, paging.ClampLimit(limit))
}

func (s *auditService) ListByEntityForUser(ctx context.Context, userID int64, entityType, entityID string, limit int) ([]*model.AuditLog, error) {
	return s.r.ListByEntityForUser(ctx, userID, entityType, entityID, paging.ClampLimit(limit))
}
