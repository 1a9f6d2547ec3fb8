package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datapilot-io/datapilot/internal/infra/blob"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"github.com/datapilot-io/datapilot/internal/pkg/paging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProjectService interface {
	Create(ctx context.Context, in CreateProjectInput) (*model.Project, error)
	// Get loads a project and authorizes actorID against its owner.
	Get(ctx context.Context, actorID, id int64) (*model.Project, error)
	List(ctx context.Context, in ListProjectsInput) (*ListProjectsOutput, error)
	Update(ctx context.Context, in UpdateProjectInput) (*model.Project, error)
	Delete(ctx context.Context, actorID, id int64) error
}

type projectService struct {
	r     repo.ProjectRepo
	gate  AccessGate
	store blob.Storage
	audit AuditService
	log   *zap.Logger
}

func NewProjectService(r repo.ProjectRepo, gate AccessGate, store blob.Storage, audit AuditService, log *zap.Logger) ProjectService {
	return &projectService{r: r, gate: gate, store: store, audit: audit, log: log}
}

type CreateProjectInput struct {
	UserID      int64
	Name        string
	Description *string
}

func (s *projectService) Create(ctx context.Context, in CreateProjectInput) (*model.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrProjectNameRequired
	}
	p := &model.Project{Name: name, Description: in.Description, UserID: in.UserID}
	if err := s.r.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.audit.Append(ctx, AuditEntry{
		UserID:     &in.UserID,
		Action:     model.AuditActionProjectCreate,
		EntityType: "project",
		EntityID:   fmt.Sprint(p.ID),
		Details:    map[string]any{"name": p.Name},
	})
	return p, nil
}

func (s *projectService) Get(ctx context.Context, actorID, id int64) (*model.Project, error) {
	p, err := s.r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if err := s.gate.Authorize(actorID, p.UserID); err != nil {
		return nil, err
	}
	return p, nil
}

type ListProjectsInput struct {
	UserID int64
	Limit  int
	Cursor string
}

type ListProjectsOutput struct {
	Items      []*model.Project `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

func (s *projectService) List(ctx context.Context, in ListProjectsInput) (*ListProjectsOutput, error) {
	limit := paging.ClampLimit(in.Limit)

	// cursor is (updated_at, id) of the last item seen
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

	out := &ListProjectsOutput{Items: items}
	if len(items) > limit {
		out.HasMore = true
		out.Items = items[:limit]
		last := out.Items[len(out.Items)-1]
		out.NextCursor = paging.EncodeCursor(last.UpdatedAt, last.ID)
	}
	return out, nil
}

type UpdateProjectInput struct {
	ActorID     int64
	ID          int64
	Name        *string
	Description *string
}

func (s *projectService) Update(ctx context.Context, in UpdateProjectInput) (*model.Project, error) {
	p, err := s.Get(ctx, in.ActorID, in.ID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrProjectNameRequired
		}
		fields["name"] = name
	}
	if in.Description != nil {
		fields["description"] = in.Description
	}
	if err := s.r.Update(ctx, p, fields); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}

	s.audit.Append(ctx, AuditEntry{
		UserID:     &in.ActorID,
		Action:     model.AuditActionProjectUpdate,
		EntityType: "project",
		EntityID:   fmt.Sprint(p.ID),
		Details:    map[string]any{"fields": len(fields)},
	})
	return s.r.Get(ctx, p.ID)
}

func (s *projectService) Delete(ctx context.Context, actorID, id int64) error {
	p, err := s.Get(ctx, actorID, id)
	if err != nil {
		return err
	}

	keys, err := s.r.Delete(ctx, p.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("delete project: %w", err)
	}

	// rows are gone; stored objects are best effort from here
	cleanupCtx := context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.store.Delete(cleanupCtx, key); err != nil && !errors.Is(err, blob.ErrObjectNotFound) {
			s.log.Error("delete dataset object failed", zap.Int64("project_id", p.ID), zap.String("key", key), zap.Error(err))
		}
	}

	s.audit.Append(ctx, AuditEntry{
		UserID:     &actorID,
		Action:     model.AuditActionProjectDelete,
		EntityType: "project",
		EntityID:   fmt.Sprint(p.ID),
		Details:    map[string]any{"datasets": len(keys)},
	})
	return nil
}
