package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var flagNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-.]{0,63}$`)

// ValidFlagName reports whether name is an acceptable feature flag key.
func ValidFlagName(name string) bool {
	return flagNamePattern.MatchString(name)
}

type FeatureFlagService interface {
	Get(ctx context.Context, name string) (*model.FeatureFlag, error)
	List(ctx context.Context) ([]*model.FeatureFlag, error)
	Create(ctx context.Context, in CreateFeatureFlagInput) (*model.FeatureFlag, error)
	SetEnabled(ctx context.Context, in SetFeatureFlagInput) (*model.FeatureFlag, error)
	// IsEnabled resolves override, then store, then def.
	IsEnabled(ctx context.Context, name string, def bool) bool
	// SeedDefaults creates missing flags and never touches existing ones.
	SeedDefaults(ctx context.Context, defaults map[string]bool) (int, error)
}

type featureFlagService struct {
	r     repo.FeatureFlagRepo
	audit AuditService
	log   *zap.Logger
	cfg   *config.Config
}

func NewFeatureFlagService(r repo.FeatureFlagRepo, audit AuditService, log *zap.Logger, cfg *config.Config) FeatureFlagService {
	return &featureFlagService{r: r, audit: audit, log: log, cfg: cfg}
}

// effective applies the environment override to f without touching storage.
func (s *featureFlagService) effective(f *model.FeatureFlag) *model.FeatureFlag {
	if v, ok := s.cfg.FeatureFlags.Overrides[f.Name]; ok {
		out := *f
		out.Enabled = v
		out.Overridden = true
		return &out
	}
	return f
}

func (s *featureFlagService) Get(ctx context.Context, name string) (*model.FeatureFlag, error) {
	f, err := s.r.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeatureFlagNotFound
		}
		return nil, err
	}
	return s.effective(f), nil
}

func (s *featureFlagService) List(ctx context.Context) ([]*model.FeatureFlag, error) {
	items, err := s.r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.FeatureFlag, len(items))
	for i, f := range items {
		out[i] = s.effective(f)
	}
	return out, nil
}

type CreateFeatureFlagInput struct {
	Name        string
	Description *string
	Enabled     bool
	UserID      *int64
}

func (s *featureFlagService) Create(ctx context.Context, in CreateFeatureFlagInput) (*model.FeatureFlag, error) {
	if !ValidFlagName(in.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFlagName, in.Name)
	}

	if _, err := s.r.GetByName(ctx, in.Name); err == nil {
		return nil, ErrFeatureFlagExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	f := &model.FeatureFlag{Name: in.Name, Description: in.Description, Enabled: in.Enabled}
	if err := s.r.Create(ctx, f); err != nil {
		// lost a race with a concurrent create
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrFeatureFlagExists
		}
		return nil, err
	}

	s.audit.Append(ctx, AuditEntry{
		UserID:     in.UserID,
		Action:     model.AuditActionFeatureFlagCreate,
		EntityType: "feature_flag",
		EntityID:   f.Name,
		Details:    map[string]any{"enabled": f.Enabled},
	})
	return s.effective(f), nil
}

type SetFeatureFlagInput struct {
	Name    string
	Enabled bool
	UserID  *int64
}

func (s *featureFlagService) SetEnabled(ctx context.Context, in SetFeatureFlagInput) (*model.FeatureFlag, error) {
	f, err := s.r.SetEnabled(ctx, in.Name, in.Enabled)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeatureFlagNotFound
		}
		return nil, err
	}

	s.audit.Append(ctx, AuditEntry{
		UserID:     in.UserID,
		Action:     model.AuditActionFeatureFlagUpdate,
		EntityType: "feature_flag",
		EntityID:   f.Name,
		Details:    map[string]any{"enabled": f.Enabled},
	})
	return s.effective(f), nil
}

func (s *featureFlagService) IsEnabled(ctx context.Context, name string, def bool) bool {
	if v, ok := s.cfg.FeatureFlags.Overrides[name]; ok {
		return v
	}
	f, err := s.r.GetByName(ctx, name)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("read feature flag failed, using default", zap.String("name", name), zap.Error(err))
		}
		return def
	}
	return f.Enabled
}

func (s *featureFlagService) SeedDefaults(ctx context.Context, defaults map[string]bool) (int, error) {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	created := 0
	for _, name := range names {
		if !ValidFlagName(name) {
			return created, fmt.Errorf("%w: %q", ErrInvalidFlagName, name)
		}
		if _, err := s.r.GetByName(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}
		err := s.r.Create(ctx, &model.FeatureFlag{Name: name, Enabled: defaults[name]})
		if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return created, err
		}
		if err == nil {
			created++
		}
	}
	return created, nil
}
