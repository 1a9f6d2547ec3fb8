package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"github.com/datapilot-io/datapilot/internal/pkg/utils/password"
	"gorm.io/gorm"
)

type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, in LoginInput) (*LoginOutput, error)
	Get(ctx context.Context, id int64) (*model.User, error)
}

type userService struct {
	r      repo.UserRepo
	tokens TokenIssuer
	audit  AuditService
	cfg    *config.Config
}

func NewUserService(r repo.UserRepo, tokens TokenIssuer, audit AuditService, cfg *config.Config) UserService {
	return &userService{r: r, tokens: tokens, audit: audit, cfg: cfg}
}

// NormalizeEmail is applied on both register and login so lookups stay exact.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := NormalizeEmail(in.Email)

	if _, err := s.r.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := password.Hash(in.Password, s.cfg.Auth.PasswordPepper)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{Name: strings.TrimSpace(in.Name), Email: email, PasswordHash: hash}
	if err := s.r.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.audit.Append(ctx, AuditEntry{
		UserID:     &u.ID,
		Action:     model.AuditActionUserRegister,
		EntityType: "user",
		EntityID:   fmt.Sprint(u.ID),
	})
	return u, nil
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginOutput struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (s *userService) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	u, err := s.r.GetByEmail(ctx, NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := password.Verify(in.Password, s.cfg.Auth.PasswordPepper, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.audit.Append(ctx, AuditEntry{
		UserID:     &u.ID,
		Action:     model.AuditActionUserLogin,
		EntityType: "user",
		EntityID:   fmt.Sprint(u.ID),
	})
	return &LoginOutput{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
