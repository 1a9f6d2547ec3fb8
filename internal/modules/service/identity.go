package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/modules/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Session carries whatever identity the authentication layer produced.
// UserID may be any integer type, a JSON number, a numeric string or nil.
type Session struct {
	UserID any
	Email  string
}

type IdentityResolver interface {
	// Resolve returns the canonical user id for s. The order is: a positive
	// integer UserID, then an exact email match, then the earliest user when the
	// dev fallback is allowed. Anything else is ErrUnresolvableIdentity.
	Resolve(ctx context.Context, s Session) (int64, error)
}

type identityResolver struct {
	users repo.UserRepo
	cfg   *config.Config
	log   *zap.Logger
}

func NewIdentityResolver(users repo.UserRepo, cfg *config.Config, log *zap.Logger) IdentityResolver {
	return &identityResolver{users: users, cfg: cfg, log: log}
}

func (r *identityResolver) Resolve(ctx context.Context, s Session) (int64, error) {
	if id, ok := ParseUserID(s.UserID); ok {
		return id, nil
	}

	if email := strings.TrimSpace(s.Email); email != "" {
		u, err := r.users.GetByEmail(ctx, email)
		if err == nil {
			return u.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}

	if r.firstUserFallbackActive() {
		u, err := r.users.First(ctx)
		if err == nil {
			r.log.Warn("identity resolved by first-user fallback", zap.Int64("user_id", u.ID))
			return u.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}

	return 0, ErrUnresolvableIdentity
}

func (r *identityResolver) firstUserFallbackActive() bool {
	return r.cfg.Auth.AllowFirstUserFallback && !r.cfg.IsProduction()
}

// ParseUserID accepts a positive, finite integer in any of the shapes a
// session may carry. Non-numeric strings are rejected, never defaulted.
func ParseUserID(v any) (int64, bool) {
	var id int64
	switch x := v.(type) {
	case int:
		id = int64(x)
	case int8:
		id = int64(x)
	case int16:
		id = int64(x)
	case int32:
		id = int64(x)
	case int64:
		id = x
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		id = int64(x)
	case uint8:
		id = int64(x)
	case uint16:
		id = int64(x)
	case uint32:
		id = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		id = int64(x)
	case float32:
		return parseFloatID(float64(x))
	case float64:
		return parseFloatID(x)
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			f, ferr := x.Float64()
			if ferr != nil {
				return 0, false
			}
			return parseFloatID(f)
		}
		id = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	default:
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return id, true
}

// maxExactFloat is the largest integer a float64 represents exactly.
const maxExactFloat = 1 << 53

func parseFloatID(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f <= 0 || f > maxExactFloat {
		return 0, false
	}
	return int64(f), true
}
