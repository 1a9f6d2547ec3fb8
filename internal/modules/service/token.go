package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the session token payload. UID is left untyped because tokens
// from other issuers may encode it as a string; IdentityResolver canonicalizes it.
type Claims struct {
	UID   any    `json:"uid"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type TokenIssuer interface {
	Issue(u *model.User) (token string, expiresAt time.Time, err error)
	Parse(raw string) (*Claims, error)
}

type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(cfg *config.Config) TokenIssuer {
	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &tokenIssuer{
		secret: []byte(cfg.Auth.JWTSecret),
		ttl:    ttl,
		issuer: cfg.App.Name,
		now:    time.Now,
	}
}

func (t *tokenIssuer) Issue(u *model.User) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := Claims{
		UID:   u.ID,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   fmt.Sprint(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (t *tokenIssuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
