package service

import (
	"github.com/datapilot-io/datapilot/internal/config"
)

// AccessGate is the single ownership check for projects and datasets.
type AccessGate interface {
	Authorize(actorID, ownerID int64) error
	BypassActive() bool
}

type accessGate struct {
	cfg *config.Config
}

func NewAccessGate(cfg *config.Config) AccessGate {
	return &accessGate{cfg: cfg}
}

// BypassActive is re-evaluated on every call. It can never be true in production.
func (g *accessGate) BypassActive() bool {
	return g.cfg.Auth.DevOwnershipBypass && !g.cfg.IsProduction()
}

func (g *accessGate) Authorize(actorID, ownerID int64) error {
	if actorID == ownerID || g.BypassActive() {
		return nil
	}
	return ErrForbidden
}
