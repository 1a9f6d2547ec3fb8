package bootstrap

import (
	"context"

	"github.com/datapilot-io/datapilot/internal/config"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"go.uber.org/zap"
)

// EnsureDefaultFeatureFlags creates the configured default flags that are
// missing when the service starts. Existing flags keep their stored value.
func EnsureDefaultFeatureFlags(ctx context.Context, flags service.FeatureFlagService, cfg *config.Config, log *zap.Logger) error {
	if len(cfg.FeatureFlags.Defaults) == 0 {
		return nil
	}
	created, err := flags.SeedDefaults(ctx, cfg.FeatureFlags.Defaults)
	if err != nil {
		return err
	}
	log.Sugar().Infow("default feature flags ensured", "created", created, "configured", len(cfg.FeatureFlags.Defaults))
	return nil
}
