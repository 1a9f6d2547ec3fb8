package repo

import (
	"context"
	"testing"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFeatureFlagRepo(t *testing.T) {
	r := NewFeatureFlagRepo(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &model.FeatureFlag{Name: "beta_features"}))
	require.NoError(t, r.Create(ctx, &model.FeatureFlag{Name: "ai_suggestions", Enabled: true}))

	err := r.Create(ctx, &model.FeatureFlag{Name: "beta_features", Enabled: true})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ai_suggestions", list[0].Name)
	assert.False(t, list[1].Enabled, "duplicate create left the flag untouched")

	f, err := r.SetEnabled(ctx, "beta_features", true)
	require.NoError(t, err)
	assert.True(t, f.Enabled)

	_, err = r.SetEnabled(ctx, "missing", true)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
