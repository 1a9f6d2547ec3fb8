package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATAPILOT_CONFIG", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "datapilot", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Jobs.StuckAfter)
	assert.Equal(t, 3600, cfg.Redis.JobTTLSec)
	assert.False(t, cfg.Auth.DevOwnershipBypass)
	assert.False(t, cfg.Auth.AllowFirstUserFallback)
	assert.Contains(t, cfg.FeatureFlags.Defaults, "ai_suggestions")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATAPILOT_CONFIG", t.TempDir())
	t.Setenv("DATAPILOT_APP_ENV", "staging")
	t.Setenv("DATAPILOT_STORAGE_MAXUPLOADBYTES", "2048")
	t.Setenv("DATAPILOT_AUTH_DEVOWNERSHIPBYPASS", "true")
	t.Setenv("DATAPILOT_JOBS_STUCKAFTER", "90s")
	t.Setenv("DATAPILOT_FEATUREFLAGS_OVERRIDES", "beta_features=true, ai_suggestions=false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Env)
	assert.Equal(t, int64(2048), cfg.Storage.MaxUploadBytes)
	assert.True(t, cfg.Auth.DevOwnershipBypass)
	assert.Equal(t, 90*time.Second, cfg.Jobs.StuckAfter)
	assert.Equal(t, map[string]bool{"beta_features": true, "ai_suggestions": false}, cfg.FeatureFlags.Overrides)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("DATAPILOT_CONFIG", t.TempDir())
	t.Setenv("DATAPILOT_APP_ENV", "production")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATAPILOT_AUTH_JWTSECRET", "a-real-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestParseFlagOverrides(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]bool
		wantErr bool
	}{
		{name: "empty", raw: "", want: map[string]bool{}},
		{name: "single", raw: "a=true", want: map[string]bool{"a": true}},
		{name: "spaces", raw: " a = false , b=1 ", want: map[string]bool{"a": false, "b": true}},
		{name: "missing value", raw: "a", wantErr: true},
		{name: "bad bool", raw: "a=maybe", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlagOverrides(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
