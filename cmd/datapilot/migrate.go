package main

import (
	"fmt"
	"maps"
	"os"

	"github.com/datapilot-io/datapilot/internal/bootstrap"
	"github.com/datapilot-io/datapilot/internal/infra/db"
	"github.com/datapilot-io/datapilot/internal/modules/service"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

var flagsFile string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and seed default feature flags",
	Long: `Migrates every table and creates missing default feature flags.

--flags-file names a YAML mapping of flag name to default value, merged over
featureflags.defaults from the configuration:

  ai_suggestions: true
  beta_features: false`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&flagsFile, "flags-file", "", "YAML file of default feature flags")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	defaults := maps.Clone(a.cfg.FeatureFlags.Defaults)
	if defaults == nil {
		defaults = map[string]bool{}
	}
	if flagsFile != "" {
		fromFile, err := loadFlagsFile(flagsFile)
		if err != nil {
			return err
		}
		maps.Copy(defaults, fromFile)
	}

	d, err := do.Invoke[*gorm.DB](a.inj)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.releaseDB()
	if err := db.Migrate(d); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	flags := do.MustInvoke[service.FeatureFlagService](a.inj)
	a.cfg.FeatureFlags.Defaults = defaults
	if err := bootstrap.EnsureDefaultFeatureFlags(cmd.Context(), flags, a.cfg, a.log); err != nil {
		return fmt.Errorf("seed feature flags: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
	return nil
}

func loadFlagsFile(path string) (map[string]bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flags file: %w", err)
	}
	var out map[string]bool
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse flags file %s: %w", path, err)
	}
	for name := range out {
		if !service.ValidFlagName(name) {
			return nil, fmt.Errorf("flags file %s: %w: %q", path, service.ErrInvalidFlagName, name)
		}
	}
	return out, nil
}
