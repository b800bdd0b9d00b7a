package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"jnestagram/internal/config"
	"jnestagram/internal/counters"
	"jnestagram/internal/featureflags"
	"jnestagram/internal/models"
	"jnestagram/internal/repository"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newRecountCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "recount",
		Short: "Rebuild every likes, comments and replies counter from its rows",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, db *gorm.DB, _ *config.Config) error {
			report, err := counters.New().RecountAll(ctx, db)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(report))
			for name := range report {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				e.printf("%-24s %d\n", name, report[name])
			}
			e.printf("%-24s %d\n", "total", report.Total())
			return nil
		}),
	}
}

func newStaffCmd(e *env) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "staff <username>",
		Short: "Grant or revoke comment moderation rights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.run(func(ctx context.Context, db *gorm.DB, _ *config.Config) error {
				if err := repository.NewUserRepository(db).SetStaff(ctx, args[0], !revoke); err != nil {
					return err
				}
				e.printf("%s staff=%t\n", args[0], !revoke)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "Remove staff rights instead")
	return cmd
}

func gate(db *gorm.DB, cfg *config.Config) *featureflags.Gate {
	return featureflags.NewGate(repository.NewFeatureRepository(db), featureflags.NewManager(cfg.FeatureFlags), cfg.Staging)
}

func newLandingCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "landing",
		Short: "List or switch landing pages",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
			pages, err := gate(db, cfg).ListLandingPages(ctx)
			if err != nil {
				return err
			}
			for _, p := range pages {
				e.printf("%-20s %t\n", p.Name, p.IsActive)
			}
			return nil
		}),
	}

	switchCmd := func(use string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:     use + " [name]",
			Short:   fmt.Sprintf("Switch a landing page %s (default %s)", use, models.MaintenancePage),
			Args:    cobra.MaximumNArgs(1),
			Example: "  jnestagramctl landing " + use,
			RunE: func(cmd *cobra.Command, args []string) error {
				name := models.MaintenancePage
				if len(args) == 1 {
					name = args[0]
				}
				return e.run(func(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
					if err := gate(db, cfg).SetLandingPage(ctx, name, active); err != nil {
						return err
					}
					e.printf("%s is_active=%t\n", name, active)
					return nil
				})(cmd, args)
			},
		}
	}
	cmd.AddCommand(switchCmd("on", true), switchCmd("off", false))
	return cmd
}

func newFeatureCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "List or save feature flags",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
			features, err := gate(db, cfg).ListFeatures(ctx)
			if err != nil {
				return err
			}
			for _, f := range features {
				e.printf("%-24s staging=%t production=%t developer=%s\n",
					f.Name, f.StagingEnabled, f.ProductionEnabled, f.Developer)
			}
			return nil
		}),
	}

	var developer string
	set := &cobra.Command{
		Use:   "set <name> <staging> <production>",
		Short: "Create or update a feature",
		Example: `  jnestagramctl feature set new-feed true false
  jnestagramctl feature set new-feed true true --developer alice`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			staging, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("staging: %w", err)
			}
			production, err := strconv.ParseBool(args[2])
			if err != nil {
				return fmt.Errorf("production: %w", err)
			}
			return e.run(func(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
				feature := &models.Feature{
					Name:              args[0],
					Developer:         developer,
					StagingEnabled:    staging,
					ProductionEnabled: production,
				}
				if err := gate(db, cfg).SaveFeature(ctx, feature); err != nil {
					return err
				}
				e.printf("%s staging=%t production=%t\n", feature.Name, staging, production)
				return nil
			})(cmd, args)
		},
	}
	set.Flags().StringVar(&developer, "developer", "", "Owner of the feature")
	cmd.AddCommand(set)
	return cmd
}
