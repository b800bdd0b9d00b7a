package main

import (
	"context"
	"fmt"
	"strconv"

	"jnestagram/internal/config"
	"jnestagram/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newMigrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply model migrations and pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, db *gorm.DB, _ *config.Config) error {
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			e.printf("schema up to date\n")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List SQL migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: e.run(func(ctx context.Context, db *gorm.DB, _ *config.Config) error {
			var applied []database.MigrationLog
			if err := db.WithContext(ctx).Order("version").Find(&applied).Error; err != nil {
				return fmt.Errorf("read migration log: %w", err)
			}
			done := make(map[int]bool, len(applied))
			for _, m := range applied {
				done[m.Version] = true
			}
			for _, m := range database.GetMigrations() {
				state := "pending"
				if done[m.Version] {
					state = "applied"
				}
				e.printf("%-8s %s\n", state, m.String())
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down <version>",
		Short: "Roll back one applied SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return e.run(func(ctx context.Context, db *gorm.DB, _ *config.Config) error {
				if err := database.RollbackMigration(ctx, db, version); err != nil {
					return err
				}
				e.printf("rolled back %06d\n", version)
				return nil
			})(cmd, args)
		},
	})
	return cmd
}
