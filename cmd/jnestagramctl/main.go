// Command jnestagramctl runs maintenance tasks against the jnestagram
// database: schema migrations, seeding, counter recounts and the staff,
// landing page and feature switches.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"jnestagram/internal/cache"
	"jnestagram/internal/config"
	"jnestagram/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// opener connects to the database. The returned func releases it.
type opener func(ctx context.Context) (*gorm.DB, *config.Config, func(), error)

// env is what every subcommand needs. Tests replace open.
type env struct {
	open    opener
	out     io.Writer
	timeout time.Duration
}

func defaultOpen(_ context.Context) (*gorm.DB, *config.Config, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	// Switches made here invalidate the cached copies the API serves.
	cache.InitRedis(cfg.RedisURL)

	release := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		if rdb := cache.GetClient(); rdb != nil {
			_ = rdb.Close()
		}
	}
	return db, cfg, release, nil
}

func (e *env) run(fn func(ctx context.Context, db *gorm.DB, cfg *config.Config) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), e.timeout)
		defer cancel()

		db, cfg, release, err := e.open(ctx)
		if err != nil {
			return err
		}
		defer release()
		return fn(ctx, db, cfg)
	}
}

func (e *env) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(e.out, format, args...)
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "jnestagramctl",
		Short: "Maintenance tasks for the jnestagram database",
		Long: `jnestagramctl reads the same configuration as the API server
(config.yml and environment variables) and operates on its database.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			e.out = cmd.OutOrStdout()
		},
	}
	root.PersistentFlags().DurationVar(&e.timeout, "timeout", 5*time.Minute, "Operation timeout")

	root.AddCommand(
		newMigrateCmd(e),
		newSeedCmd(e),
		newRecountCmd(e),
		newStaffCmd(e),
		newLandingCmd(e),
		newFeatureCmd(e),
	)
	return root
}

func main() {
	e := &env{open: defaultOpen, out: os.Stdout}
	if err := newRootCmd(e).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
