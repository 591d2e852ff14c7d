package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/joho/godotenv"
	"github.com/smallbiznis/estately/internal/activity"
	"github.com/smallbiznis/estately/internal/authorization"
	"github.com/smallbiznis/estately/internal/clock"
	"github.com/smallbiznis/estately/internal/config"
	"github.com/smallbiznis/estately/internal/health"
	"github.com/smallbiznis/estately/internal/lead"
	"github.com/smallbiznis/estately/internal/lookup"
	"github.com/smallbiznis/estately/internal/migration"
	"github.com/smallbiznis/estately/internal/observability"
	"github.com/smallbiznis/estately/internal/property"
	"github.com/smallbiznis/estately/internal/query"
	"github.com/smallbiznis/estately/internal/ratelimit"
	"github.com/smallbiznis/estately/internal/seed"
	"github.com/smallbiznis/estately/internal/server"
	"github.com/smallbiznis/estately/internal/tenant"
	"github.com/smallbiznis/estately/internal/tool"
	"github.com/smallbiznis/estately/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "estately",
		Short:        "Real-estate listings data service",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP tool server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				// Core Infrastructure
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				fx.Provide(clock.New),
				db.Module,
				health.Module,
				ratelimit.Module,
				migration.Module,

				// Functional Domains
				authorization.Module,
				tenant.Module,
				lookup.Module,
				property.Module,
				lead.Module,
				activity.Module,
				query.Module,
				seed.Module,

				tool.Module,
				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(),
				fx.Invoke(func(conn *gorm.DB) error {
					return migration.Run(conn)
				}),
			)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the lookup catalog for shared rows and every active tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(),
				fx.Provide(RegisterSnowflake),
				fx.Provide(clock.New),
				ratelimit.Module,
				authorization.Module,
				tenant.Module,
				lookup.Module,
				fx.Provide(seed.New),
				fx.Invoke(func(s *seed.Seeder) error {
					return s.Run(context.Background())
				}),
			)
		},
	}
}

// runOnce builds a short-lived app on top of config, logging and the pool,
// starts it so lifecycle hooks fire, and stops it again.
func runOnce(ctx context.Context, opts ...fx.Option) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(
		append([]fx.Option{
			fx.NopLogger,
			config.Module,
			observability.Module,
			db.Module,
		}, opts...)...,
	)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(context.WithoutCancel(ctx))
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
