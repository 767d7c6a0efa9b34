// Command migrate applies, scaffolds and lints the goose schema migrations.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/db"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/migrate"
)

var dir string

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Manage the Gebeya postgres schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory (defaults to the set compiled into the binary)")
	rootCmd.AddCommand(
		dbCommand("up", "Apply every pending migration", cobra.NoArgs, func(ctx context.Context, r *migrate.Runner, _ []string) error {
			return r.Up(ctx)
		}),
		dbCommand("down", "Roll back the latest migration", cobra.NoArgs, func(ctx context.Context, r *migrate.Runner, _ []string) error {
			return r.Down(ctx)
		}),
		dbCommand("status", "List migrations and whether they are applied", cobra.NoArgs, func(ctx context.Context, r *migrate.Runner, _ []string) error {
			return r.Status(ctx)
		}),
		dbCommand("to <version>", "Migrate up or down to a YYYYMMDDHHMMSS version", cobra.ExactArgs(1), func(ctx context.Context, r *migrate.Runner, args []string) error {
			return r.To(ctx, args[0])
		}),
		createCmd,
		validateCmd,
	)
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Scaffold an empty SQL migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := migrate.CreateSQLMigration(fileDir(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "created migration:", path)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check filenames, versions and goose annotations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, err := migrate.ValidateDir(fileDir())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migration validation passed (%d files)\n", n)
		return nil
	},
}

// fileDir is where filesystem-only commands operate; they cannot write into
// the embedded set.
func fileDir() string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

type dbAction func(context.Context, *migrate.Runner, []string) error

func dbCommand(use, short string, args cobra.PositionalArgs, action dbAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DB.Driver == "sqlite" {
				return errors.New("goose migrations target postgres; sqlite schemas are built with GEBEYA_AUTO_MIGRATE")
			}
			logg := logger.New(logger.Options{
				ServiceName: "migrate",
				Level:       logger.ParseLevel(cfg.App.LogLevel),
				Format:      cfg.App.LogFormat,
			})
			ctx := logg.WithFields(cmd.Context(), map[string]any{"env": cfg.App.Env, "cmd": cmd.Name()})

			client, err := db.New(ctx, cfg.DB, logg)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer func() { err = multierr.Append(err, client.Close()) }()

			sqlDB, err := client.SQL()
			if err != nil {
				return err
			}
			runner, err := migrate.NewRunner(sqlDB, migrate.Source(dir), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := action(ctx, runner, args); err != nil {
				logg.Error(ctx, "migration failed", err)
				return err
			}
			return nil
		},
	}
}
