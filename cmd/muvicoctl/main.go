// Command muvicoctl runs maintenance tasks against a MuViCo deployment:
// schema migrations, demo data and admin promotion.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muvico/platform/internal/app"
	"github.com/muvico/platform/internal/config"
	"github.com/muvico/platform/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "muvicoctl",
	Short:         "Maintenance commands for the MuViCo API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newMigrateCmd(), newSeedCmd(), newPromoteCmd())
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openApp loads configuration and assembles the application. Commands that
// touch the schema require the postgres backend.
func openApp(ctx context.Context, migrate bool) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr := logger.New(cfg.Env)
	a, err := app.New(ctx, cfg, logr, app.Options{Migrate: migrate})
	if err != nil {
		return nil, nil, err
	}
	return a, logr, nil
}

func requirePostgres(a *app.App) error {
	if a.DB == nil {
		return fmt.Errorf("command requires DATA_BACKEND=postgres")
	}
	return nil
}
