package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/soupcal/internal/app"
	"github.com/dharsanguruparan/soupcal/internal/config"
	"github.com/dharsanguruparan/soupcal/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "soupcal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "soupcal",
		Short: "Soup calendar operator CLI",
		Long: `soupcal imports soup calendars, sends subscriber notifications and manages Slack
team integrations. Configuration comes from SOUPCAL_* environment variables and the
optional YAML file named by SOUPCAL_CONFIG.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMigrateCmd(),
		newImportCmd(),
		newNotifyCmd(),
		newIntegrationCmd(),
		newRunCmd(),
	)
	return cmd
}

// withApp loads and validates the configuration, builds the App and hands it
// to fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
