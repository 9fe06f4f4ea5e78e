package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/soupcal/internal/app"
	"github.com/dharsanguruparan/soupcal/internal/database"
	"github.com/dharsanguruparan/soupcal/internal/importer"
	"github.com/dharsanguruparan/soupcal/internal/model"
	"github.com/dharsanguruparan/soupcal/internal/s3storage"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables and views",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				// app.New already applied the schema; running it again is harmless.
				if err := database.EnsureSchema(ctx, a.Pool); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	var (
		file    string
		user    string
		presign time.Duration
	)
	cmd := &cobra.Command{
		Use:       "import pdf|html [url]",
		Short:     "Import a soup calendar now",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{importer.KindPDF, importer.KindHTML},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if kind != importer.KindPDF && kind != importer.KindHTML {
				return fmt.Errorf("unknown kind %q", kind)
			}
			var url string
			if len(args) == 2 {
				url = args[1]
			}
			if url == "" && file == "" {
				return errors.New("a url or --file is required")
			}
			if file != "" && kind != importer.KindPDF {
				return errors.New("--file only supports pdf")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				var (
					result *model.ImportResult
					err    error
				)
				if file != "" {
					data, rerr := os.ReadFile(file)
					if rerr != nil {
						return fmt.Errorf("read %s: %w", file, rerr)
					}
					result, err = a.Importer.ImportPDFBytes(ctx, file, data, user)
				} else {
					result, err = a.Importer.Import(ctx, kind, url, user)
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, result.Message())
				if result.Rejected > 0 {
					fmt.Fprintf(out, "%d rows rejected\n", result.Rejected)
				}
				if presign > 0 && a.Storage != nil {
					link, err := a.Storage.PresignSourceURL(ctx, kind, result.ID, presign)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "archived source (%s): %s\n", s3storage.SourceKey(kind, result.ID), link)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Import a local PDF instead of fetching a url")
	cmd.Flags().StringVar(&user, "user", "cli", "Recorded as the creator of the imported rows")
	cmd.Flags().DurationVar(&presign, "presign", 0, "Print a signed link to the archived source valid for this long")
	return cmd
}

func newNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "Send the notifications that are due right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Notifier.Notify(ctx)
				if err != nil {
					if model.IsClean(err) {
						fmt.Fprintln(cmd.OutOrStdout(), err)
						return nil
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "subscribers=%d sent=%d skipped=%d no_match=%d failed=%d\n",
					result.Total, result.Sent, result.Skipped, result.NoMatch, result.Failed)
				return result.Err()
			})
		},
	}
}

func newIntegrationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration",
		Short: "Manage Slack team integrations",
	}
	cmd.AddCommand(newIntegrationAddCmd())
	return cmd
}

func newIntegrationAddCmd() *cobra.Command {
	var (
		domain   string
		token    string
		webhook  string
		metadata string
	)
	cmd := &cobra.Command{
		Use:   "add <team-id>",
		Short: "Store the slash command token of a Slack team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required")
			}
			ti := &model.TeamIntegration{
				TeamID:     args[0],
				TeamDomain: domain,
				SlashToken: token,
				WebhookURL: webhook,
				Metadata:   metadata,
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Integrations.UpsertTeamIntegration(ctx, ti); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "integration saved for %s\n", ti.TeamID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Slack team domain")
	cmd.Flags().StringVar(&token, "token", "", "Slash command verification token")
	cmd.Flags().StringVar(&webhook, "webhook", "", "Incoming webhook url for the team")
	cmd.Flags().StringVar(&metadata, "metadata", "", "Free-form notes")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a service in the foreground",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "api",
			Short: "Serve the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, a *app.App) error { return a.RunAPI(ctx) })
			},
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Process queued tasks and run the schedules",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, func(ctx context.Context, a *app.App) error { return a.RunWorker(ctx) })
			},
		},
	)
	return cmd
}
