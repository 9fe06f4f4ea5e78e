// Package app wires the soupcal components together for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/soupcal/internal/alert"
	"github.com/dharsanguruparan/soupcal/internal/api"
	"github.com/dharsanguruparan/soupcal/internal/config"
	"github.com/dharsanguruparan/soupcal/internal/database"
	"github.com/dharsanguruparan/soupcal/internal/fetch"
	"github.com/dharsanguruparan/soupcal/internal/importer"
	"github.com/dharsanguruparan/soupcal/internal/model"
	"github.com/dharsanguruparan/soupcal/internal/notify"
	"github.com/dharsanguruparan/soupcal/internal/repository"
	"github.com/dharsanguruparan/soupcal/internal/s3storage"
	"github.com/dharsanguruparan/soupcal/internal/search"
	"github.com/dharsanguruparan/soupcal/internal/secret"
	"github.com/dharsanguruparan/soupcal/internal/signing"
	"github.com/dharsanguruparan/soupcal/internal/slack"
	"github.com/dharsanguruparan/soupcal/internal/worker"
)

// IndexRefreshInterval is how often the API reloads its search index from
// the database. Imports run in the worker process.
const IndexRefreshInterval = time.Hour

// App holds the long-lived dependencies shared by the binaries.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Pool         *pgxpool.Pool
	Calendar     *repository.CalendarRepository
	Subscribers  *repository.SubscriberRepository
	Integrations *repository.IntegrationRepository
	Runs         *repository.ImportRunRepository
	Storage      *s3storage.Storage
	Index        *search.Index
	Slack        *slack.Client
	Alerts       alert.Reporter
	Importer     *importer.Service
	Notifier     *notify.Service
	Queue        *asynq.Client
}

// New connects to PostgreSQL, MinIO and Redis and builds every service.
// MinIO is skipped when no endpoint is configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	key, err := secret.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	box, err := secret.NewBox(key)
	if err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	a := &App{
		Config:       cfg,
		Logger:       logger,
		Pool:         pool,
		Calendar:     repository.NewCalendarRepository(pool, cfg.Location()),
		Subscribers:  repository.NewSubscriberRepository(pool, box),
		Integrations: repository.NewIntegrationRepository(pool, box),
		Runs:         repository.NewImportRunRepository(pool),
		Slack: slack.New(slack.Options{
			ClientID:     cfg.SlackClientID,
			ClientSecret: cfg.SlackClientSecret,
			RedirectURI:  cfg.SlackRedirectURI,
			Username:     cfg.SlackUsername,
			IconEmoji:    cfg.SlackIconEmoji,
		}, logger),
		Queue: asynq.NewClient(RedisOpt(cfg)),
	}

	if cfg.S3Endpoint != "" {
		store, err := s3storage.New(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := store.EnsureBuckets(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure buckets: %w", err)
		}
		a.Storage = store
	}

	if a.Index, err = search.New(); err != nil {
		a.Close()
		return nil, err
	}

	a.Alerts = a.buildAlerts()
	a.Importer = a.buildImporter()

	location := cfg.Location()
	processor := notify.NewProcessor(
		notify.Window{Interval: cfg.NotifyInterval, Location: location},
		a.Calendar, a.Slack, cfg.NotifyConcurrency, logger)
	a.Notifier = notify.NewService(a.Calendar, a.Subscribers, processor, location, logger)
	return a, nil
}

// RedisOpt builds the asynq connection options.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func (a *App) buildAlerts() alert.Reporter {
	reporters := alert.Multi{alert.NewLogReporter(a.Logger)}
	if a.Config.AlertWebhookURL != "" {
		reporters = append(reporters, alert.NewSlackReporter(a.Slack, a.Config.AlertWebhookURL, a.Logger))
	}
	if a.Config.SMTPHost != "" && len(a.Config.SMTPTo) > 0 {
		reporters = append(reporters, alert.NewEmailReporter(alert.EmailConfig{
			Host:     a.Config.SMTPHost,
			Port:     a.Config.SMTPPort,
			Username: a.Config.SMTPUsername,
			Password: a.Config.SMTPPassword,
			From:     a.Config.SMTPFrom,
			To:       a.Config.SMTPTo,
		}, a.Logger))
	}
	return reporters
}

func (a *App) buildImporter() *importer.Service {
	deps := importer.Deps{
		Fetcher: fetch.New(fetch.DefaultConfig, a.Logger),
		Store:   a.Calendar,
		Index:   a.Index,
		Alerts:  a.Alerts,
		Logger:  a.Logger,
	}
	// A nil *Storage must not become a non-nil interface.
	if a.Storage != nil {
		deps.Archive = a.Storage
	}
	html := importer.HTMLOptions{
		Tag:         a.Config.HTMLTag,
		Classes:     a.Config.HTMLClasses,
		DateLayouts: importer.DefaultDateLayouts,
	}
	return importer.NewService(deps, html, a.Config.Location())
}

// Close releases connections.
func (a *App) Close() {
	if a.Index != nil {
		_ = a.Index.Close()
	}
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	a.Pool.Close()
}

// RefreshIndex loads every soup from today on into the search index.
func (a *App) RefreshIndex(ctx context.Context) error {
	soups, err := a.Calendar.AllSoups(ctx, model.Date(time.Now().In(a.Config.Location())))
	if err != nil {
		return err
	}
	if err := a.Index.Load(soups); err != nil {
		return err
	}
	a.Logger.Info("Search index refreshed", "soups", len(soups))
	return nil
}

// RunAPI serves HTTP until ctx is cancelled.
func (a *App) RunAPI(ctx context.Context) error {
	if err := a.RefreshIndex(ctx); err != nil {
		a.Logger.Warn("Failed to load search index", "error", err)
	}
	go func() {
		ticker := time.NewTicker(IndexRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.RefreshIndex(ctx); err != nil {
					a.Logger.Warn("Failed to refresh search index", "error", err)
				}
			}
		}
	}()

	deps := api.Deps{
		Calendar:     a.Calendar,
		Index:        a.Index,
		Subscribers:  a.Subscribers,
		Integrations: a.Integrations,
		OAuth:        a.Slack,
		Runs:         a.Runs,
		Queue:        a.Queue,
		Logger:       a.Logger,
	}
	if a.Config.SlackSigningSecret != "" {
		deps.Signer = signing.NewSigner([]byte(a.Config.SlackSigningSecret))
	}
	return api.New(a.Config, deps).Run(ctx)
}

// RunWorker processes queued tasks and runs the cron scheduler until ctx is
// cancelled.
func (a *App) RunWorker(ctx context.Context) error {
	redis := RedisOpt(a.Config)
	server := asynq.NewServer(redis, asynq.Config{
		Concurrency: a.Config.WorkerConcurrency,
	})
	processor := worker.NewProcessor(a.Importer, a.Runs, a.Notifier, a.Slack, a.Logger)

	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{Location: a.Config.Location()})
	ids, err := worker.RegisterSchedules(scheduler, a.Config)
	if err != nil {
		return err
	}
	a.Logger.Info("Schedules registered", "entries", len(ids),
		"notify", a.Config.NotifySchedule, "import", a.Config.ImportSchedule)

	if err := server.Start(processor.Handler()); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		server.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.Logger.Info("Worker running", "concurrency", a.Config.WorkerConcurrency)

	<-ctx.Done()
	scheduler.Shutdown()
	server.Shutdown()
	return nil
}
