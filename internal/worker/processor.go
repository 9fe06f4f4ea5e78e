package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/soupcal/internal/model"
	"github.com/dharsanguruparan/soupcal/internal/notify"
	"github.com/dharsanguruparan/soupcal/internal/queue"
	"github.com/dharsanguruparan/soupcal/internal/repository"
)

// Importer runs a calendar import.
type Importer interface {
	Import(ctx context.Context, kind, url, user string) (*model.ImportResult, error)
}

// Runs records the lifecycle of an import.
type Runs interface {
	Create(ctx context.Context, run *repository.ImportRun) error
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, result *model.ImportResult) error
	MarkFailed(ctx context.Context, id string, msg string) error
}

// Notifier sends the due subscriber notifications.
type Notifier interface {
	Notify(ctx context.Context) (*notify.BatchResult, error)
}

// Responder posts to a Slack response_url.
type Responder interface {
	PostWebhook(ctx context.Context, url, text string) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	importer  Importer
	runs      Runs
	notifier  Notifier
	responder Responder
	logger    *slog.Logger
	taskID    func(context.Context) (string, bool)
}

// NewProcessor constructs a worker processor.
func NewProcessor(importer Importer, runs Runs, notifier Notifier, responder Responder, logger *slog.Logger) *Processor {
	return &Processor{
		importer:  importer,
		runs:      runs,
		notifier:  notifier,
		responder: responder,
		logger:    logger,
		taskID:    asynq.GetTaskID,
	}
}

// Handler registers the import and notify job handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ImportCalendarTask, p.handleImport)
	mux.HandleFunc(queue.NotifySubscribersTask, p.handleNotify)
	return mux
}

func (p *Processor) handleImport(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseImportPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if payload.RunID == "" {
		// Scheduled imports arrive without a run. The run is keyed on the
		// task id so every retry of one task records into the same run.
		id, ok := p.taskID(ctx)
		if !ok {
			id = uuid.NewString()
		}
		run := &repository.ImportRun{ID: id, Kind: payload.Kind, Source: payload.URL, RequestedBy: payload.User}
		if err := p.runs.Create(ctx, run); err != nil {
			return err
		}
		payload.RunID = run.ID
	}
	logger := p.logger.With("run_id", payload.RunID, "url", payload.URL, "kind", payload.Kind)

	failure := func(err error) error {
		logger.Error("Calendar import failed", "error", err)
		if merr := p.runs.MarkFailed(ctx, payload.RunID, err.Error()); merr != nil {
			logger.Warn("Failed to record import failure", "error", merr)
		}
		p.respond(ctx, logger, payload.ResponseURL, err.Error())
		if model.IsClean(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if err := p.runs.MarkProcessing(ctx, payload.RunID); err != nil {
		return failure(err)
	}
	result, err := p.importer.Import(ctx, payload.Kind, payload.URL, payload.User)
	if err != nil {
		return failure(err)
	}
	if err := p.runs.MarkCompleted(ctx, payload.RunID, result); err != nil {
		logger.Warn("Failed to record import result", "error", err)
	}
	p.respond(ctx, logger, payload.ResponseURL, result.Message())
	logger.Info("Calendar import completed", "rows", result.Rows, "rejected", result.Rejected)
	return nil
}

func (p *Processor) respond(ctx context.Context, logger *slog.Logger, url, text string) {
	if url == "" || p.responder == nil {
		return
	}
	if err := p.responder.PostWebhook(ctx, url, text); err != nil {
		logger.Warn("Failed to post import result to Slack", "error", err)
	}
}

func (p *Processor) handleNotify(ctx context.Context, _ *asynq.Task) error {
	result, err := p.notifier.Notify(ctx)
	if err != nil {
		if model.IsClean(err) {
			return nil
		}
		return err
	}
	if err := result.Err(); err != nil {
		p.logger.Warn("Some notifications failed", "failed", result.Failed, "sent", result.Sent, "error", err)
	}
	return nil
}
