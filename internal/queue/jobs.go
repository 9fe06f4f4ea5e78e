package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ImportCalendarTask fetches and stores a calendar document.
	ImportCalendarTask = "calendar:import"
	// NotifySubscribersTask sends the daily soup messages that are due.
	NotifySubscribersTask = "subscribers:notify"
)

// ImportPayload is serialized into the task payload so the worker knows what
// to import and where to report the outcome.
type ImportPayload struct {
	RunID       string `json:"run_id,omitempty"`
	Kind        string `json:"kind"`
	URL         string `json:"url"`
	User        string `json:"user,omitempty"`
	ResponseURL string `json:"response_url,omitempty"`
}

// NewImportTask builds an import task. It is also registered with the
// scheduler for the weekly import.
func NewImportTask(payload ImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ImportCalendarTask, data, asynq.MaxRetry(5)), nil
}

// NewNotifyTask builds a notify task. A retry would resend messages that
// already went out, so none is allowed.
func NewNotifyTask() *asynq.Task {
	return asynq.NewTask(NotifySubscribersTask, nil, asynq.MaxRetry(0))
}

// ParseImportPayload decodes the payload of an import task.
func ParseImportPayload(t *asynq.Task) (ImportPayload, error) {
	var payload ImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

// Enqueuer is the part of asynq.Client used here.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueImport enqueues a calendar import job.
func EnqueueImport(ctx context.Context, client Enqueuer, payload ImportPayload) error {
	task, err := NewImportTask(payload)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue import task: %w", err)
	}
	return nil
}

// EnqueueNotify enqueues an immediate notification run.
func EnqueueNotify(ctx context.Context, client Enqueuer) error {
	if _, err := client.EnqueueContext(ctx, NewNotifyTask()); err != nil {
		return fmt.Errorf("enqueue notify task: %w", err)
	}
	return nil
}
