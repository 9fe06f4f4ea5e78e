package worker

import (
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/soupcal/internal/config"
	"github.com/dharsanguruparan/soupcal/internal/queue"
)

// Registrar is the part of asynq.Scheduler used to add cron entries.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// RegisterSchedules adds the notify cron and, when an import source is
// configured, the import cron. It returns the registered entry ids.
func RegisterSchedules(s Registrar, cfg *config.Config) ([]string, error) {
	var ids []string
	if cfg.NotifySchedule != "" {
		id, err := s.Register(cfg.NotifySchedule, queue.NewNotifyTask())
		if err != nil {
			return nil, fmt.Errorf("register notify schedule: %w", err)
		}
		ids = append(ids, id)
	}
	if cfg.ImportSchedule != "" && cfg.ImportURL != "" {
		task, err := queue.NewImportTask(queue.ImportPayload{Kind: cfg.ImportKind, URL: cfg.ImportURL, User: "scheduler"})
		if err != nil {
			return nil, err
		}
		id, err := s.Register(cfg.ImportSchedule, task)
		if err != nil {
			return nil, fmt.Errorf("register import schedule: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
