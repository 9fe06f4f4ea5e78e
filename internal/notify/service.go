package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/soupcal/internal/model"
)

// SoupSource resolves the calendar entry for a day, returning nil when the
// calendar has none.
type SoupSource interface {
	GetSoupsForDay(ctx context.Context, day time.Time) (*model.SoupDay, error)
}

// SubscriberSource lists subscribers with their Slack credentials.
type SubscriberSource interface {
	ListSubscribers(ctx context.Context, decrypt bool) ([]model.Subscriber, error)
}

// Service is the scheduled entry point: it loads today's soups and every
// subscriber, then hands them to the Processor.
type Service struct {
	soups     SoupSource
	subs      SubscriberSource
	processor *Processor
	location  *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// NewService constructs a Service. Today is judged in location.
func NewService(soups SoupSource, subs SubscriberSource, processor *Processor, location *time.Location, logger *slog.Logger) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		soups:     soups,
		subs:      subs,
		processor: processor,
		location:  location,
		now:       time.Now,
		logger:    logger,
	}
}

// Notify runs one notification cycle. It returns ErrNoSoupsToday when the
// calendar is empty for today; callers should treat that as a no-op.
func (s *Service) Notify(ctx context.Context) (*BatchResult, error) {
	now := s.now()
	today := model.Date(now.In(s.location))
	s.logger.Info("Processing subscribers", "day", today.Format("2006-01-02"))

	var (
		day  *model.SoupDay
		subs []model.Subscriber
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if day, err = s.soups.GetSoupsForDay(gctx, today); err != nil {
			return fmt.Errorf("load soups: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if subs, err = s.subs.ListSubscribers(gctx, true); err != nil {
			return fmt.Errorf("load subscribers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result, err := s.processor.Run(ctx, day, subs, now)
	if err != nil {
		if model.IsClean(err) {
			s.logger.Info("Processing subscribers complete", "reason", err.Error())
		}
		return nil, err
	}
	s.logger.Info("Processing subscribers complete",
		"total", result.Total,
		"sent", result.Sent,
		"skipped", result.Skipped,
		"no_match", result.NoMatch,
		"failed", result.Failed)
	return result, nil
}
