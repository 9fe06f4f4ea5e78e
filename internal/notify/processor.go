package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/soupcal/internal/model"
	"github.com/dharsanguruparan/soupcal/internal/slack"
)

// ErrNoSoupsToday stops a batch when the calendar has nothing for today.
var ErrNoSoupsToday = &model.CleanError{Reason: "no soups for today"}

// Searcher finds soups matching a term on one day.
type Searcher interface {
	SearchSoupOnDay(ctx context.Context, term string, day time.Time) ([]model.SoupMatch, error)
}

// Messenger delivers a direct message to a Slack user.
type Messenger interface {
	SendDirectMessage(ctx context.Context, userID, text, botToken string) (*slack.DeliveryResult, error)
}

// Outcome is what happened to one subscriber in a run.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeNoMatch
	OutcomeSent
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeSent:
		return "sent"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// BatchResult tallies a notification run.
type BatchResult struct {
	Total   int
	Sent    int
	Skipped int
	NoMatch int
	Failed  int
	// Errors holds one entry per failed subscriber.
	Errors []error
}

// Err joins the per-subscriber failures, or returns nil.
func (b *BatchResult) Err() error {
	return errors.Join(b.Errors...)
}

// Processor runs the per-subscriber notification pipeline.
type Processor struct {
	window      Window
	search      Searcher
	messenger   Messenger
	concurrency int
	logger      *slog.Logger
}

// NewProcessor constructs a Processor. Concurrency bounds how many
// subscribers are handled at once.
func NewProcessor(window Window, search Searcher, messenger Messenger, concurrency int, logger *slog.Logger) *Processor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Processor{
		window:      window,
		search:      search,
		messenger:   messenger,
		concurrency: concurrency,
		logger:      logger,
	}
}

// CustomText is the message sent when a subscriber's search term is on the
// menu today.
func CustomText(term string, soups []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today's the day! _%s_ is on the menu! Here are the soups: ", term)
	for _, soup := range soups {
		b.WriteString("\n>")
		b.WriteString(soup)
	}
	return b.String()
}

// ProcessSubscriber notifies sub about day if sub is due at now. A
// subscriber whose search term does not match today's soups is left alone.
func (p *Processor) ProcessSubscriber(ctx context.Context, sub model.Subscriber, day *model.SoupDay, now time.Time) (Outcome, error) {
	due, err := p.window.Due(now, sub.NotifyTime, sub.Timezone)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("subscriber %s: %w", sub.SlackUserID, err)
	}
	if !due {
		p.logger.Debug("Notification time outside of window",
			"subscriber", sub.SlackUserID,
			"timezone", sub.Timezone,
			"notify_time", sub.NotifyTime)
		return OutcomeSkipped, nil
	}

	text := day.Text
	if term := strings.TrimSpace(sub.Term()); term != "" {
		matches, err := p.search.SearchSoupOnDay(ctx, term, day.Day)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("subscriber %s: search %q: %w", sub.SlackUserID, term, err)
		}
		if len(matches) == 0 {
			p.logger.Debug("No soups matching search term today", "subscriber", sub.SlackUserID, "term", term)
			return OutcomeNoMatch, nil
		}
		text = CustomText(term, day.Soups)
	}

	if _, err := p.messenger.SendDirectMessage(ctx, sub.SlackUserID, text, sub.SlackBotToken); err != nil {
		return OutcomeFailed, fmt.Errorf("subscriber %s: %w", sub.SlackUserID, err)
	}
	return OutcomeSent, nil
}

// Run processes every subscriber independently. A failure for one
// subscriber is recorded in the result and never stops the others, so the
// returned error is only ever ErrNoSoupsToday.
func (p *Processor) Run(ctx context.Context, day *model.SoupDay, subs []model.Subscriber, now time.Time) (*BatchResult, error) {
	if day == nil {
		return nil, ErrNoSoupsToday
	}
	outcomes := make([]Outcome, len(subs))
	errs := make([]error, len(subs))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, sub := range subs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = OutcomeFailed
					errs[i] = fmt.Errorf("subscriber %s: panic: %v", sub.SlackUserID, r)
				}
			}()
			outcomes[i], errs[i] = p.ProcessSubscriber(ctx, sub, day, now)
			return nil
		})
	}
	_ = g.Wait()

	result := &BatchResult{Total: len(subs)}
	for i, outcome := range outcomes {
		switch outcome {
		case OutcomeSent:
			result.Sent++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeNoMatch:
			result.NoMatch++
		case OutcomeFailed:
			result.Failed++
		}
		if errs[i] != nil {
			p.logger.Error("Failed to notify subscriber", "subscriber", subs[i].SlackUserID, "error", errs[i])
			result.Errors = append(result.Errors, errs[i])
		}
	}
	return result, nil
}
