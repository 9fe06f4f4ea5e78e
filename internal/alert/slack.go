package alert

import (
	"context"
	"log/slog"
)

// WebhookPoster posts a message to a Slack incoming webhook.
type WebhookPoster interface {
	PostWebhook(ctx context.Context, url, text string) error
}

// SlackReporter posts warnings to an alerts channel.
type SlackReporter struct {
	poster WebhookPoster
	url    string
	logger *slog.Logger
}

// NewSlackReporter creates a SlackReporter for the given webhook URL.
func NewSlackReporter(poster WebhookPoster, url string, logger *slog.Logger) *SlackReporter {
	return &SlackReporter{poster: poster, url: url, logger: logger}
}

// ReportParseWarning implements Reporter.
func (r *SlackReporter) ReportParseWarning(ctx context.Context, message string) {
	if err := r.poster.PostWebhook(ctx, r.url, ":warning: "+message); err != nil {
		r.logger.Warn("Failed to post parse warning to Slack", "error", err)
	}
}
