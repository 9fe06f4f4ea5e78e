// Package alert reports parse-quality problems found while importing the
// calendar to whoever looks after the service.
package alert

import (
	"context"
	"log/slog"
)

// Reporter receives parse warnings. Implementations never fail the caller;
// delivery problems are logged.
type Reporter interface {
	ReportParseWarning(ctx context.Context, message string)
}

// LogReporter writes warnings to the service log.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// ReportParseWarning implements Reporter.
func (r *LogReporter) ReportParseWarning(_ context.Context, message string) {
	r.logger.Warn("Calendar parse warning", "message", message)
}

// Multi fans a warning out to several reporters in order.
type Multi []Reporter

// ReportParseWarning implements Reporter.
func (m Multi) ReportParseWarning(ctx context.Context, message string) {
	for _, r := range m {
		r.ReportParseWarning(ctx, message)
	}
}
