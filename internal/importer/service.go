package importer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/soupcal/internal/fetch"
	"github.com/dharsanguruparan/soupcal/internal/model"
	pdfutil "github.com/dharsanguruparan/soupcal/internal/pdf"
)

// Source kinds.
const (
	KindPDF  = "pdf"
	KindHTML = "html"
)

// ErrEmptyCalendar means the document was read but held no calendar rows.
var ErrEmptyCalendar = &model.CleanError{Reason: "no calendar rows found"}

// Fetcher downloads source documents.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Document, error)
}

// CalendarStore persists imported rows.
type CalendarStore interface {
	UpsertCalendarRows(ctx context.Context, rows []model.CalendarRow, user string) (*model.ImportResult, error)
}

// Archive keeps copies of fetched documents and parsed rows.
type Archive interface {
	PutSource(ctx context.Context, kind, id string, data []byte, contentType string) (string, error)
	LatestSource(ctx context.Context, kind string) ([]byte, error)
	PutRows(ctx context.Context, kind, id string, rows []model.CalendarRow) error
}

// Indexer is told about rows once they are stored.
type Indexer interface {
	IndexRows(rows []model.CalendarRow) error
}

// Deps are the collaborators of a Service. Archive, Index and Alerts are
// optional.
type Deps struct {
	Fetcher Fetcher
	Store   CalendarStore
	Archive Archive
	Index   Indexer
	Alerts  Alerter
	Logger  *slog.Logger
}

// Service runs imports end to end: fetch, archive, parse, store, index.
type Service struct {
	deps     Deps
	html     HTMLOptions
	location *time.Location
	now      func() time.Time
}

// NewService constructs a Service. The location decides which year HTML
// date headings belong to.
func NewService(deps Deps, html HTMLOptions, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	if deps.Alerts == nil {
		deps.Alerts = noAlerts{}
	}
	return &Service{deps: deps, html: html, location: location, now: time.Now}
}

// Import dispatches on the source kind.
func (s *Service) Import(ctx context.Context, kind, url, user string) (*model.ImportResult, error) {
	switch kind {
	case KindPDF, "":
		return s.ImportPDF(ctx, url, user)
	case KindHTML:
		return s.ImportHTML(ctx, url, user)
	}
	return nil, fmt.Errorf("unknown import kind %q", kind)
}

// ImportPDF fetches a calendar PDF and stores its rows. The first page that
// yields rows is used.
func (s *Service) ImportPDF(ctx context.Context, url, user string) (*model.ImportResult, error) {
	doc, err := s.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch pdf: %w", err)
	}
	return s.importPDF(ctx, url, doc.Body, doc.ContentType, user)
}

// ImportPDFBytes imports a PDF that is already in memory, such as a local
// file handed to the CLI.
func (s *Service) ImportPDFBytes(ctx context.Context, source string, data []byte, user string) (*model.ImportResult, error) {
	return s.importPDF(ctx, source, data, "application/pdf", user)
}

func (s *Service) importPDF(ctx context.Context, source string, data []byte, contentType, user string) (*model.ImportResult, error) {
	id := uuid.NewString()
	logger := s.deps.Logger.With("import_id", id, "source", source)
	s.archiveSource(ctx, logger, KindPDF, id, data, contentType)

	parsed, err := pdfutil.Load(data)
	if err != nil {
		return nil, fmt.Errorf("load pdf: %w", err)
	}
	rows, page := FirstNonEmptyPage(parsed, ParsePage)
	if len(rows) == 0 {
		s.deps.Alerts.ReportParseWarning(ctx, fmt.Sprintf("No calendar rows found in %s (%d pages)", source, parsed.NumPages()))
		return nil, ErrEmptyCalendar
	}
	logger.Info("Calendar rows extracted", "page", page, "rows", len(rows))
	return s.store(ctx, logger, KindPDF, id, source, rows, user)
}

// ImportHTML fetches the calendar web page. When the page cannot be fetched
// the most recently archived copy is parsed instead.
func (s *Service) ImportHTML(ctx context.Context, url, user string) (*model.ImportResult, error) {
	id := uuid.NewString()
	logger := s.deps.Logger.With("import_id", id, "source", url)

	var body []byte
	doc, err := s.deps.Fetcher.Fetch(ctx, url)
	switch {
	case err == nil:
		body = doc.Body
		s.archiveSource(ctx, logger, KindHTML, id, body, doc.ContentType)
	case s.deps.Archive != nil:
		last, lerr := s.deps.Archive.LatestSource(ctx, KindHTML)
		if lerr != nil {
			logger.Error("No archived calendar page to fall back on", "error", lerr)
			return nil, fmt.Errorf("fetch html: %w", err)
		}
		logger.Warn("Using last loaded schedule", "error", err)
		body = last
	default:
		return nil, fmt.Errorf("fetch html: %w", err)
	}

	opts := s.html
	if opts.Year == 0 {
		opts.Year = s.now().In(s.location).Year()
	}
	rows, err := ParseHTML(ctx, bytes.NewReader(body), opts, s.deps.Alerts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		s.deps.Alerts.ReportParseWarning(ctx, fmt.Sprintf("No calendar rows found in %s", url))
		return nil, ErrEmptyCalendar
	}
	logger.Info("Calendar rows extracted", "rows", len(rows))
	return s.store(ctx, logger, KindHTML, id, url, rows, user)
}

func (s *Service) store(ctx context.Context, logger *slog.Logger, kind, id, source string, rows []model.CalendarRow, user string) (*model.ImportResult, error) {
	result, err := s.deps.Store.UpsertCalendarRows(ctx, rows, user)
	if err != nil {
		return nil, fmt.Errorf("store calendar rows: %w", err)
	}
	result.ID = id
	result.Kind = kind
	result.Source = source
	if result.Rejected > 0 {
		s.deps.Alerts.ReportParseWarning(ctx, fmt.Sprintf("%d calendar rows from %s did not have exactly 2 soups", result.Rejected, source))
	}
	if s.deps.Index != nil {
		if err := s.deps.Index.IndexRows(rows); err != nil {
			logger.Warn("Failed to index calendar rows", "error", err)
		}
	}
	if s.deps.Archive != nil {
		if err := s.deps.Archive.PutRows(ctx, kind, id, rows); err != nil {
			logger.Warn("Failed to archive calendar rows", "error", err)
		}
	}
	logger.Info("Calendar imported",
		"rows", result.Rows,
		"rejected", result.Rejected,
		"start", result.StartDate.Format("2006-01-02"),
		"end", result.EndDate.Format("2006-01-02"))
	return result, nil
}

func (s *Service) archiveSource(ctx context.Context, logger *slog.Logger, kind, id string, data []byte, contentType string) {
	if s.deps.Archive == nil {
		return
	}
	key, err := s.deps.Archive.PutSource(ctx, kind, id, data, contentType)
	if err != nil {
		logger.Warn("Failed to archive source document", "error", err)
		return
	}
	logger.Debug("Source document archived", "key", key)
}
