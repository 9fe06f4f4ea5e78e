package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/soupcal/internal/config"
	"github.com/dharsanguruparan/soupcal/internal/importer"
	"github.com/dharsanguruparan/soupcal/internal/model"
	"github.com/dharsanguruparan/soupcal/internal/notify"
	"github.com/dharsanguruparan/soupcal/internal/queue"
	"github.com/dharsanguruparan/soupcal/internal/repository"
)

type fakeImporter struct {
	result *model.ImportResult
	err    error
	calls  int
}

func (f *fakeImporter) Import(_ context.Context, kind, url, user string) (*model.ImportResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeRuns struct {
	created   []string
	statuses  map[string]repository.RunStatus
	failedMsg string
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{statuses: map[string]repository.RunStatus{}}
}

func (f *fakeRuns) Create(_ context.Context, run *repository.ImportRun) error {
	if _, ok := f.statuses[run.ID]; ok {
		return nil
	}
	f.created = append(f.created, run.ID)
	f.statuses[run.ID] = repository.StatusQueued
	return nil
}

func (f *fakeRuns) MarkProcessing(_ context.Context, id string) error {
	f.statuses[id] = repository.StatusProcessing
	return nil
}

func (f *fakeRuns) MarkCompleted(_ context.Context, id string, _ *model.ImportResult) error {
	f.statuses[id] = repository.StatusCompleted
	return nil
}

func (f *fakeRuns) MarkFailed(_ context.Context, id string, msg string) error {
	f.statuses[id] = repository.StatusFailed
	f.failedMsg = msg
	return nil
}

type fakeResponder struct {
	urls  []string
	texts []string
}

func (f *fakeResponder) PostWebhook(_ context.Context, url, text string) error {
	f.urls = append(f.urls, url)
	f.texts = append(f.texts, text)
	return nil
}

type fakeNotifier struct {
	result *notify.BatchResult
	err    error
}

func (f *fakeNotifier) Notify(context.Context) (*notify.BatchResult, error) {
	return f.result, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func importTask(t *testing.T, payload queue.ImportPayload) *asynq.Task {
	t.Helper()
	task, err := queue.NewImportTask(payload)
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func TestHandleImportSuccess(t *testing.T) {
	imp := &fakeImporter{result: &model.ImportResult{
		Rows:      4,
		StartDate: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
	}}
	runs := newFakeRuns()
	resp := &fakeResponder{}
	p := NewProcessor(imp, runs, nil, resp, discard())

	task := importTask(t, queue.ImportPayload{RunID: "r1", Kind: "pdf", URL: "https://example.com/a.pdf", ResponseURL: "https://hooks.slack.com/r"})
	if err := p.handleImport(context.Background(), task); err != nil {
		t.Fatalf("handleImport: %v", err)
	}
	if runs.statuses["r1"] != repository.StatusCompleted {
		t.Errorf("status = %s", runs.statuses["r1"])
	}
	want := "PDF Imported 4 soups for 2024/01/08 - 2024/01/09"
	if len(resp.texts) != 1 || resp.texts[0] != want || resp.urls[0] != "https://hooks.slack.com/r" {
		t.Errorf("responses = %v %v", resp.urls, resp.texts)
	}
}

func TestHandleImportFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		skipRetry bool
	}{
		{name: "clean", err: importer.ErrEmptyCalendar, skipRetry: true},
		{name: "transient", err: errors.New("fetch pdf: connection reset"), skipRetry: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := newFakeRuns()
			resp := &fakeResponder{}
			p := NewProcessor(&fakeImporter{err: tt.err}, runs, nil, resp, discard())

			task := importTask(t, queue.ImportPayload{RunID: "r1", Kind: "pdf", URL: "u", ResponseURL: "https://hooks.slack.com/r"})
			err := p.handleImport(context.Background(), task)
			if !errors.Is(err, tt.err) {
				t.Fatalf("error = %v, want %v", err, tt.err)
			}
			if got := errors.Is(err, asynq.SkipRetry); got != tt.skipRetry {
				t.Errorf("SkipRetry = %v, want %v", got, tt.skipRetry)
			}
			if runs.statuses["r1"] != repository.StatusFailed || runs.failedMsg != tt.err.Error() {
				t.Errorf("run = %s %q", runs.statuses["r1"], runs.failedMsg)
			}
			if len(resp.texts) != 1 || resp.texts[0] != tt.err.Error() {
				t.Errorf("responses = %v", resp.texts)
			}
		})
	}
}

func TestHandleImportCreatesRunForScheduledTask(t *testing.T) {
	runs := newFakeRuns()
	resp := &fakeResponder{}
	p := NewProcessor(&fakeImporter{result: &model.ImportResult{}}, runs, nil, resp, discard())

	task := importTask(t, queue.ImportPayload{Kind: "html", URL: "https://example.com/menu", User: "scheduler"})
	if err := p.handleImport(context.Background(), task); err != nil {
		t.Fatalf("handleImport: %v", err)
	}
	if len(runs.created) != 1 || runs.statuses[runs.created[0]] != repository.StatusCompleted {
		t.Fatalf("runs = %+v", runs)
	}
	if len(resp.texts) != 0 {
		t.Errorf("responded without a response url: %v", resp.texts)
	}
}

func TestHandleImportScheduledRetriesShareRun(t *testing.T) {
	runs := newFakeRuns()
	imp := &fakeImporter{err: errors.New("connection reset")}
	p := NewProcessor(imp, runs, nil, nil, discard())
	p.taskID = func(context.Context) (string, bool) { return "task-1", true }

	task := importTask(t, queue.ImportPayload{Kind: "pdf", URL: "https://example.com/a.pdf", User: "scheduler"})
	if err := p.handleImport(context.Background(), task); err == nil {
		t.Fatalf("expected transient failure")
	}
	if runs.statuses["task-1"] != repository.StatusFailed {
		t.Fatalf("status after first attempt = %s", runs.statuses["task-1"])
	}

	imp.err = nil
	imp.result = &model.ImportResult{Rows: 2}
	if err := p.handleImport(context.Background(), task); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(runs.created) != 1 || runs.created[0] != "task-1" {
		t.Fatalf("created runs = %v", runs.created)
	}
	if runs.statuses["task-1"] != repository.StatusCompleted {
		t.Fatalf("status after retry = %s", runs.statuses["task-1"])
	}
}

func TestHandleImportBadPayload(t *testing.T) {
	p := NewProcessor(&fakeImporter{}, newFakeRuns(), nil, nil, discard())
	err := p.handleImport(context.Background(), asynq.NewTask(queue.ImportCalendarTask, []byte("nope")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("error = %v", err)
	}
}

func TestHandleNotify(t *testing.T) {
	tests := []struct {
		name    string
		n       *fakeNotifier
		wantErr bool
	}{
		{name: "sent", n: &fakeNotifier{result: &notify.BatchResult{Total: 2, Sent: 2}}},
		{name: "partial failure", n: &fakeNotifier{result: &notify.BatchResult{Total: 2, Sent: 1, Failed: 1, Errors: []error{errors.New("boom")}}}},
		{name: "no soups", n: &fakeNotifier{err: notify.ErrNoSoupsToday}},
		{name: "load error", n: &fakeNotifier{err: errors.New("db down")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(nil, nil, tt.n, nil, discard())
			err := p.handleNotify(context.Background(), queue.NewNotifyTask())
			if (err != nil) != tt.wantErr {
				t.Fatalf("handleNotify = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type fakeRegistrar struct {
	specs []string
	types []string
}

func (f *fakeRegistrar) Register(cronspec string, task *asynq.Task, _ ...asynq.Option) (string, error) {
	f.specs = append(f.specs, cronspec)
	f.types = append(f.types, task.Type())
	return cronspec, nil
}

func TestRegisterSchedules(t *testing.T) {
	cfg := &config.Config{NotifySchedule: "*/15 * * * *", ImportSchedule: "0 0 * * 0", ImportKind: "pdf"}

	r := &fakeRegistrar{}
	if _, err := RegisterSchedules(r, cfg); err != nil {
		t.Fatal(err)
	}
	if len(r.types) != 1 || r.types[0] != queue.NotifySubscribersTask {
		t.Fatalf("without import url: %v", r.types)
	}

	cfg.ImportURL = "https://example.com/soup.pdf"
	r = &fakeRegistrar{}
	ids, err := RegisterSchedules(r, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || r.types[1] != queue.ImportCalendarTask || r.specs[1] != "0 0 * * 0" {
		t.Fatalf("with import url: %v %v", r.specs, r.types)
	}
}
