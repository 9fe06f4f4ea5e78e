package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dharsanguruparan/soupcal/internal/config"
	"github.com/dharsanguruparan/soupcal/internal/model"
	"github.com/dharsanguruparan/soupcal/internal/queue"
	"github.com/dharsanguruparan/soupcal/internal/repository"
	"github.com/dharsanguruparan/soupcal/internal/signing"
)

// Calendar answers soup calendar queries.
type Calendar interface {
	GetSoupsForDay(ctx context.Context, day time.Time) (*model.SoupDay, error)
	GetSoupsForWeek(ctx context.Context, day time.Time) (*model.SoupWeek, error)
	SearchSoup(ctx context.Context, term string, from time.Time, limit int) ([]model.SoupMatch, error)
}

// SoupIndex is the fuzzy search index. It is optional.
type SoupIndex interface {
	Search(term string, from time.Time, limit int) ([]model.SoupMatch, error)
}

// Subscribers manages subscriptions.
type Subscribers interface {
	Subscribe(ctx context.Context, sub *model.Subscriber) error
	Unsubscribe(ctx context.Context, slackUserID string) (bool, error)
	UpdateNotifyTime(ctx context.Context, slackUserID, notifyTime string) error
	UpdateTimezone(ctx context.Context, slackUserID, timezone string) error
}

// Integrations stores team credentials.
type Integrations interface {
	ValidateTeamToken(ctx context.Context, teamID, token string) (bool, error)
	UpsertOAuthIntegration(ctx context.Context, oi *model.OAuthIntegration) error
}

// OAuth completes app installs.
type OAuth interface {
	ExchangeCode(ctx context.Context, code string) (*model.OAuthIntegration, error)
}

// Runs tracks queued imports.
type Runs interface {
	Create(ctx context.Context, run *repository.ImportRun) error
	Get(ctx context.Context, id string) (*repository.ImportRun, error)
}

// Deps are the collaborators of a Server. Index and Signer are optional.
type Deps struct {
	Calendar     Calendar
	Index        SoupIndex
	Subscribers  Subscribers
	Integrations Integrations
	OAuth        OAuth
	Runs         Runs
	Queue        queue.Enqueuer
	Signer       *signing.Signer
	Logger       *slog.Logger
}

// Server exposes the Slack slash command, OAuth and REST endpoints.
type Server struct {
	cfg      *config.Config
	deps     Deps
	location *time.Location
	now      func() time.Time
	server   *http.Server
	once     sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg:      cfg,
		deps:     deps,
		location: cfg.Location(),
		now:      time.Now,
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/slack", func(r chi.Router) {
		r.With(s.verifySlackSignature).Post("/command", s.handleSlackCommand)
		r.Get("/oauth", s.handleOAuth)
	})

	r.Group(func(r chi.Router) {
		r.Use(corsMiddleware)
		r.Get("/soups", s.handleSoupsForDay)
		r.Get("/soups/week", s.handleSoupsForWeek)
		r.Get("/soups/search", s.handleSearch)
		r.Post("/import", s.handleImport)
		r.Get("/imports/{id}", s.handleImportRun)
	})
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.deps.Logger.Info("API listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) today() time.Time {
	return s.now().In(s.location)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// slackReply is the body Slack renders for a slash command.
type slackReply struct {
	Text string `json:"text"`
}

func (s *Server) respondText(w http.ResponseWriter, status int, text string) {
	s.respondJSON(w, status, slackReply{Text: text})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.deps.Logger.Warn("Failed to encode response", "error", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.deps.Logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
