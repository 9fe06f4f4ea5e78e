package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/soupcal/internal/importer"
	"github.com/dharsanguruparan/soupcal/internal/model"
	"github.com/dharsanguruparan/soupcal/internal/repository"
)

func (s *Server) queryDay(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	day, err := model.DateForText(r.URL.Query().Get("day"), s.today())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return time.Time{}, false
	}
	return day, true
}

func (s *Server) handleSoupsForDay(w http.ResponseWriter, r *http.Request) {
	day, ok := s.queryDay(w, r)
	if !ok {
		return
	}
	soups, err := s.deps.Calendar.GetSoupsForDay(r.Context(), day)
	if err != nil {
		s.deps.Logger.Error("Failed to load soups", "day", day.Format("2006-01-02"), "error", err)
		s.respondText(w, http.StatusInternalServerError, "An unexpected server error occurred")
		return
	}
	if soups == nil {
		s.respondText(w, http.StatusNotFound, "Soups for "+day.Format("2006-01-02")+" not found")
		return
	}
	s.respondJSON(w, http.StatusOK, soups)
}

func (s *Server) handleSoupsForWeek(w http.ResponseWriter, r *http.Request) {
	day, ok := s.queryDay(w, r)
	if !ok {
		return
	}
	week, err := s.deps.Calendar.GetSoupsForWeek(r.Context(), day)
	if err != nil {
		s.deps.Logger.Error("Failed to load week", "day", day.Format("2006-01-02"), "error", err)
		s.respondText(w, http.StatusInternalServerError, "An unexpected server error occurred")
		return
	}
	s.respondJSON(w, http.StatusOK, week)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		http.Error(w, "missing q", http.StatusBadRequest)
		return
	}
	matches, err := s.search(r, term)
	if err != nil {
		s.deps.Logger.Error("Search failed", "term", term, "error", err)
		s.respondText(w, http.StatusInternalServerError, "An unexpected server error occurred")
		return
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	s.respondJSON(w, http.StatusOK, matches)
}

type importRequest struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
	User string `json:"user"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody)).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = s.cfg.ImportKind
	}
	if req.Kind != importer.KindPDF && req.Kind != importer.KindHTML {
		http.Error(w, "kind must be pdf or html", http.StatusBadRequest)
		return
	}
	if !validSourceURL(req.URL) {
		http.Error(w, "url must be an http(s) url", http.StatusBadRequest)
		return
	}
	run, err := s.enqueueImport(r, req.Kind, req.URL, req.User, "")
	if err != nil {
		s.deps.Logger.Error("Failed to queue import", "url", req.URL, "error", err)
		http.Error(w, "failed to queue import", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     run.ID,
		"status": string(run.Status),
	})
}

func (s *Server) handleImportRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "import not found", http.StatusNotFound)
			return
		}
		s.deps.Logger.Error("Failed to load import", "error", err)
		http.Error(w, "failed to load import", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}
