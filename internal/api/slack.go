package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	slackapi "github.com/slack-go/slack"

	"github.com/dharsanguruparan/soupcal/internal/importer"
	"github.com/dharsanguruparan/soupcal/internal/model"
	"github.com/dharsanguruparan/soupcal/internal/queue"
	"github.com/dharsanguruparan/soupcal/internal/repository"
)

const (
	maxCommandBody = 64 << 10
	searchLimit    = 10
)

// verifySlackSignature rejects requests that are not signed with the app's
// signing secret. It is a no-op when no secret is configured.
func (s *Server) verifySlackSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Signer == nil {
			next.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if !s.deps.Signer.Validate(r.Header.Get("X-Slack-Request-Timestamp"), body, r.Header.Get("X-Slack-Signature")) {
			s.deps.Logger.Warn("Bad Slack signature", "path", r.URL.Path)
			s.respondText(w, http.StatusUnauthorized, "Invalid Slack signature")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSlackCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc, err := slackapi.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "invalid slash command", http.StatusBadRequest)
		return
	}
	valid, err := s.deps.Integrations.ValidateTeamToken(ctx, sc.TeamID, sc.Token)
	if err != nil {
		s.deps.Logger.Error("Failed to validate team token", "team", sc.TeamID, "error", err)
		s.respondText(w, http.StatusInternalServerError, "An unexpected server error occurred")
		return
	}
	if !valid {
		s.deps.Logger.Warn("Bad auth", "team", sc.TeamID, "user", sc.UserID)
		s.respondText(w, http.StatusForbidden, "Invalid Slack token")
		return
	}

	cmd := ParseCommand(sc.Text)
	text, err := s.runCommand(r, sc, cmd)
	if err != nil {
		s.deps.Logger.Error("Slash command failed", "command", cmd.Name, "user", sc.UserID, "error", err)
		s.respondText(w, http.StatusOK, "An unexpected server error occurred")
		return
	}
	s.respondText(w, http.StatusOK, text)
}

func (s *Server) runCommand(r *http.Request, sc slackapi.SlashCommand, cmd Command) (string, error) {
	ctx := r.Context()
	switch cmd.Name {
	case cmdDay:
		day, err := model.DateForText(cmd.Args, s.today())
		if err != nil {
			return unknownCommandText(), nil
		}
		soups, err := s.deps.Calendar.GetSoupsForDay(ctx, day)
		if err != nil {
			return "", err
		}
		if soups == nil {
			return fmt.Sprintf("Soups for %s not found", day.Format("2006-01-02")), nil
		}
		return soups.Text, nil

	case cmdWeek:
		day, err := model.DateForText(cmd.Args, s.today())
		if err != nil {
			return unknownCommandText(), nil
		}
		week, err := s.deps.Calendar.GetSoupsForWeek(ctx, day)
		if err != nil {
			return "", err
		}
		return week.Text, nil

	case cmdSearch:
		if cmd.Args == "" {
			return "What soup should I look for? Try `search " + commandUsage[cmdSearch] + "`", nil
		}
		matches, err := s.search(r, cmd.Args)
		if err != nil {
			return "", err
		}
		return searchText(cmd.Args, matches, s.today()), nil

	case cmdSubscribe:
		sub := &model.Subscriber{SlackUserID: sc.UserID, SlackUsername: sc.UserName, SlackTeamID: sc.TeamID}
		if cmd.Args != "" {
			term := cmd.Args
			sub.SearchTerm = &term
		}
		if err := s.deps.Subscribers.Subscribe(ctx, sub); err != nil {
			return "", err
		}
		if term := sub.Term(); term != "" {
			return fmt.Sprintf("You're subscribed! I'll message you when _%s_ is on the menu :stew:", term), nil
		}
		return "You're subscribed! I'll message you the soups every day :stew:", nil

	case cmdUnsubscribe:
		removed, err := s.deps.Subscribers.Unsubscribe(ctx, sc.UserID)
		if err != nil {
			return "", err
		}
		if !removed {
			return "Please subscribe to unsubscribe :thinking_face:", nil
		}
		return "You've been unsubscribed :disappointed:", nil

	case cmdSettings:
		return s.settings(r, sc.UserID, cmd.Args)

	case cmdFeedback:
		return commandUsage[cmdFeedback], nil

	case cmdImport:
		return s.slackImport(r, sc, cmd.Args)
	}
	s.deps.Logger.Warn("Unsupported command", "command", cmd.Name)
	return unknownCommandText(), nil
}

// search prefers the fuzzy index and falls back to the database when the
// index is missing, fails or has nothing.
func (s *Server) search(r *http.Request, term string) ([]model.SoupMatch, error) {
	from := model.Date(s.today())
	if s.deps.Index != nil {
		matches, err := s.deps.Index.Search(term, from, searchLimit)
		if err != nil {
			s.deps.Logger.Warn("Search index failed", "term", term, "error", err)
		} else if len(matches) > 0 {
			return matches, nil
		}
	}
	return s.deps.Calendar.SearchSoup(r.Context(), term, from, searchLimit)
}

func searchText(term string, matches []model.SoupMatch, today time.Time) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No upcoming soups matching _%s_ :cry:", term)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the upcoming soups matching _%s_:", term)
	for _, m := range matches {
		fmt.Fprintf(&b, "\n>_%s_: %s", model.TextForDate(m.Day, today), m.Soup)
	}
	return b.String()
}

func (s *Server) settings(r *http.Request, userID, args string) (string, error) {
	setting, value, _ := strings.Cut(args, " ")
	value = strings.TrimSpace(value)
	var err error
	var reply string
	switch strings.ToLower(setting) {
	case "notify":
		notifyTime, perr := model.ParseNotifyTime(value)
		if perr != nil {
			return fmt.Sprintf("I couldn't read %q as a time. Try `settings notify 8:00 am`", value), nil
		}
		err = s.deps.Subscribers.UpdateNotifyTime(r.Context(), userID, notifyTime)
		reply = fmt.Sprintf("You'll be notified at %s", notifyTime)
	case "timezone":
		if _, lerr := time.LoadLocation(value); lerr != nil || value == "" {
			return fmt.Sprintf("I don't know the timezone %q. Try `settings timezone America/Chicago`", value), nil
		}
		err = s.deps.Subscribers.UpdateTimezone(r.Context(), userID, value)
		reply = fmt.Sprintf("Your timezone is now %s", value)
	default:
		return "Try `settings " + commandUsage[cmdSettings] + "`", nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return "Please subscribe first :thinking_face:", nil
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

func validSourceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// slackImport queues the import and answers at once. The worker posts the
// outcome to the command's response_url.
func (s *Server) slackImport(r *http.Request, sc slackapi.SlashCommand, args string) (string, error) {
	source := strings.Trim(args, "<>")
	if !validSourceURL(source) {
		return "Try `import " + commandUsage[cmdImport] + "`", nil
	}
	if _, err := s.enqueueImport(r, importer.KindPDF, source, sc.UserName, sc.ResponseURL); err != nil {
		return "", err
	}
	return "Processing PDF", nil
}

func (s *Server) enqueueImport(r *http.Request, kind, source, user, responseURL string) (*repository.ImportRun, error) {
	run := &repository.ImportRun{ID: uuid.NewString(), Kind: kind, Source: source, RequestedBy: user}
	if err := s.deps.Runs.Create(r.Context(), run); err != nil {
		return nil, err
	}
	payload := queue.ImportPayload{RunID: run.ID, Kind: kind, URL: source, User: user, ResponseURL: responseURL}
	if err := queue.EnqueueImport(r.Context(), s.deps.Queue, payload); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Server) handleOAuth(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		s.respondText(w, http.StatusBadRequest, "Missing OAuth code")
		return
	}
	integration, err := s.deps.OAuth.ExchangeCode(r.Context(), code)
	if err != nil {
		s.deps.Logger.Warn("OAuth exchange failed", "error", err)
		s.respondText(w, http.StatusBadGateway, "Slack rejected the install")
		return
	}
	if err := s.deps.Integrations.UpsertOAuthIntegration(r.Context(), integration); err != nil {
		s.deps.Logger.Error("Failed to store OAuth integration", "team", integration.TeamID, "error", err)
		s.respondText(w, http.StatusInternalServerError, "An unexpected server error occurred")
		return
	}
	s.deps.Logger.Info("App installed", "team", integration.TeamID, "team_name", integration.TeamName)
	s.respondText(w, http.StatusOK, fmt.Sprintf("Soup calendar installed for %s", integration.TeamName))
}
