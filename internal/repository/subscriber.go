package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/soupcal/internal/model"
	"github.com/dharsanguruparan/soupcal/internal/secret"
)

// SubscriberRepository stores notification subscriptions.
type SubscriberRepository struct {
	pool *pgxpool.Pool
	box  *secret.Box
}

// NewSubscriberRepository constructs a repository. box opens the team
// credentials joined into ListSubscribers.
func NewSubscriberRepository(pool *pgxpool.Pool, box *secret.Box) *SubscriberRepository {
	return &SubscriberRepository{pool: pool, box: box}
}

// Subscribe creates or refreshes the subscription of a Slack user. An empty
// term clears any previous search term.
func (r *SubscriberRepository) Subscribe(ctx context.Context, sub *model.Subscriber) error {
	var term *string
	if t := strings.TrimSpace(sub.Term()); t != "" {
		term = &t
	}
	sub.SearchTerm = term
	err := r.pool.QueryRow(ctx, `
		INSERT INTO subscribers (slack_user_id, slack_username, slack_team_id, search_term)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (slack_user_id) DO UPDATE
		SET slack_username = EXCLUDED.slack_username,
			slack_team_id = EXCLUDED.slack_team_id,
			search_term = EXCLUDED.search_term
		RETURNING id, COALESCE(timezone,''), to_char(notify_time, 'HH24:MI:SS'), created_at
	`, sub.SlackUserID, sub.SlackUsername, sub.SlackTeamID, term).
		Scan(&sub.ID, &sub.Timezone, &sub.NotifyTime, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

// Unsubscribe removes a subscription and reports whether one existed.
func (r *SubscriberRepository) Unsubscribe(ctx context.Context, slackUserID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM subscribers WHERE slack_user_id=$1`, slackUserID)
	if err != nil {
		return false, fmt.Errorf("delete subscriber: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateNotifyTime stores a HH:MM:SS clock time for the subscriber.
func (r *SubscriberRepository) UpdateNotifyTime(ctx context.Context, slackUserID, notifyTime string) error {
	return r.update(ctx, `UPDATE subscribers SET notify_time=$1::time WHERE slack_user_id=$2`, notifyTime, slackUserID)
}

// UpdateTimezone stores an IANA zone name for the subscriber.
func (r *SubscriberRepository) UpdateTimezone(ctx context.Context, slackUserID, timezone string) error {
	return r.update(ctx, `UPDATE subscribers SET timezone=$1 WHERE slack_user_id=$2`, timezone, slackUserID)
}

func (r *SubscriberRepository) update(ctx context.Context, sql string, value, slackUserID string) error {
	tag, err := r.pool.Exec(ctx, sql, value, slackUserID)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subscriber %s: %w", slackUserID, ErrNotFound)
	}
	return nil
}

// GetBySlackUserID returns the subscription of a Slack user without
// credentials. ErrNotFound is returned when the user is not subscribed.
func (r *SubscriberRepository) GetBySlackUserID(ctx context.Context, slackUserID string) (*model.Subscriber, error) {
	var (
		sub  model.Subscriber
		term sql.NullString
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, slack_user_id, slack_username, slack_team_id, search_term,
			COALESCE(timezone,''), to_char(notify_time, 'HH24:MI:SS'), created_at
		FROM subscribers WHERE slack_user_id=$1
	`, slackUserID).Scan(&sub.ID, &sub.SlackUserID, &sub.SlackUsername, &sub.SlackTeamID, &term,
		&sub.Timezone, &sub.NotifyTime, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("subscriber %s: %w", slackUserID, ErrNotFound)
		}
		return nil, fmt.Errorf("select subscriber: %w", err)
	}
	if term.Valid {
		t := term.String
		sub.SearchTerm = &t
	}
	return &sub, nil
}

// ListSubscribers returns every subscriber joined with the credentials of
// its team. With decrypt the slash and bot tokens are opened; otherwise they
// are left empty. A token that fails to open is left empty so that only that
// subscriber's delivery fails.
func (r *SubscriberRepository) ListSubscribers(ctx context.Context, decrypt bool) ([]model.Subscriber, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.slack_user_id, s.slack_username, s.slack_team_id, s.search_term,
			COALESCE(s.timezone,''), to_char(s.notify_time, 'HH24:MI:SS'), s.created_at,
			COALESCE(t.slash_token,''), COALESCE(o.bot_token,'')
		FROM subscribers s
		LEFT JOIN team_integrations t ON t.team_id = s.slack_team_id
		LEFT JOIN oauth_integrations o ON o.team_id = s.slack_team_id
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("select subscribers: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscriber
	for rows.Next() {
		var (
			sub                model.Subscriber
			term               sql.NullString
			slashToken, botTok string
		)
		if err := rows.Scan(&sub.ID, &sub.SlackUserID, &sub.SlackUsername, &sub.SlackTeamID, &term,
			&sub.Timezone, &sub.NotifyTime, &sub.CreatedAt, &slashToken, &botTok); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		if term.Valid {
			t := term.String
			sub.SearchTerm = &t
		}
		if decrypt && r.box != nil {
			sub.SlackSlashToken, _ = r.box.Open(slashToken)
			sub.SlackBotToken, _ = r.box.Open(botTok)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return subs, nil
}
