package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return pool, nil
}

// Schema is applied on start-up by every binary and by "soupcal migrate".
// Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS soup_calendar (
	id BIGSERIAL PRIMARY KEY,
	day DATE NOT NULL,
	soup TEXT NOT NULL,
	created_by TEXT NOT NULL DEFAULT 'system',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_soup_calendar_day ON soup_calendar(day);

DROP VIEW IF EXISTS soup_calendar_view;
CREATE VIEW soup_calendar_view AS
	SELECT day, array_agg(soup ORDER BY id) AS soups
	FROM soup_calendar
	GROUP BY day;

CREATE TABLE IF NOT EXISTS subscribers (
	id BIGSERIAL PRIMARY KEY,
	slack_user_id TEXT NOT NULL UNIQUE,
	slack_username TEXT NOT NULL DEFAULT '',
	slack_team_id TEXT NOT NULL,
	search_term TEXT,
	timezone TEXT,
	notify_time TIME NOT NULL DEFAULT '09:00:00',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_subscribers_team ON subscribers(slack_team_id);

CREATE TABLE IF NOT EXISTS team_integrations (
	team_id TEXT PRIMARY KEY,
	team_domain TEXT NOT NULL DEFAULT '',
	slash_token TEXT NOT NULL,
	webhook_url TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS oauth_integrations (
	team_id TEXT PRIMARY KEY,
	team_name TEXT NOT NULL DEFAULT '',
	token TEXT NOT NULL DEFAULT '',
	bot_token TEXT NOT NULL DEFAULT '',
	scope TEXT NOT NULL DEFAULT '',
	installer_user_id TEXT NOT NULL DEFAULT '',
	domain TEXT NOT NULL DEFAULT '',
	webhook_url TEXT NOT NULL DEFAULT '',
	webhook_channel TEXT NOT NULL DEFAULT '',
	webhook_config_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS import_runs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	source TEXT NOT NULL,
	requested_by TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	rows_imported INTEGER NOT NULL DEFAULT 0,
	rows_rejected INTEGER NOT NULL DEFAULT 0,
	start_date DATE,
	end_date DATE,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_import_runs_status ON import_runs(status);`

// EnsureSchema creates the tables and views if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
