package repository

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/soupcal/internal/model"
	"github.com/dharsanguruparan/soupcal/internal/secret"
)

// TeamIDLength is the length of a Slack team id.
const TeamIDLength = 9

// ErrInvalidTeamID is returned for team ids that are not TeamIDLength long.
var ErrInvalidTeamID = errors.New("team id must be 9 characters")

// IntegrationRepository stores per-team Slack credentials, sealed at rest.
type IntegrationRepository struct {
	pool *pgxpool.Pool
	box  *secret.Box
}

// NewIntegrationRepository constructs a repository.
func NewIntegrationRepository(pool *pgxpool.Pool, box *secret.Box) *IntegrationRepository {
	return &IntegrationRepository{pool: pool, box: box}
}

func validTeamID(teamID string) error {
	if len(teamID) != TeamIDLength {
		return fmt.Errorf("%q: %w", teamID, ErrInvalidTeamID)
	}
	return nil
}

func (r *IntegrationRepository) seal(values ...*string) error {
	for _, v := range values {
		sealed, err := r.box.Seal(*v)
		if err != nil {
			return err
		}
		*v = sealed
	}
	return nil
}

// UpsertTeamIntegration creates or replaces the slash-command credentials of
// a team.
func (r *IntegrationRepository) UpsertTeamIntegration(ctx context.Context, ti *model.TeamIntegration) error {
	if err := validTeamID(ti.TeamID); err != nil {
		return err
	}
	token, webhook := ti.SlashToken, ti.WebhookURL
	if err := r.seal(&token, &webhook); err != nil {
		return fmt.Errorf("seal team integration: %w", err)
	}
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO team_integrations (team_id, team_domain, slash_token, webhook_url, metadata, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
		ON CONFLICT (team_id) DO UPDATE
		SET team_domain = EXCLUDED.team_domain,
			slash_token = EXCLUDED.slash_token,
			webhook_url = EXCLUDED.webhook_url,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, ti.TeamID, ti.TeamDomain, token, webhook, ti.Metadata, now).Scan(&ti.CreatedAt, &ti.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert team integration: %w", err)
	}
	return nil
}

// GetTeamIntegration returns a team's integration with opened credentials.
func (r *IntegrationRepository) GetTeamIntegration(ctx context.Context, teamID string) (*model.TeamIntegration, error) {
	var ti model.TeamIntegration
	err := r.pool.QueryRow(ctx, `
		SELECT team_id, team_domain, slash_token, webhook_url, metadata, created_at, updated_at
		FROM team_integrations WHERE team_id=$1
	`, teamID).Scan(&ti.TeamID, &ti.TeamDomain, &ti.SlashToken, &ti.WebhookURL, &ti.Metadata, &ti.CreatedAt, &ti.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("team %s: %w", teamID, ErrNotFound)
		}
		return nil, fmt.Errorf("select team integration: %w", err)
	}
	if ti.SlashToken, err = r.box.Open(ti.SlashToken); err != nil {
		return nil, fmt.Errorf("open slash token: %w", err)
	}
	if ti.WebhookURL, err = r.box.Open(ti.WebhookURL); err != nil {
		return nil, fmt.Errorf("open webhook url: %w", err)
	}
	return &ti, nil
}

// ValidateTeamToken reports whether token is the stored slash token of the
// team. Unknown teams are not valid.
func (r *IntegrationRepository) ValidateTeamToken(ctx context.Context, teamID, token string) (bool, error) {
	ti, err := r.GetTeamIntegration(ctx, teamID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if token == "" || ti.SlashToken == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(ti.SlashToken)) == 1, nil
}

// UpsertOAuthIntegration stores the result of an app installation.
func (r *IntegrationRepository) UpsertOAuthIntegration(ctx context.Context, oi *model.OAuthIntegration) error {
	if err := validTeamID(oi.TeamID); err != nil {
		return err
	}
	token, bot, webhook := oi.Token, oi.BotToken, oi.WebhookURL
	if err := r.seal(&token, &bot, &webhook); err != nil {
		return fmt.Errorf("seal oauth integration: %w", err)
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO oauth_integrations (team_id, team_name, token, bot_token, scope, installer_user_id,
			domain, webhook_url, webhook_channel, webhook_config_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (team_id) DO UPDATE
		SET team_name = EXCLUDED.team_name,
			token = EXCLUDED.token,
			bot_token = EXCLUDED.bot_token,
			scope = EXCLUDED.scope,
			installer_user_id = EXCLUDED.installer_user_id,
			domain = EXCLUDED.domain,
			webhook_url = EXCLUDED.webhook_url,
			webhook_channel = EXCLUDED.webhook_channel,
			webhook_config_url = EXCLUDED.webhook_config_url
		RETURNING created_at
	`, oi.TeamID, oi.TeamName, token, bot, oi.Scope, oi.InstallerUserID,
		oi.Domain, webhook, oi.WebhookChannel, oi.WebhookConfigURL).Scan(&oi.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert oauth integration: %w", err)
	}
	return nil
}
