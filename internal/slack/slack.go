// Package slack is the service's Slack Web API collaborator: direct
// messages, response URLs, incoming webhooks and the OAuth exchange.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	slackapi "github.com/slack-go/slack"

	"github.com/dharsanguruparan/soupcal/internal/model"
)

// DeliveryResult identifies a posted message.
type DeliveryResult struct {
	Channel   string
	Timestamp string
}

// DeliveryError is returned when Slack does not accept a message.
type DeliveryError struct {
	UserID string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.UserID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Options configures a Client.
type Options struct {
	// APIURL overrides https://slack.com/api/, for tests.
	APIURL       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Username     string
	IconEmoji    string
	Timeout      time.Duration
}

// Client talks to Slack on behalf of many teams; tokens are passed per call.
type Client struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger
}

// New creates a Client.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{opts: opts, http: &http.Client{Timeout: opts.Timeout}, logger: logger}
}

func (c *Client) api(token string) *slackapi.Client {
	options := []slackapi.Option{slackapi.OptionHTTPClient(c.http)}
	if c.opts.APIURL != "" {
		options = append(options, slackapi.OptionAPIURL(c.opts.APIURL))
	}
	return slackapi.New(token, options...)
}

// SendDirectMessage opens a DM channel with userID as the bot and posts
// text to it. Rate-limited calls are retried with backoff.
func (c *Client) SendDirectMessage(ctx context.Context, userID, text, botToken string) (*DeliveryResult, error) {
	api := c.api(botToken)
	var result DeliveryResult
	start := time.Now()
	err := retry.Do(
		func() error {
			channel, _, _, err := api.OpenConversationContext(ctx, &slackapi.OpenConversationParameters{Users: []string{userID}})
			if err != nil {
				return fmt.Errorf("open conversation: %w", err)
			}
			ch, ts, err := api.PostMessageContext(ctx, channel.ID, slackapi.MsgOptionText(text, false))
			if err != nil {
				return fmt.Errorf("post message: %w", err)
			}
			result = DeliveryResult{Channel: ch, Timestamp: ts}
			return nil
		},
		retry.Attempts(3),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.Delay(2*time.Second),
		retry.MaxDelay(30*time.Second),
		retry.RetryIf(func(err error) bool {
			var rl *slackapi.RateLimitedError
			return errors.As(err, &rl)
		}),
	)
	if err != nil {
		c.logger.Warn("Slack message failed", "user", userID, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, &DeliveryError{UserID: userID, Err: err}
	}
	c.logger.Info("Slack message delivered", "user", userID, "channel", result.Channel,
		"duration_ms", time.Since(start).Milliseconds())
	return &result, nil
}

// PostWebhook sends text to an incoming webhook or a slash command
// response_url.
func (c *Client) PostWebhook(ctx context.Context, url, text string) error {
	msg := &slackapi.WebhookMessage{
		Text:      text,
		Username:  c.opts.Username,
		IconEmoji: c.opts.IconEmoji,
	}
	if err := slackapi.PostWebhookCustomHTTPContext(ctx, url, c.http, msg); err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	return nil
}

// ExchangeCode completes the OAuth install flow for a team.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*model.OAuthIntegration, error) {
	resp, err := slackapi.GetOAuthV2ResponseContext(ctx, c.http, c.opts.ClientID, c.opts.ClientSecret, code, c.opts.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange: %w", err)
	}
	return &model.OAuthIntegration{
		TeamID:           resp.Team.ID,
		TeamName:         resp.Team.Name,
		Token:            resp.AuthedUser.AccessToken,
		BotToken:         resp.AccessToken,
		Scope:            resp.Scope,
		InstallerUserID:  resp.AuthedUser.ID,
		WebhookURL:       resp.IncomingWebhook.URL,
		WebhookChannel:   resp.IncomingWebhook.Channel,
		WebhookConfigURL: resp.IncomingWebhook.ConfigurationURL,
	}, nil
}
