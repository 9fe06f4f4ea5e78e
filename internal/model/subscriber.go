package model

import "time"

// Subscriber is a Slack user who receives daily soup notifications. Tokens
// are plain text once they reach this type; the repository decrypts them.
type Subscriber struct {
	ID              int64     `json:"id"`
	SlackUserID     string    `json:"slackUserId"`
	SlackUsername   string    `json:"slackUsername"`
	SlackTeamID     string    `json:"slackTeamId"`
	SearchTerm      *string   `json:"searchTerm,omitempty"`
	Timezone        string    `json:"timezone,omitempty"`
	NotifyTime      string    `json:"notifyTime"`
	SlackSlashToken string    `json:"-"`
	SlackBotToken   string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Term returns the subscriber's search term or "" when none is set.
func (s Subscriber) Term() string {
	if s.SearchTerm == nil {
		return ""
	}
	return *s.SearchTerm
}

// DefaultNotifyTime is used for new subscribers that never changed it.
const DefaultNotifyTime = "09:00:00"

// TeamIntegration holds the slash-command credentials of a Slack team.
type TeamIntegration struct {
	TeamID     string    `json:"teamId"`
	TeamDomain string    `json:"teamDomain"`
	SlashToken string    `json:"-"`
	WebhookURL string    `json:"-"`
	Metadata   string    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// OAuthIntegration is what Slack hands back when a team installs the app.
type OAuthIntegration struct {
	TeamID           string    `json:"teamId"`
	TeamName         string    `json:"teamName"`
	Token            string    `json:"-"`
	BotToken         string    `json:"-"`
	Scope            string    `json:"scope"`
	InstallerUserID  string    `json:"installerUserId"`
	Domain           string    `json:"domain"`
	WebhookURL       string    `json:"-"`
	WebhookChannel   string    `json:"webhookChannel"`
	WebhookConfigURL string    `json:"webhookConfigUrl"`
	CreatedAt        time.Time `json:"createdAt"`
}
