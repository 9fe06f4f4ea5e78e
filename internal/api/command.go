package api

import (
	"strings"
	"time"

	"github.com/dharsanguruparan/soupcal/internal/model"
)

// Slash command names.
const (
	cmdDay         = "day"
	cmdSearch      = "search"
	cmdSubscribe   = "subscribe"
	cmdUnsubscribe = "unsubscribe"
	cmdFeedback    = "feedback"
	cmdWeek        = "week"
	cmdSettings    = "settings"
	cmdImport      = "import"
)

var supportedCommands = []string{cmdDay, cmdSearch, cmdSubscribe, cmdUnsubscribe, cmdFeedback, cmdWeek, cmdSettings, cmdImport}

var commandUsage = map[string]string{
	cmdDay:         "[today | tomorrow | yesterday | [YYYY-MM-DD]]",
	cmdSearch:      "[soup name/type (example: gouda | gf)]",
	cmdSubscribe:   "[search (example: corn)]",
	cmdUnsubscribe: "",
	cmdFeedback:    "<https://github.com/dharsanguruparan/soupcal/issues|Submit feedback on GitHub>",
	cmdWeek:        "[today | tomorrow | yesterday | [YYYY-MM-DD]]",
	cmdSettings:    "[notify (example: 8:00 am) | timezone (example: America/Chicago)]",
	cmdImport:      "[PDF url]",
}

// Command is a parsed slash command: the first word names the command and
// the rest is its argument.
type Command struct {
	Name string
	Args string
}

// ParseCommand splits the text of a slash command. Text that does not start
// with a known command but reads as a day is a day lookup, so "/soup" and
// "/soup tomorrow" both work.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return Command{Name: cmdDay}
	}
	first, rest, _ := strings.Cut(text, " ")
	name := strings.ToLower(first)
	if _, ok := commandUsage[name]; ok {
		return Command{Name: name, Args: strings.TrimSpace(rest)}
	}
	if _, err := model.DateForText(text, time.Time{}); err == nil {
		return Command{Name: cmdDay, Args: text}
	}
	return Command{Name: name, Args: strings.TrimSpace(rest)}
}

func unknownCommandText() string {
	var b strings.Builder
	b.WriteString("Whoops, I don't recognize that command. Try one of these instead!")
	for _, cmd := range supportedCommands {
		b.WriteString("\n>")
		b.WriteString(cmd)
		if usage := commandUsage[cmd]; usage != "" {
			b.WriteString(" ")
			b.WriteString(usage)
		}
	}
	return b.String()
}
