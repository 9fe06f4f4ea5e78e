package api

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
	}{
		{"", Command{Name: "day"}},
		{"tomorrow", Command{Name: "day", Args: "tomorrow"}},
		{"August 23, 2017", Command{Name: "day", Args: "August 23, 2017"}},
		{"day August 23, 2017", Command{Name: "day", Args: "August 23, 2017"}},
		{"DaY 2017-08-23", Command{Name: "day", Args: "2017-08-23"}},
		{"search corn chowder", Command{Name: "search", Args: "corn chowder"}},
		{"subscribe", Command{Name: "subscribe"}},
		{"subscribe  corn ", Command{Name: "subscribe", Args: "corn"}},
		{"unsubscribe", Command{Name: "unsubscribe"}},
		{"feedback", Command{Name: "feedback"}},
		{"settings notify 8:00", Command{Name: "settings", Args: "notify 8:00"}},
		{"import https://example.com/soup.pdf", Command{Name: "import", Args: "https://example.com/soup.pdf"}},
		{"hello bob barker", Command{Name: "hello", Args: "bob barker"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := ParseCommand(tt.text); got != tt.want {
				t.Fatalf("ParseCommand(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestUnknownCommandText(t *testing.T) {
	text := unknownCommandText()
	if !strings.HasPrefix(text, "Whoops, I don't recognize that command. Try one of these instead!") {
		t.Fatalf("text = %q", text)
	}
	for _, want := range []string{
		"\n>day [today | tomorrow | yesterday | [YYYY-MM-DD]]",
		"\n>unsubscribe\n",
		"\n>import [PDF url]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %q", want, text)
		}
	}
}
