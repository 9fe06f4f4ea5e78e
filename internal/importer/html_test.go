package importer

import (
	"context"
	"strings"
	"sync"
	"testing"
)

type recordingAlerts struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingAlerts) ReportParseWarning(_ context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

const calendarPage = `<html><body>
<header><div class="day-card">Not the calendar</div></header>
<main>
  <section class="calendar">
    <div class="day-card">
      Monday, March 12
      <span>ignored nested text</span>
      Tomato Basil

      Chicken Noodle
    </div>
    <div class="card day-card">
      Tuesday, March 13
      Corn Chowder
Chili
    </div>
    <div class="day-card extra">Wednesday, March 14</div>
    <div class="day-card">Someday, Smarch 40</div>
    <div class="day-card">Split Pea</div>
    <div class="day-card">Thursday, March 15<br>Lentil
Kale
Pho</div>
    <div class="day-card">Friday, March 16</div>
  </section>
</main>
</body></html>`

func TestParseHTML(t *testing.T) {
	alerts := &recordingAlerts{}
	opts := HTMLOptions{Tag: "main", Classes: []string{"day-card"}, Year: 2018}
	rows, err := ParseHTML(context.Background(), strings.NewReader(calendarPage), opts, alerts)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
	if !rows[0].Day.Equal(day(2018, 3, 12)) {
		t.Fatalf("first day = %v", rows[0].Day)
	}
	if strings.Join(rows[0].Soups, "|") != "Tomato Basil|Chicken Noodle" {
		t.Fatalf("first soups = %q", rows[0].Soups)
	}
	if !rows[1].Day.Equal(day(2018, 3, 15)) {
		t.Fatalf("second day = %v", rows[1].Day)
	}
	if len(rows[1].Soups) != 3 {
		t.Fatalf("expected the 3-way split to be kept, got %q", rows[1].Soups)
	}
	if len(alerts.messages) != 2 {
		t.Fatalf("expected date and split warnings, got %q", alerts.messages)
	}
}

func TestParseHTMLPairsTextNodes(t *testing.T) {
	page := `<main>
<div class="b a">Monday, March 12</div>
<div class="a b"><div class="a b">Tomato Basil

Chicken Noodle</div></div>
<div class="a b">Tuesday, March 13</div>
</main>`
	alerts := &recordingAlerts{}
	opts := HTMLOptions{Tag: "main", Classes: []string{"a", "b"}, Year: 2018}
	rows, err := ParseHTML(context.Background(), strings.NewReader(page), opts, alerts)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected trailing date to be dropped, got %+v", rows)
	}
	if strings.Join(rows[0].Soups, "|") != "Tomato Basil|Chicken Noodle" {
		t.Fatalf("soups = %q", rows[0].Soups)
	}
	if len(alerts.messages) != 0 {
		t.Fatalf("unexpected warnings %q", alerts.messages)
	}
}

func TestParseHTMLWithoutAlerts(t *testing.T) {
	opts := HTMLOptions{Tag: "main", Classes: []string{"day-card"}, Year: 2018}
	rows, err := ParseHTML(context.Background(), strings.NewReader(calendarPage), opts, nil)
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if len(rows) == 0 {
		t.Fatalf("expected rows even without an alert reporter")
	}
}

func TestParseHTMLMissingTag(t *testing.T) {
	rows, err := ParseHTML(context.Background(), strings.NewReader("<div>nothing</div>"), HTMLOptions{Tag: "main"}, &recordingAlerts{})
	if err != nil || rows != nil {
		t.Fatalf("got rows=%v err=%v", rows, err)
	}
}

func TestSplitSoups(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "A\n\nB", want: 2},
		{in: "A\nB", want: 2},
		{in: "A\n\nB\n\nC", want: 3},
		{in: "A", want: 1},
	}
	for _, tt := range tests {
		if got := splitSoups(tt.in); len(got) != tt.want {
			t.Errorf("splitSoups(%q) = %q, want %d parts", tt.in, got, tt.want)
		}
	}
}
