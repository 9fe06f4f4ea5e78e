// Package model contains the domain types shared by the importer, the
// repositories, the notifier and the HTTP surface.
package model

import (
	"fmt"
	"strings"
	"time"
)

// CalendarRow is one day of the soup calendar as produced by a parser. Soups
// normally holds two names but parsers emit whatever the source contained;
// the calendar repository decides what is acceptable.
type CalendarRow struct {
	Day   time.Time `json:"day"`
	Soups []string  `json:"soups"`
}

// SoupDay is a persisted calendar day ready for display.
type SoupDay struct {
	Day   time.Time `json:"day"`
	Soups []string  `json:"soups"`
	Text  string    `json:"text"`
}

// SoupWeek groups the calendar days of one Sunday to Saturday week.
type SoupWeek struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  []SoupDay `json:"days"`
	Soups []string  `json:"soups"`
	Text  string    `json:"text"`
}

// SoupMatch is a single soup returned by a search.
type SoupMatch struct {
	Day  time.Time `json:"day"`
	Soup string    `json:"soup"`
}

// ImportResult summarises what an import wrote to the calendar.
type ImportResult struct {
	ID string `json:"id"`
	// Kind is the source format, "pdf" or "html". Empty means pdf.
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	Rejected  int       `json:"rejected"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Message renders the summary posted back to whoever requested the import.
func (r *ImportResult) Message() string {
	label := "PDF"
	if r != nil && r.Kind != "" {
		label = strings.ToUpper(r.Kind)
	}
	if r == nil || r.Rows == 0 {
		return label + " Imported"
	}
	return fmt.Sprintf("%s Imported %d soups for %s - %s",
		label, r.Rows, r.StartDate.Format("2006/01/02"), r.EndDate.Format("2006/01/02"))
}

// DayText formats the Slack message for a single day relative to today.
func DayText(day time.Time, soups []string, today time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the soups for _%s_: ", TextForDate(day, today))
	for _, soup := range soups {
		b.WriteString("\n>")
		b.WriteString(soup)
	}
	return b.String()
}

// NewSoupDay builds a SoupDay, rendering its text against today.
func NewSoupDay(day time.Time, soups []string, today time.Time) *SoupDay {
	return &SoupDay{Day: day, Soups: soups, Text: DayText(day, soups, today)}
}

// NewSoupWeek builds the week view from the days found between start and end.
func NewSoupWeek(start, end time.Time, days []SoupDay, today time.Time) *SoupWeek {
	week := &SoupWeek{Start: start, End: end, Days: days}
	if len(days) == 0 {
		week.Soups = []string{}
		week.Text = fmt.Sprintf("No soups for week of %s", start.Format("2006-01-02"))
		return week
	}
	seen := make(map[string]struct{})
	lines := make([]string, 0, len(days))
	for _, d := range days {
		lines = append(lines, fmt.Sprintf("_%s_: %s", TextForDate(d.Day, today), strings.Join(d.Soups, ", ")))
		for _, soup := range d.Soups {
			if _, ok := seen[soup]; ok {
				continue
			}
			seen[soup] = struct{}{}
			week.Soups = append(week.Soups, soup)
		}
	}
	week.Text = strings.Join(lines, "\n")
	return week
}
