package importer

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/dharsanguruparan/soupcal/internal/model"
)

// Alerter receives parse-quality warnings. Delivery is best effort.
type Alerter interface {
	ReportParseWarning(ctx context.Context, message string)
}

type noAlerts struct{}

func (noAlerts) ReportParseWarning(context.Context, string) {}

// HTMLOptions describes where the calendar lives in the soup shop's page.
type HTMLOptions struct {
	// Tag is the element that encloses the calendar, e.g. "main".
	Tag string
	// Classes must match a container's class attribute exactly, in any order.
	Classes []string
	// DateLayouts are tried in order against the date text. The text carries
	// no year, so Year is applied afterwards.
	DateLayouts []string
	Year        int
}

// DefaultDateLayouts match headings such as "Monday, March 12".
var DefaultDateLayouts = []string{"Monday, January 2", "Monday, Jan 2", "Monday, 1/2"}

// ParseHTML reads the calendar published as a web page. Text nodes directly
// inside the matching containers alternate between a date heading and the
// soups served that day. A nil alerts drops warnings.
func ParseHTML(ctx context.Context, r io.Reader, opts HTMLOptions, alerts Alerter) ([]model.CalendarRow, error) {
	if alerts == nil {
		alerts = noAlerts{}
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	root := doc.Find(opts.Tag).First()
	if root.Length() == 0 {
		return nil, nil
	}

	var texts []string
	for _, container := range matchClasses(root.Get(0), opts.Classes) {
		texts = append(texts, directText(container)...)
	}

	layouts := opts.DateLayouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	year := opts.Year
	if year == 0 {
		year = time.Now().Year()
	}

	var rows []model.CalendarRow
	for i := 0; i+1 < len(texts); i += 2 {
		day, ok := parseHeading(texts[i], layouts, year)
		if !ok {
			alerts.ReportParseWarning(ctx, fmt.Sprintf("Unable to parse calendar date %q", texts[i]))
			continue
		}
		soups := splitSoups(texts[i+1])
		if len(soups) != 2 {
			alerts.ReportParseWarning(ctx, fmt.Sprintf("Expected 2 soups for %s, found %d: %q",
				day.Format("2006-01-02"), len(soups), texts[i+1]))
		}
		rows = append(rows, model.CalendarRow{Day: day, Soups: soups})
	}
	return rows, nil
}

// matchClasses walks n depth first and returns every element whose class set
// equals want. Matches nested inside other matches are included.
func matchClasses(n *html.Node, want []string) []*html.Node {
	want = classSet(strings.Join(want, " "))
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && slices.Equal(classSet(attr(n, "class")), want) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return out
}

func directText(n *html.Node) []string {
	var out []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if text := strings.TrimSpace(c.Data); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func classSet(s string) []string {
	fields := strings.Fields(s)
	slices.Sort(fields)
	return slices.Compact(fields)
}

func parseHeading(text string, layouts []string, year int) (time.Time, bool) {
	text = strings.Join(strings.Fields(text), " ")
	for _, layout := range layouts {
		t, err := time.Parse(layout, text)
		if err != nil {
			continue
		}
		return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// splitSoups splits on blank lines first and falls back to single newlines.
func splitSoups(text string) []string {
	soups := splitNonEmpty(text, "\n\n")
	if len(soups) != 2 {
		soups = splitNonEmpty(text, "\n")
	}
	return soups
}

func splitNonEmpty(text, sep string) []string {
	var out []string
	for _, part := range strings.Split(text, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
