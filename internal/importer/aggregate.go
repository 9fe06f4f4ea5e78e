// Package importer turns soup calendar documents into calendar rows and
// writes them to the calendar store.
package importer

import (
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/dharsanguruparan/soupcal/internal/model"
	pdfutil "github.com/dharsanguruparan/soupcal/internal/pdf"
)

const (
	// endOfCalendar marks the end of usable calendar content on a page.
	endOfCalendar = "Soup Calendar"
	// continuation is the bare token that joins two halves of a soup name.
	continuation = "-"
	dateLayout   = "1/2/2006"
)

var datePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)

// parseDate reports whether token is a calendar date such as 3/12/2018.
func parseDate(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if !datePattern.MatchString(token) {
		return time.Time{}, false
	}
	day, err := time.Parse(dateLayout, token)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// endsSoup reports whether token closes a soup name: its last character is
// a letter, a digit or a closing parenthesis and no bare hyphen follows.
func endsSoup(token, next string, hasNext bool) bool {
	if token == "" || token == continuation {
		return false
	}
	if hasNext && next == continuation {
		return false
	}
	last := token[len(token)-1]
	switch {
	case last >= 'a' && last <= 'z', last >= 'A' && last <= 'Z':
		return true
	case last >= '0' && last <= '9', last == ')':
		return true
	}
	return false
}

type aggregation struct {
	rows    []model.CalendarRow
	day     time.Time
	soups   []string
	buffer  strings.Builder
	started bool
	stopped bool
}

func (a *aggregation) pushSoup() {
	if soup := strings.TrimSpace(a.buffer.String()); soup != "" {
		a.soups = append(a.soups, soup)
	}
	a.buffer.Reset()
}

func (a *aggregation) flush() {
	a.pushSoup()
	a.rows = append(a.rows, model.CalendarRow{Day: a.day, Soups: a.soups})
	a.soups = nil
}

// AggregateRows rebuilds calendar rows from the flat token stream of one
// page. The first date starts a row and every later date closes the row in
// progress. After the "Soup Calendar" heading only dates are still honoured:
// each one closes the current row and opens an empty one. Rows are returned
// with however many soups were found.
func AggregateRows(tokens iter.Seq[string]) []model.CalendarRow {
	next, stop := iter.Pull(tokens)
	defer stop()

	var agg aggregation
	token, ok := next()
	for ok {
		following, hasNext := next()
		agg.consume(token, following, hasNext)
		token, ok = following, hasNext
	}
	if agg.started {
		agg.flush()
	}
	return agg.rows
}

func (a *aggregation) consume(token, next string, hasNext bool) {
	if day, isDate := parseDate(token); isDate {
		if a.started {
			a.flush()
		}
		a.started = true
		a.day = day
		return
	}
	if !a.started || a.stopped {
		return
	}
	if strings.Contains(token, endOfCalendar) {
		a.stopped = true
		return
	}
	a.buffer.WriteString(token)
	if endsSoup(token, next, hasNext) {
		a.pushSoup()
	}
}

// PageParser turns one page of a document into rows.
type PageParser func(doc *pdfutil.Document, page int) []model.CalendarRow

// ParsePage aggregates the tokens of a single page.
func ParsePage(doc *pdfutil.Document, page int) []model.CalendarRow {
	return AggregateRows(doc.Tokens(page))
}

// FirstNonEmptyPage runs parse over the pages of doc in order and returns the
// rows of the first page that produced any, along with that page's index.
// When no page yields rows it returns nil and -1.
func FirstNonEmptyPage(doc *pdfutil.Document, parse PageParser) ([]model.CalendarRow, int) {
	for page := 0; page < doc.NumPages(); page++ {
		if rows := parse(doc, page); len(rows) > 0 {
			return rows, page
		}
	}
	return nil, -1
}
