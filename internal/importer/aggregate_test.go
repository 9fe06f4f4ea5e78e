package importer

import (
	"slices"
	"testing"
	"time"

	"github.com/dharsanguruparan/soupcal/internal/model"
	pdfutil "github.com/dharsanguruparan/soupcal/internal/pdf"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rowsEqual(a, b []model.CalendarRow) bool {
	return slices.EqualFunc(a, b, func(x, y model.CalendarRow) bool {
		return x.Day.Equal(y.Day) && slices.Equal(x.Soups, y.Soups)
	})
}

func TestAggregateRows(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   []model.CalendarRow
	}{
		{
			name:   "sentinel with end flush",
			tokens: []string{"3/12/2018", "Chicken Noodle", "3/13/2018", "Beef Stew", "Soup Calendar", "ignored"},
			want: []model.CalendarRow{
				{Day: day(2018, 3, 12), Soups: []string{"Chicken Noodle"}},
				{Day: day(2018, 3, 13), Soups: []string{"Beef Stew"}},
			},
		},
		{
			name:   "date after sentinel opens an empty row",
			tokens: []string{"3/29/2018", "Lentil", "Gumbo", "Soup Calendar", "3/30/2018", "x"},
			want: []model.CalendarRow{
				{Day: day(2018, 3, 29), Soups: []string{"Lentil", "Gumbo"}},
				{Day: day(2018, 3, 30)},
			},
		},
		{
			name:   "two soups per day",
			tokens: []string{"3/12/2018", "Tomato Basil", "Chicken Noodle", "3/13/2018", "Corn Chowder", "Chili (GF)"},
			want: []model.CalendarRow{
				{Day: day(2018, 3, 12), Soups: []string{"Tomato Basil", "Chicken Noodle"}},
				{Day: day(2018, 3, 13), Soups: []string{"Corn Chowder", "Chili (GF)"}},
			},
		},
		{
			name:   "fragments joined until boundary",
			tokens: []string{"3/12/2018", "Roasted Red ", "Pepper", "Lentil &", " Kale"},
			want: []model.CalendarRow{
				{Day: day(2018, 3, 12), Soups: []string{"Roasted Red Pepper", "Lentil & Kale"}},
			},
		},
		{
			name:   "hyphen suppresses boundary",
			tokens: []string{"3/12/2018", "Black Bean", "-", "Corn", "Chicken Tortilla"},
			want: []model.CalendarRow{
				{Day: day(2018, 3, 12), Soups: []string{"Black Bean-Corn", "Chicken Tortilla"}},
			},
		},
		{
			name:   "tokens before first date ignored",
			tokens: []string{"March", "Menu", "3/12/2018", "Split Pea"},
			want: []model.CalendarRow{
				{Day: day(2018, 3, 12), Soups: []string{"Split Pea"}},
			},
		},
		{
			name:   "trailing buffer flushed with next date",
			tokens: []string{"3/12/2018", "Split Pea", "Ham &", "3/13/2018"},
			want: []model.CalendarRow{
				{Day: day(2018, 3, 12), Soups: []string{"Split Pea", "Ham &"}},
				{Day: day(2018, 3, 13)},
			},
		},
		{
			name:   "invalid calendar date is not a date",
			tokens: []string{"3/12/2018", "Borscht", "13/45/2018", "Pho"},
			want: []model.CalendarRow{
				{Day: day(2018, 3, 12), Soups: []string{"Borscht", "13/45/2018", "Pho"}},
			},
		},
		{
			name:   "no dates",
			tokens: []string{"Chicken Noodle", "Beef Stew"},
		},
		{
			name: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateRows(slices.Values(tt.tokens))
			if !rowsEqual(got, tt.want) {
				t.Fatalf("AggregateRows() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAggregateBoundaryCount(t *testing.T) {
	for n := 1; n <= 5; n++ {
		tokens := []string{"1/2/2020"}
		for i := 0; i < n; i++ {
			tokens = append(tokens, "Soup "+string(rune('A'+i)))
		}
		rows := AggregateRows(slices.Values(tokens))
		if len(rows) != 1 {
			t.Fatalf("n=%d: expected one row, got %d", n, len(rows))
		}
		if len(rows[0].Soups) != n {
			t.Fatalf("n=%d: expected %d soups, got %v", n, n, rows[0].Soups)
		}
	}
}

func TestAggregateStopsAtSentinel(t *testing.T) {
	tokens := []string{"1/2/2020", "Minestrone", "Our Soup Calendar", "Lobster Bisque", "Gazpacho"}
	rows := AggregateRows(slices.Values(tokens))
	for _, row := range rows {
		for _, soup := range row.Soups {
			if soup == "Lobster Bisque" || soup == "Gazpacho" {
				t.Fatalf("token after sentinel appended: %v", row.Soups)
			}
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := map[string]bool{
		"3/12/2018":    true,
		" 12/1/2019 ":  true,
		"2/30/2018":    false,
		"3/12/18":      false,
		"on 3/12/2018": false,
		"Soup":         false,
	}
	for in, want := range tests {
		if _, got := parseDate(in); got != want {
			t.Errorf("parseDate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFirstNonEmptyPage(t *testing.T) {
	doc := &pdfutil.Document{Pages: make([]pdfutil.Page, 5)}
	const productive = 2
	calls := 0
	parse := func(_ *pdfutil.Document, page int) []model.CalendarRow {
		calls++
		if page == productive {
			return []model.CalendarRow{{Day: day(2020, 1, 2), Soups: []string{"A", "B"}}}
		}
		return nil
	}
	rows, page := FirstNonEmptyPage(doc, parse)
	if page != productive || len(rows) != 1 {
		t.Fatalf("FirstNonEmptyPage() = %v, %d", rows, page)
	}
	if calls > productive+1 {
		t.Fatalf("expected at most %d parse calls, got %d", productive+1, calls)
	}
}

func TestFirstNonEmptyPageNone(t *testing.T) {
	doc := &pdfutil.Document{Pages: make([]pdfutil.Page, 3)}
	calls := 0
	rows, page := FirstNonEmptyPage(doc, func(*pdfutil.Document, int) []model.CalendarRow {
		calls++
		return nil
	})
	if rows != nil || page != -1 || calls != 3 {
		t.Fatalf("got rows=%v page=%d calls=%d", rows, page, calls)
	}
	if rows, page := FirstNonEmptyPage(nil, ParsePage); rows != nil || page != -1 {
		t.Fatalf("nil document should yield nothing")
	}
}

func TestParsePageUsesDocumentTokens(t *testing.T) {
	doc := &pdfutil.Document{Pages: []pdfutil.Page{
		{Texts: []pdfutil.Text{{R: []pdfutil.Run{{T: "Cover%20page"}}}}},
		{Texts: []pdfutil.Text{
			{R: []pdfutil.Run{{T: "3%2F12%2F2018"}}},
			{R: []pdfutil.Run{{T: "Chicken%20Noodle"}, {T: "Beef%20Stew"}}},
		}},
	}}
	rows, page := FirstNonEmptyPage(doc, ParsePage)
	want := []model.CalendarRow{{Day: day(2018, 3, 12), Soups: []string{"Chicken Noodle", "Beef Stew"}}}
	if page != 1 || !rowsEqual(rows, want) {
		t.Fatalf("got page %d rows %+v", page, rows)
	}
}
