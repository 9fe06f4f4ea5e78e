// Package search keeps an in-memory full-text index of calendar soups so
// the slash command can forgive typos ("chowdr") that SQL LIKE would miss.
package search

import (
	"fmt"
	"sort"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/dharsanguruparan/soupcal/internal/model"
)

const dayLayout = "2006-01-02"

// Index wraps a memory-only Bleve index.
type Index struct {
	index bleve.Index
}

// indexedSoup is the document stored per soup.
type indexedSoup struct {
	Soup string
	Day  string
}

// New creates an empty index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	soupFieldMapping := bleve.NewTextFieldMapping()
	soupFieldMapping.Analyzer = "en"

	dayFieldMapping := bleve.NewKeywordFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Soup", soupFieldMapping)
	docMapping.AddFieldMappingsAt("Day", dayFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}

// IndexRows adds the soups of each row, replacing earlier entries for the
// same day and position.
func (i *Index) IndexRows(rows []model.CalendarRow) error {
	batch := i.index.NewBatch()
	for _, row := range rows {
		day := row.Day.Format(dayLayout)
		for n, soup := range row.Soups {
			id := fmt.Sprintf("%s#%d", day, n)
			if err := batch.Index(id, indexedSoup{Soup: soup, Day: day}); err != nil {
				return fmt.Errorf("batch index %s: %w", id, err)
			}
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Load indexes soups already stored in the calendar.
func (i *Index) Load(matches []model.SoupMatch) error {
	byDay := make(map[time.Time][]string)
	var days []time.Time
	for _, m := range matches {
		if _, ok := byDay[m.Day]; !ok {
			days = append(days, m.Day)
		}
		byDay[m.Day] = append(byDay[m.Day], m.Soup)
	}
	rows := make([]model.CalendarRow, 0, len(days))
	for _, d := range days {
		rows = append(rows, model.CalendarRow{Day: d, Soups: byDay[d]})
	}
	return i.IndexRows(rows)
}

// Search finds soups on or after from that match term, allowing one typo
// per word. Results are ordered by day.
func (i *Index) Search(term string, from time.Time, limit int) ([]model.SoupMatch, error) {
	match := bleve.NewMatchQuery(term)
	match.SetField("Soup")
	match.SetFuzziness(1)

	start := from.Format(dayLayout)
	inclusive := true
	days := bleve.NewTermRangeInclusiveQuery(start, "", &inclusive, nil)
	days.SetField("Day")

	query := bleve.NewConjunctionQuery(match, days)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Fields = []string{"Soup", "Day"}

	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := make([]model.SoupMatch, 0, len(results.Hits))
	for _, hit := range results.Hits {
		soup, _ := hit.Fields["Soup"].(string)
		dayText, _ := hit.Fields["Day"].(string)
		day, err := time.Parse(dayLayout, dayText)
		if err != nil {
			continue
		}
		out = append(out, model.SoupMatch{Day: day, Soup: soup})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Day.Before(out[b].Day) })
	return out, nil
}

// Count returns the number of soups in the index.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
