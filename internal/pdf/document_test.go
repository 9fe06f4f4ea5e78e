package pdfutil

import (
	"slices"
	"testing"

	pdf "github.com/ledongthuc/pdf"
)

func calendarDoc() *Document {
	return &Document{Pages: []Page{
		{Texts: []Text{
			{R: []Run{{T: "3%2F4%2F2024"}}},
			{R: []Run{{T: "Tomato%20Basil"}, {T: "Chicken%20Noodle"}}},
		}},
		{Texts: []Text{
			{R: []Run{{T: "Soup%20Calendar"}}},
		}},
	}}
}

func TestTokensDecodesInOrder(t *testing.T) {
	doc := calendarDoc()
	got := slices.Collect(doc.Tokens(0))
	want := []string{"3/4/2024", "Tomato Basil", "Chicken Noodle"}
	if !slices.Equal(got, want) {
		t.Fatalf("Tokens(0) = %q, want %q", got, want)
	}
}

func TestTokensRestartable(t *testing.T) {
	seq := calendarDoc().Tokens(0)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Fatalf("second pass differs: %q vs %q", first, second)
	}
}

func TestTokensEmptyInputs(t *testing.T) {
	var nilDoc *Document
	tests := []struct {
		name string
		doc  *Document
		page int
	}{
		{name: "nil document", doc: nilDoc, page: 0},
		{name: "no pages", doc: &Document{}, page: 0},
		{name: "page out of range", doc: calendarDoc(), page: 5},
		{name: "negative page", doc: calendarDoc(), page: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slices.Collect(tt.doc.Tokens(tt.page)); len(got) != 0 {
				t.Fatalf("expected no tokens, got %q", got)
			}
		})
	}
}

func TestTokensInvalidEncodingPassesThrough(t *testing.T) {
	doc := &Document{Pages: []Page{{Texts: []Text{{R: []Run{{T: "100%"}}}}}}}
	got := slices.Collect(doc.Tokens(0))
	if len(got) != 1 || got[0] != "100%" {
		t.Fatalf("expected raw token, got %q", got)
	}
}

func TestTokensStopEarly(t *testing.T) {
	count := 0
	for range calendarDoc().Tokens(0) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected to stop after one token, got %d", count)
	}
}

func TestMergeGlyphs(t *testing.T) {
	glyphs := []pdf.Text{
		{X: 10, Y: 100, W: 5, FontSize: 10, S: "3"},
		{X: 15, Y: 100, W: 5, FontSize: 10, S: "/"},
		{X: 20, Y: 100, W: 5, FontSize: 10, S: "4"},
		{X: 10, Y: 80, W: 5, FontSize: 10, S: "C"},
		{X: 15, Y: 80, W: 5, FontSize: 10, S: "o"},
		{X: 300, Y: 80, W: 5, FontSize: 10, S: "X"},
	}
	texts := mergeGlyphs(glyphs)
	doc := &Document{Pages: []Page{{Texts: texts}}}
	got := slices.Collect(doc.Tokens(0))
	want := []string{"3/4", "Co", "X"}
	if !slices.Equal(got, want) {
		t.Fatalf("mergeGlyphs tokens = %q, want %q", got, want)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load([]byte("not a pdf")); err == nil {
		t.Fatalf("expected error for non-PDF input")
	}
}
