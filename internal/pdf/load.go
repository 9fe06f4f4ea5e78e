package pdfutil

import (
	"bytes"
	"fmt"
	"math"

	pdf "github.com/ledongthuc/pdf"
)

const (
	// baselineTolerance is how far apart two glyph baselines may be and still
	// count as the same line.
	baselineTolerance = 0.5
	// gapFactor times the font size is the widest horizontal gap bridged when
	// glyphs are merged into a run.
	gapFactor = 1.5
)

// Load parses PDF bytes using ledongthuc/pdf. Glyphs that sit next to each
// other on one baseline are merged into a single text block.
func Load(data []byte) (*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("new pdf reader: %w", err)
	}
	doc := &Document{}
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			doc.Pages = append(doc.Pages, Page{})
			continue
		}
		content, err := pageContent(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		doc.Pages = append(doc.Pages, Page{Texts: mergeGlyphs(content.Text)})
	}
	return doc, nil
}

// pageContent converts the panics ledongthuc/pdf raises on malformed content
// streams into errors.
func pageContent(p pdf.Page) (content pdf.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read content: %v", r)
		}
	}()
	return p.Content(), nil
}

func mergeGlyphs(glyphs []pdf.Text) []Text {
	var (
		out     []Text
		current []byte
		x, y    float64
		end     float64
		size    float64
		open    bool
	)
	flush := func() {
		if open && len(current) > 0 {
			out = append(out, Text{X: x, Y: y, R: []Run{{T: encode(string(current))}}})
		}
		current = current[:0]
		open = false
	}
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if open && sameLine(y, g.Y) && g.X-end <= gapFactor*math.Max(size, 1) && g.X >= x {
			current = append(current, g.S...)
			end = g.X + g.W
			continue
		}
		flush()
		open = true
		x, y = g.X, g.Y
		end = g.X + g.W
		size = g.FontSize
		current = append(current, g.S...)
	}
	flush()
	return out
}

func sameLine(a, b float64) bool {
	return math.Abs(a-b) <= baselineTolerance
}
