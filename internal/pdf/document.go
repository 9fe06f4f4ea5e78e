// Package pdfutil turns soup calendar PDFs into ordered text tokens.
//
// A Document mirrors the shape the calendar parser works with: pages hold
// positioned text blocks and each block holds one or more runs. Run text is
// kept percent-encoded, the way PDF-to-JSON converters hand it over, and is
// decoded lazily when tokens are read.
package pdfutil

import (
	"iter"
	"net/url"
)

// Document is a parsed PDF.
type Document struct {
	Pages []Page `json:"Pages"`
}

// Page is one page of positioned text blocks in content-stream order.
type Page struct {
	Texts []Text `json:"Texts"`
}

// Text is a block of text drawn at one position.
type Text struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R []Run   `json:"R"`
}

// Run is a percent-encoded fragment of a text block.
type Run struct {
	T string `json:"T"`
}

// NumPages is nil safe.
func (d *Document) NumPages() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}

// Tokens yields the decoded text of every run on the given page in document
// order. Missing documents or pages yield nothing. The sequence can be ranged
// over any number of times.
func (d *Document) Tokens(page int) iter.Seq[string] {
	return func(yield func(string) bool) {
		if d == nil || page < 0 || page >= len(d.Pages) {
			return
		}
		for _, text := range d.Pages[page].Texts {
			for _, run := range text.R {
				if !yield(decode(run.T)) {
					return
				}
			}
		}
	}
}

// decode reverses percent-encoding; text that is not valid percent-encoding
// is returned untouched.
func decode(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}

func encode(s string) string {
	return url.PathEscape(s)
}
