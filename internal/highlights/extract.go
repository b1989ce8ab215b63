// Package highlights recovers individual quotes from an e-reader highlight export.
package highlights

import (
	"regexp"
	"strings"

	"github.com/starford/marginalia/internal/models"
)

var (
	lineEndings = regexp.MustCompile(`\r\n?`)

	// A continuation marker preceded by a page-footer number on its own line.
	continuedAfterFooter = regexp.MustCompile(`(?m)^[ \t]*\d+[ \t]*\n[ \t]*Page[ \t]+[^|\n]*\|[ \t]*Highlight[ \t]+Continued[ \t]*(?:\n|$)`)
	// A continuation marker on its own line or glued to footer digits.
	continued = regexp.MustCompile(`\d*[ \t]*Page[ \t]+[^|\n]*\|[ \t]*Highlight[ \t]+Continued[ \t]*(?:\n|$)`)

	marker       = regexp.MustCompile(`Page[ \t]+([^|\n]*?)[ \t]*\|[ \t]*Highlight[ \t]*(?:\n|$)`)
	digits       = regexp.MustCompile(`\d+`)
	trailingPage = regexp.MustCompile(`Page\s+\d+\s*$`)
	spaces       = regexp.MustCompile(`\s+`)
)

// block is one unparsed marker/body pair.
type block struct {
	pageMarker string
	body       string
}

// Extract parses raw export text into quotes in the order they appear.
// Text without any recognizable marker yields an empty, non-nil slice.
func Extract(raw string) []models.Quote {
	quotes := make([]models.Quote, 0)
	for _, b := range segment(mergeContinuations(raw)) {
		text := cleanBody(b.body)
		if text == "" {
			continue
		}
		quotes = append(quotes, models.Quote{
			Page: pageNumber(b.pageMarker),
			Text: text,
			Tags: []string{},
		})
	}
	return quotes
}

// Count returns the number of quotes Extract would produce.
func Count(raw string) int {
	return len(Extract(raw))
}

// mergeContinuations deletes "Highlight Continued" markers so the continued
// text runs on from the block it belongs to.
func mergeContinuations(raw string) string {
	s := lineEndings.ReplaceAllString(raw, "\n")
	s = continuedAfterFooter.ReplaceAllString(s, "")
	return continued.ReplaceAllString(s, "\n")
}

// segment splits text at every highlight marker. Footer digits glued to the
// front of a marker belong to the page footer, not to the previous body.
func segment(s string) []block {
	locs := marker.FindAllStringSubmatchIndex(s, -1)
	blocks := make([]block, 0, len(locs))
	for i, loc := range locs {
		end := len(s)
		if i+1 < len(locs) {
			end = gluedStart(s, locs[i+1][0])
		}
		start := loc[1]
		if start > end {
			start = end
		}
		blocks = append(blocks, block{
			pageMarker: strings.TrimSpace(s[loc[2]:loc[3]]),
			body:       s[start:end],
		})
	}
	return blocks
}

// gluedStart walks back over digits that touch the marker at pos.
func gluedStart(s string, pos int) int {
	i := pos
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return i
}

func cleanBody(body string) string {
	body = trailingPage.ReplaceAllString(strings.TrimSpace(body), "")
	return strings.TrimSpace(spaces.ReplaceAllString(body, " "))
}

// pageNumber returns the first run of digits in the marker, or the marker
// itself (e.g. roman numerals) when it has none.
func pageNumber(pageMarker string) string {
	if d := digits.FindString(pageMarker); d != "" {
		return d
	}
	return pageMarker
}
