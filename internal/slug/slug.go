// Package slug turns free text into filesystem- and link-safe identifiers.
package slug

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Default lengths used across the pipeline.
const (
	MaxFilename = 60
	MaxPhrase   = 80
)

var (
	disallowed = regexp.MustCompile(`[^A-Za-z0-9_\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
	titleChars = strings.NewReplacer(":", "", "/", "", `\`, "")
)

// Slugify lowercases text, decomposes it (NFKD) so accented letters keep
// their base character, drops everything but word characters, whitespace and
// hyphens, turns whitespace runs into single hyphens, cuts the result to
// maxLength bytes (no limit when maxLength <= 0) and trims trailing hyphens.
//
// The result may be empty; callers pick their own fallback identifier.
func Slugify(text string, maxLength int) string {
	s := strings.ToLower(norm.NFKD.String(text))
	s = disallowed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	if maxLength > 0 && len(s) > maxLength {
		s = s[:maxLength]
	}
	return strings.TrimRight(s, "-")
}

// CleanTitle removes the characters that are not allowed in filenames on the
// target filesystem.
func CleanTitle(text string) string {
	return strings.TrimSpace(titleChars.Replace(text))
}

// SimplifyTitle drops a subtitle (everything from the first colon on).
func SimplifyTitle(text string) string {
	main, _, _ := strings.Cut(text, ":")
	return CleanTitle(main)
}
