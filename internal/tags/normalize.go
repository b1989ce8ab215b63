// Package tags canonicalizes tag strings and derives fallback tags from quote
// text without any external calls.
package tags

import (
	"regexp"
	"strings"
)

var (
	separators = regexp.MustCompile(`[\s\v\x{85}\pZ_,]+`)
	hyphens    = regexp.MustCompile(`-{2,}`)
)

// Normalize returns the canonical form of a tag: lowercase, no namespace
// path, no leading '#', separators folded into single hyphens.
//
//	"#Topics/Attention_Economy" -> "attention-economy"
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = separators.ReplaceAllString(s, "-")
	s = hyphens.ReplaceAllString(s, "-")
	return strings.TrimRight(strings.TrimLeft(s, "#-"), "-")
}

// Dedupe normalizes every tag and drops empties and repeats, keeping the
// first occurrence. The result is never nil.
func Dedupe(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
