// Package parser reads note documents and inbox files: YAML front matter,
// body, wikilinks and tags.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// ErrNoFrontmatter is returned by Decode when the input has no front matter.
var ErrNoFrontmatter = errors.New("parser: no front matter")

// Result holds the output of parsing a note document.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Links       []string
	Tags        []string
	Title       string
}

// Parse extracts front matter, body, wikilinks and tags from a document.
// Links are collected from the header as well as the body, since notes keep
// their back-references there.
func Parse(data []byte) (*Result, error) {
	block, body, ok := split(data)
	var fm map[string]interface{}
	if ok {
		if err := yaml.Unmarshal(block, &fm); err != nil {
			// Invalid YAML: the whole input is body.
			fm, body = nil, string(data)
			block = nil
		}
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(string(block) + "\n" + body),
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
	}, nil
}

// Decode unmarshals the front matter of data into v and returns the body.
// Unlike Parse it reports malformed YAML.
func Decode(data []byte, v any) (string, error) {
	block, body, ok := split(data)
	if !ok {
		return "", ErrNoFrontmatter
	}
	if err := yaml.Unmarshal(block, v); err != nil {
		return "", fmt.Errorf("parser: front matter: %w", err)
	}
	return body, nil
}

// split separates the YAML block between leading --- delimiters from the
// body. ok is false when there is no complete block.
func split(data []byte) (block []byte, body string, ok bool) {
	const delim = "---"
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	trimmed := bytes.TrimLeft(data, "\n")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), false
	}

	block = rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	return block, strings.TrimLeft(string(afterDelim), "\n"), true
}

// extractLinks returns deduplicated wikilink targets, normalising aliases.
func extractLinks(text string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		raw := m[1]
		// [[Target|Alias]] → Target.
		target := raw
		if i := strings.Index(raw, "|"); i >= 0 {
			target = raw[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects the front matter "tags" list, then inline #tags from
// the body. Blank list entries (the "  -" placeholder) are skipped.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	if list, ok := fm["tags"].([]interface{}); ok {
		for _, item := range list {
			add(scalarString(item))
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// scalarString renders a decoded YAML scalar as text. Bare numbers such as a
// "1984" tag decode as ints and are kept as tags.
func scalarString(v any) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case int:
		return strconv.Itoa(v)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// deriveTitle returns the front matter "title" if present, otherwise the
// first H1 heading, otherwise an empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
