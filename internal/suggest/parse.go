package suggest

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/tags"
)

var errNoPayload = errors.New("suggest: no JSON payload in response")

// payload cuts the outermost open..close span out of raw, skipping any code
// fences or prose around it.
func payload(raw string, open, close byte) (string, bool) {
	start := strings.IndexByte(raw, open)
	end := strings.LastIndexByte(raw, close)
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

type batchItem struct {
	QuoteNumber json.Number `json:"quote_number"`
	Filename    string      `json:"filename"`
	Tags        []string    `json:"tags"`
}

func (b batchItem) suggestion() Suggestion {
	return Suggestion{
		Filename: strings.TrimSpace(b.Filename),
		Tags:     tags.Dedupe(b.Tags),
	}
}

// ParseBatch reads a batch response for n quotes. Items are matched by their
// 1-based quote_number when it is valid and unused, otherwise by position.
func ParseBatch(raw string, n int) Parsed[[]Suggestion] {
	if strings.TrimSpace(raw) == "" {
		return Parsed[[]Suggestion]{Outcome: Empty}
	}
	body, ok := payload(raw, '[', ']')
	if !ok {
		return Parsed[[]Suggestion]{Outcome: Malformed, Err: errNoPayload}
	}
	var items []batchItem
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return Parsed[[]Suggestion]{Outcome: Malformed, Err: err}
	}

	out := make([]Suggestion, n)
	used := make([]bool, n)
	found := false
	for i, item := range items {
		idx := i
		if num, err := item.QuoteNumber.Int64(); err == nil && num >= 1 && num <= int64(n) && !used[num-1] {
			idx = int(num - 1)
		}
		if idx >= n || used[idx] {
			continue
		}
		used[idx] = true
		out[idx] = item.suggestion()
		if !out[idx].Empty() {
			found = true
		}
	}
	if !found {
		return Parsed[[]Suggestion]{Outcome: Empty, Value: out}
	}
	return Parsed[[]Suggestion]{Outcome: OK, Value: out}
}

// ParseQuote reads a single-quote response.
func ParseQuote(raw string) Parsed[Suggestion] {
	if strings.TrimSpace(raw) == "" {
		return Parsed[Suggestion]{Outcome: Empty}
	}
	body, ok := payload(raw, '{', '}')
	if !ok {
		return Parsed[Suggestion]{Outcome: Malformed, Err: errNoPayload}
	}
	var item batchItem
	if err := json.Unmarshal([]byte(body), &item); err != nil {
		return Parsed[Suggestion]{Outcome: Malformed, Err: err}
	}
	s := item.suggestion()
	if s.Empty() {
		return Parsed[Suggestion]{Outcome: Empty}
	}
	return Parsed[Suggestion]{Outcome: OK, Value: s}
}

type taxonomyPayload struct {
	CoreConcepts  []string `json:"coreConcepts"`
	SpecialTopics []string `json:"specialTopics"`
	Outliers      []string `json:"outliers"`
	Hierarchy     []struct {
		Parent   string   `json:"parent"`
		Children []string `json:"children"`
	} `json:"hierarchicalRelationships"`
}

// ParseTaxonomy reads a taxonomy proposal. Tags are returned as sent; the
// taxonomy builder normalizes them.
func ParseTaxonomy(raw string) Parsed[models.Taxonomy] {
	if strings.TrimSpace(raw) == "" {
		return Parsed[models.Taxonomy]{Outcome: Empty}
	}
	body, ok := payload(raw, '{', '}')
	if !ok {
		return Parsed[models.Taxonomy]{Outcome: Malformed, Err: errNoPayload}
	}
	var p taxonomyPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Parsed[models.Taxonomy]{Outcome: Malformed, Err: err}
	}
	t := models.Taxonomy{
		CoreConcepts:  p.CoreConcepts,
		SpecialTopics: p.SpecialTopics,
		Outliers:      p.Outliers,
	}
	for _, rel := range p.Hierarchy {
		t.Hierarchy = append(t.Hierarchy, models.Relation{Parent: rel.Parent, Children: rel.Children})
	}
	if len(t.Vocabulary()) == 0 && len(t.Hierarchy) == 0 {
		return Parsed[models.Taxonomy]{Outcome: Empty}
	}
	return Parsed[models.Taxonomy]{Outcome: OK, Value: t}
}

// ParseSummary returns the response text without code fences.
func ParseSummary(raw string) Parsed[string] {
	s := strings.TrimSpace(models.NormalizeNewlines(raw))
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = ""
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	if s == "" {
		return Parsed[string]{Outcome: Empty}
	}
	return Parsed[string]{Outcome: OK, Value: s}
}
