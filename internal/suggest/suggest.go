// Package suggest talks to the text-suggestion collaborator: it builds the
// prompts, sends them through a Completer and turns whatever comes back into
// a tagged parse result the pipeline can fall back on.
package suggest

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/marginalia/internal/models"
)

// Completer sends one prompt and returns the raw response text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Outcome tells how a response was understood.
type Outcome int

const (
	// OK means the payload was parsed and carries at least one suggestion.
	OK Outcome = iota
	// Malformed means no JSON payload could be recovered.
	Malformed
	// Empty means the response was blank or held no usable suggestion.
	Empty
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Malformed:
		return "malformed"
	case Empty:
		return "empty"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Parsed is the result of reading one response. Value is only meaningful
// when Outcome is OK.
type Parsed[T any] struct {
	Outcome Outcome
	Value   T
	Err     error
}

// Suggestion is the filename phrase and tags proposed for one quote.
type Suggestion struct {
	Filename string   `json:"filename"`
	Tags     []string `json:"tags"`
}

// Empty reports whether the suggestion carries nothing usable.
func (s Suggestion) Empty() bool {
	return s.Filename == "" && len(s.Tags) == 0
}

// Client issues suggestion requests, each bounded by its own timeout.
type Client struct {
	completer Completer
	timeout   time.Duration
}

// NewClient wraps c. A timeout <= 0 leaves requests bounded only by the
// caller's context.
func NewClient(c Completer, timeout time.Duration) *Client {
	return &Client{completer: c, timeout: timeout}
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.completer.Complete(ctx, prompt)
}

// Batch asks for suggestions for a group of quotes. The returned slice is
// aligned with quotes; entries the response did not cover are empty.
func (c *Client) Batch(ctx context.Context, src models.SourceMetadata, quotes []models.Quote, vocabulary []string) (Parsed[[]Suggestion], error) {
	prompt, err := BatchPrompt(src, quotes, vocabulary)
	if err != nil {
		return Parsed[[]Suggestion]{}, err
	}
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return Parsed[[]Suggestion]{}, fmt.Errorf("suggest: batch: %w", err)
	}
	return ParseBatch(raw, len(quotes)), nil
}

// Quote asks for a suggestion for a single quote.
func (c *Client) Quote(ctx context.Context, src models.SourceMetadata, quote models.Quote, vocabulary []string) (Parsed[Suggestion], error) {
	prompt, err := QuotePrompt(src, quote, vocabulary)
	if err != nil {
		return Parsed[Suggestion]{}, err
	}
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return Parsed[Suggestion]{}, fmt.Errorf("suggest: quote: %w", err)
	}
	return ParseQuote(raw), nil
}

// Taxonomy asks for a tiered tag proposal covering every quote.
func (c *Client) Taxonomy(ctx context.Context, src models.SourceMetadata, quotes []models.Quote) (Parsed[models.Taxonomy], error) {
	prompt, err := TaxonomyPrompt(src, quotes)
	if err != nil {
		return Parsed[models.Taxonomy]{}, err
	}
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return Parsed[models.Taxonomy]{}, fmt.Errorf("suggest: taxonomy: %w", err)
	}
	return ParseTaxonomy(raw), nil
}

// Summary asks for a short summary of the source.
func (c *Client) Summary(ctx context.Context, src models.SourceMetadata, quotes []models.Quote) (Parsed[string], error) {
	prompt, err := SummaryPrompt(src, quotes)
	if err != nil {
		return Parsed[string]{}, err
	}
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return Parsed[string]{}, fmt.Errorf("suggest: summary: %w", err)
	}
	return ParseSummary(raw), nil
}
