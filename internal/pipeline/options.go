package pipeline

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/marginalia/internal/apperr"
)

// Mode selects how quotes get their filenames and tags.
type Mode string

const (
	// ModeBatch sends one suggestion request per group of quotes.
	ModeBatch Mode = "batch"
	// ModeItem sends one suggestion request per quote.
	ModeItem Mode = "item"
	// ModeKeywords tags every quote locally from its own words.
	ModeKeywords Mode = "keywords"
	// ModeNone leaves quotes untagged.
	ModeNone Mode = "none"
)

// DefaultBatchSize is the number of quotes per batch request.
const DefaultBatchSize = 15

// ParseMode validates a mode name. An empty name yields "".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeBatch, ModeItem, ModeKeywords, ModeNone:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", apperr.ErrUnknownMode, s)
	}
}

// usesSuggester reports whether the mode talks to the suggestion service.
func (m Mode) usesSuggester() bool {
	return m == ModeBatch || m == ModeItem
}

// Settings are the per-run knobs. Zero fields take the converter defaults.
type Settings struct {
	Mode      Mode `json:"mode,omitempty"`
	BatchSize int  `json:"batch_size,omitempty"`
	// Taxonomy builds a shared tag vocabulary before tagging.
	Taxonomy *bool `json:"taxonomy,omitempty"`
	// Summarize asks for a source summary when none was given.
	Summarize *bool `json:"summarize,omitempty"`
}

func (s Settings) merge(def Settings) Settings {
	if s.Mode == "" {
		s.Mode = def.Mode
	}
	if s.BatchSize <= 0 {
		s.BatchSize = def.BatchSize
	}
	if s.Taxonomy == nil {
		s.Taxonomy = def.Taxonomy
	}
	if s.Summarize == nil {
		s.Summarize = def.Summarize
	}
	return s
}

func enabled(b *bool) bool {
	return b != nil && *b
}

// Bool returns a pointer to v, for Settings literals.
func Bool(v bool) *bool {
	return &v
}

// Option is a functional option for configuring a Converter.
type Option func(*Converter)

// WithSuggester enables the suggestion modes. model keys the suggestion cache.
func WithSuggester(s Suggester, model string) Option {
	return func(c *Converter) {
		c.suggester = s
		c.model = model
	}
}

// WithCache stores suggestions and run summaries in store.
func WithCache(store Cache) Option {
	return func(c *Converter) {
		c.cache = store
	}
}

// WithDefaults sets the settings used for fields a request leaves empty.
func WithDefaults(s Settings) Option {
	return func(c *Converter) {
		c.defaults = s.merge(c.defaults)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// WithProgress registers a callback for progress events.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Converter) {
		c.progress = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) {
		c.now = now
	}
}
