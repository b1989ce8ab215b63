// Package pipeline runs one conversion: highlight text and source metadata in,
// synthesized notes and a tagging report out.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/cache"
	"github.com/starford/marginalia/internal/checksum"
	"github.com/starford/marginalia/internal/highlights"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/notes"
	"github.com/starford/marginalia/internal/suggest"
	"github.com/starford/marginalia/internal/tags"
	"github.com/starford/marginalia/internal/taxonomy"
)

// Suggester is the suggestion service as the pipeline uses it.
// *suggest.Client satisfies it.
type Suggester interface {
	Batch(ctx context.Context, src models.SourceMetadata, quotes []models.Quote, vocabulary []string) (suggest.Parsed[[]suggest.Suggestion], error)
	Quote(ctx context.Context, src models.SourceMetadata, quote models.Quote, vocabulary []string) (suggest.Parsed[suggest.Suggestion], error)
	Taxonomy(ctx context.Context, src models.SourceMetadata, quotes []models.Quote) (suggest.Parsed[models.Taxonomy], error)
	Summary(ctx context.Context, src models.SourceMetadata, quotes []models.Quote) (suggest.Parsed[string], error)
}

// Cache is the part of the cache store the pipeline writes to.
type Cache interface {
	GetSuggestion(key string) (*cache.SuggestionRow, error)
	PutSuggestion(row cache.SuggestionRow) error
	RecordRun(row cache.RunRow) error
}

var _ Suggester = (*suggest.Client)(nil)

// Tagging summarizes how well a run's quotes were tagged.
type Tagging string

const (
	// TaggingFull means every quote carries a service suggestion.
	TaggingFull Tagging = "full"
	// TaggingPartial means some quotes carry service suggestions.
	TaggingPartial Tagging = "partial"
	// TaggingFallback means quotes were tagged only from their own words.
	TaggingFallback Tagging = "fallback"
	// TaggingNone means no quote was tagged.
	TaggingNone Tagging = "none"
)

// Request is the input of one run.
type Request struct {
	Source   models.SourceMetadata `json:"source"`
	Text     string                `json:"text"`
	Settings Settings              `json:"settings"`
}

// Report tells the caller what the run did, so fallback quality is never
// presented as complete.
type Report struct {
	RunID      string    `json:"run_id"`
	Mode       Mode      `json:"mode"`
	Tagging    Tagging   `json:"tagging"`
	Quotes     int       `json:"quotes"`
	Notes      int       `json:"notes"`
	AI         int       `json:"ai"`
	Fallback   int       `json:"fallback"`
	Untouched  int       `json:"untouched"`
	Cached     int       `json:"cached"`
	Taxonomy   bool      `json:"taxonomy"`
	Canceled   bool      `json:"canceled"`
	Warnings   []string  `json:"warnings"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Result is the output of one run.
type Result struct {
	Source   models.SourceMetadata `json:"source"`
	Quotes   []models.Quote        `json:"quotes"`
	Taxonomy *models.Taxonomy      `json:"taxonomy,omitempty"`
	Notes    []models.Note         `json:"notes"`
	Report   Report                `json:"report"`
}

// Event reports progress within a run.
type Event struct {
	RunID   string `json:"run_id"`
	Stage   string `json:"stage"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// Progress stages.
const (
	StageExtract    = "extract"
	StageTaxonomy   = "taxonomy"
	StageTagging    = "tagging"
	StageSummary    = "summary"
	StageSynthesize = "synthesize"
	StageDone       = "done"
)

// ProgressFunc receives progress events. It is called synchronously.
type ProgressFunc func(Event)

// Converter runs conversions. It holds no per-run state and may be shared.
type Converter struct {
	suggester Suggester
	model     string
	cache     Cache
	defaults  Settings
	logger    *slog.Logger
	progress  ProgressFunc
	now       func() time.Time
}

// New creates a Converter. Without a suggester the default mode is keywords.
func New(opts ...Option) *Converter {
	c := &Converter{
		defaults: Settings{
			BatchSize: DefaultBatchSize,
			Taxonomy:  Bool(true),
			Summarize: Bool(false),
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaults.Mode == "" {
		c.defaults.Mode = ModeKeywords
		if c.suggester != nil {
			c.defaults.Mode = ModeBatch
		}
	}
	return c
}

// Defaults returns the settings applied to empty request fields.
func (c *Converter) Defaults() Settings {
	return c.defaults
}

// run carries the state of one Convert call.
type run struct {
	*Converter
	id       string
	settings Settings
	src      models.SourceMetadata
	quotes   []models.Quote
	vocab    []string
	report   *Report
	onEvent  ProgressFunc
}

// Convert validates the source, extracts quotes from the text, tags them
// according to the mode and synthesizes the notes. Fatal input errors are
// returned before any suggestion request is made; suggestion failures only
// downgrade the report. A canceled ctx stops further requests and the notes
// are still built from what was done.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	return c.ConvertWithProgress(ctx, req, nil)
}

// ConvertWithProgress is Convert with an extra per-call progress callback,
// invoked after the converter-wide one.
func (c *Converter) ConvertWithProgress(ctx context.Context, req Request, fn ProgressFunc) (*Result, error) {
	settings := req.Settings.merge(c.defaults)
	if _, err := ParseMode(string(settings.Mode)); err != nil {
		return nil, err
	}
	if settings.Mode.usesSuggester() && c.suggester == nil {
		return nil, fmt.Errorf("%w: mode %q", apperr.ErrNoSuggester, settings.Mode)
	}

	src := req.Source.Normalized()
	if err := notes.Validate(src); err != nil {
		return nil, err
	}
	src.Tags = tags.Dedupe(src.Tags)

	r := &run{
		Converter: c,
		id:        uuid.NewString(),
		settings:  settings,
		src:       src,
		report: &Report{
			Mode:      settings.Mode,
			Warnings:  []string{},
			StartedAt: c.now(),
		},
		onEvent: fn,
	}
	r.report.RunID = r.id

	r.quotes = highlights.Extract(req.Text)
	r.report.Quotes = len(r.quotes)
	if len(r.quotes) == 0 {
		r.warn("no highlights found in the text")
	}
	r.emit(StageExtract, len(r.quotes), len(r.quotes), "")

	var tax *models.Taxonomy
	if settings.Mode.usesSuggester() && enabled(settings.Taxonomy) && len(r.quotes) > 0 {
		tax = r.buildTaxonomy(ctx)
	}

	switch settings.Mode {
	case ModeBatch:
		r.tagBatches(ctx)
	case ModeItem:
		r.tagItems(ctx)
	case ModeKeywords:
		for i := range r.quotes {
			r.applyFallback(i)
		}
		r.emit(StageTagging, len(r.quotes), len(r.quotes), "")
	}

	if settings.Mode.usesSuggester() && enabled(settings.Summarize) && r.src.Summary == "" && !r.report.Canceled {
		r.summarize(ctx)
	}

	ns, err := notes.Synthesize(r.src, r.quotes)
	if err != nil {
		return nil, fmt.Errorf("pipeline: synthesize: %w", err)
	}
	r.emit(StageSynthesize, len(ns), len(ns), "")

	r.finish(len(ns))
	res := &Result{
		Source:   r.src,
		Quotes:   r.quotes,
		Taxonomy: tax,
		Notes:    ns,
		Report:   *r.report,
	}
	r.record()
	r.emit(StageDone, len(r.quotes), len(r.quotes), string(r.report.Tagging))
	return res, nil
}

func (r *run) emit(stage string, done, total int, msg string) {
	ev := Event{RunID: r.id, Stage: stage, Done: done, Total: total, Message: msg}
	if r.progress != nil {
		r.progress(ev)
	}
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}

func (r *run) warn(msg string) {
	r.report.Warnings = append(r.report.Warnings, msg)
}

// interrupted reports whether ctx was canceled by the caller and marks the
// report if so.
func (r *run) interrupted(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	if !r.report.Canceled {
		r.report.Canceled = true
		r.warn("run canceled: remaining quotes left untagged")
		r.logger.Info("pipeline: run canceled", slog.String("run_id", r.id))
	}
	return true
}

func (r *run) buildTaxonomy(ctx context.Context) *models.Taxonomy {
	parsed, err := r.suggester.Taxonomy(ctx, r.src, r.quotes)
	if err == nil && parsed.Outcome != suggest.OK {
		err = fmt.Errorf("taxonomy response %s", parsed.Outcome)
	}
	if err != nil {
		if r.interrupted(ctx) {
			return nil
		}
		r.warn("taxonomy skipped: " + err.Error())
		r.logger.Warn("pipeline: taxonomy skipped",
			slog.String("run_id", r.id),
			slog.String("error", err.Error()))
		r.emit(StageTaxonomy, 0, 1, "skipped")
		return nil
	}
	tax := taxonomy.Build(r.src.Tags, parsed.Value)
	r.vocab = tax.Vocabulary()
	r.report.Taxonomy = true
	r.emit(StageTaxonomy, 1, 1, "")
	return &tax
}

func (r *run) tagBatches(ctx context.Context) {
	size := r.settings.BatchSize
	total := (len(r.quotes) + size - 1) / size
	for b := 0; b < total; b++ {
		if r.interrupted(ctx) {
			return
		}
		start := b * size
		end := min(start+size, len(r.quotes))

		pending := r.fromCache(start, end)
		if len(pending) > 0 {
			batch := make([]models.Quote, len(pending))
			for i, idx := range pending {
				batch[i] = r.quotes[idx]
			}
			parsed, err := r.suggester.Batch(ctx, r.src, batch, r.vocab)
			switch {
			case err != nil && r.interrupted(ctx):
				return
			case err != nil:
				r.batchFailed(b+1, pending, err)
			case parsed.Outcome != suggest.OK:
				r.batchFailed(b+1, pending, fmt.Errorf("response %s", parsed.Outcome))
			default:
				if missing := len(pending) - len(parsed.Value); missing > 0 {
					r.warn(fmt.Sprintf("batch %d: %d of %d suggestions missing; used keyword tags", b+1, missing, len(pending)))
				}
				for i, idx := range pending {
					if i >= len(parsed.Value) {
						r.applyFallback(idx)
						continue
					}
					r.applySuggestion(idx, parsed.Value[i])
				}
			}
		}
		r.emit(StageTagging, end, len(r.quotes), fmt.Sprintf("batch %d of %d", b+1, total))
	}
}

func (r *run) batchFailed(batch int, idxs []int, err error) {
	r.warn(fmt.Sprintf("batch %d: %v; used keyword tags", batch, err))
	r.logger.Warn("pipeline: batch fell back to keywords",
		slog.String("run_id", r.id),
		slog.Int("batch", batch),
		slog.String("error", err.Error()))
	for _, idx := range idxs {
		r.applyFallback(idx)
	}
}

func (r *run) tagItems(ctx context.Context) {
	for i := range r.quotes {
		if r.interrupted(ctx) {
			return
		}
		if pending := r.fromCache(i, i+1); len(pending) > 0 {
			parsed, err := r.suggester.Quote(ctx, r.src, r.quotes[i], r.vocab)
			if err != nil && r.interrupted(ctx) {
				return
			}
			if err == nil && parsed.Outcome != suggest.OK {
				err = fmt.Errorf("response %s", parsed.Outcome)
			}
			if err != nil {
				r.warn(fmt.Sprintf("quote %d: %v; used keyword tags", i+1, err))
				r.logger.Warn("pipeline: quote fell back to keywords",
					slog.String("run_id", r.id),
					slog.Int("quote", i+1),
					slog.String("error", err.Error()))
				r.applyFallback(i)
			} else {
				r.applySuggestion(i, parsed.Value)
			}
		}
		r.emit(StageTagging, i+1, len(r.quotes), "")
	}
}

func (r *run) summarize(ctx context.Context) {
	parsed, err := r.suggester.Summary(ctx, r.src, r.quotes)
	if err == nil && parsed.Outcome != suggest.OK {
		err = fmt.Errorf("response %s", parsed.Outcome)
	}
	if err != nil {
		if !r.interrupted(ctx) {
			r.warn("summary skipped: " + err.Error())
			r.logger.Warn("pipeline: summary skipped",
				slog.String("run_id", r.id),
				slog.String("error", err.Error()))
		}
		return
	}
	r.src.Summary = parsed.Value
	r.emit(StageSummary, 1, 1, "")
}

// cacheKey identifies a suggestion for quote text within this source.
func (r *run) cacheKey(text string) string {
	return checksum.Key(r.model, r.src.Title, text)
}

// fromCache applies cached suggestions to quotes[start:end] and returns the
// indexes still needing a request.
func (r *run) fromCache(start, end int) []int {
	pending := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		if r.cache == nil {
			pending = append(pending, i)
			continue
		}
		row, err := r.cache.GetSuggestion(r.cacheKey(r.quotes[i].Text))
		if err != nil {
			r.logger.Warn("pipeline: cache read failed", slog.String("error", err.Error()))
		}
		if row == nil {
			pending = append(pending, i)
			continue
		}
		r.setAI(i, suggest.Suggestion{Filename: row.Filename, Tags: row.Tags})
		r.report.Cached++
	}
	return pending
}

func (r *run) applySuggestion(i int, s suggest.Suggestion) {
	if s.Empty() {
		r.applyFallback(i)
		return
	}
	r.setAI(i, s)
	if r.cache == nil {
		return
	}
	err := r.cache.PutSuggestion(cache.SuggestionRow{
		Key:      r.cacheKey(r.quotes[i].Text),
		Model:    r.model,
		Filename: s.Filename,
		Tags:     s.Tags,
	})
	if err != nil {
		r.logger.Warn("pipeline: cache write failed", slog.String("error", err.Error()))
	}
}

func (r *run) setAI(i int, s suggest.Suggestion) {
	q := &r.quotes[i]
	q.Filename = s.Filename
	q.SuggestedTags = tags.Dedupe(s.Tags)
	q.Tags = q.SuggestedTags
	if len(q.Tags) == 0 {
		q.Tags = tags.Keywords(q.Text, tags.MaxKeywords)
	}
	q.Tagging = models.TaggingAI
}

func (r *run) applyFallback(i int) {
	q := &r.quotes[i]
	q.Filename = ""
	q.Tags = tags.Keywords(q.Text, tags.MaxKeywords)
	q.SuggestedTags = nil
	q.Tagging = models.TaggingFallback
}

func (r *run) finish(noteCount int) {
	rep := r.report
	rep.Notes = noteCount
	for _, q := range r.quotes {
		switch q.Tagging {
		case models.TaggingAI:
			rep.AI++
		case models.TaggingFallback:
			rep.Fallback++
		default:
			rep.Untouched++
		}
	}
	switch {
	case rep.Quotes > 0 && rep.AI == rep.Quotes:
		rep.Tagging = TaggingFull
	case rep.AI > 0:
		rep.Tagging = TaggingPartial
	case rep.Fallback > 0:
		rep.Tagging = TaggingFallback
	default:
		rep.Tagging = TaggingNone
	}
	rep.FinishedAt = r.now()
}

func (r *run) record() {
	if r.cache == nil {
		return
	}
	rep := r.report
	err := r.cache.RecordRun(cache.RunRow{
		ID:         rep.RunID,
		Title:      r.src.Title,
		Mode:       string(rep.Mode),
		Tagging:    string(rep.Tagging),
		Quotes:     rep.Quotes,
		Notes:      rep.Notes,
		AI:         rep.AI,
		Fallback:   rep.Fallback,
		Cached:     rep.Cached,
		Canceled:   rep.Canceled,
		Warnings:   rep.Warnings,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
	})
	if err != nil {
		r.logger.Warn("pipeline: record run failed",
			slog.String("run_id", r.id),
			slog.String("error", err.Error()))
	}
}
