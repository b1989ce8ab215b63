package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/cache"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/suggest"
)

var source = models.SourceMetadata{
	Title:   "Stand Out of Our Light: Freedom",
	Authors: []string{"James Williams"},
	Tags:    []string{"attention"},
}

func exportText(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "Page %d | Highlight\nHighlight number %d discusses distraction and persuasion.\n", i, i)
	}
	return b.String()
}

// batchCompleter answers batch prompts with one suggestion per quote and
// times out on the batches listed in fail.
type batchCompleter struct {
	mu    sync.Mutex
	calls int
	fail  map[int]bool
}

func (c *batchCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()

	if c.fail[call] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	n := strings.Count(prompt, "QUOTE ")
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"quote_number":%d,"filename":"claim-%d-%d","tags":["Persuasion","topics/attention"]}`, i+1, call, i+1)
	}
	return "```json\n[" + strings.Join(items, ",") + "]\n```", nil
}

func TestConvert_BatchTimeoutFallsBackForThatBatchOnly(t *testing.T) {
	completer := &batchCompleter{fail: map[int]bool{2: true}}
	conv := New(
		WithSuggester(suggest.NewClient(completer, 20*time.Millisecond), "test-model"),
		WithDefaults(Settings{Taxonomy: Bool(false)}),
	)

	res, err := conv.Convert(context.Background(), Request{Source: source, Text: exportText(45)})
	require.NoError(t, err)

	rep := res.Report
	assert.Equal(t, ModeBatch, rep.Mode)
	assert.Equal(t, TaggingPartial, rep.Tagging)
	assert.Equal(t, 45, rep.Quotes)
	assert.Equal(t, 30, rep.AI)
	assert.Equal(t, 15, rep.Fallback)
	assert.False(t, rep.Canceled)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "batch 2")
	assert.Equal(t, 3, completer.calls)

	for i, q := range res.Quotes {
		switch {
		case i >= 15 && i < 30:
			assert.Equal(t, models.TaggingFallback, q.Tagging, "quote %d", i)
			assert.Empty(t, q.Filename)
			assert.Contains(t, q.Tags, "distraction")
		default:
			assert.Equal(t, models.TaggingAI, q.Tagging, "quote %d", i)
			assert.Equal(t, []string{"persuasion", "attention"}, q.Tags)
			assert.True(t, strings.HasPrefix(q.Filename, "claim-"))
		}
	}

	require.Len(t, res.Notes, 2+45)
	assert.Equal(t, "claim-1-1.md", res.Notes[2].Filename)
	assert.Equal(t, "highlight-number-16-discusses-distraction-and-pers.md", res.Notes[17].Filename)
	assert.Equal(t, "claim-3-15.md", res.Notes[46].Filename)
}

type fakeSuggester struct {
	taxonomy  suggest.Parsed[models.Taxonomy]
	taxErr    error
	summary   string
	quoteErr  map[int]error
	batchMax  int
	calls     int
	vocab     [][]string
	onRequest func(n int)
}

func (f *fakeSuggester) Batch(_ context.Context, _ models.SourceMetadata, quotes []models.Quote, vocab []string) (suggest.Parsed[[]suggest.Suggestion], error) {
	f.calls++
	f.vocab = append(f.vocab, vocab)
	if f.onRequest != nil {
		f.onRequest(f.calls)
	}
	out := make([]suggest.Suggestion, len(quotes))
	for i := range out {
		out[i] = suggest.Suggestion{Filename: fmt.Sprintf("batch-%d-%d", f.calls, i), Tags: []string{"focus"}}
	}
	if f.batchMax > 0 && len(out) > f.batchMax {
		out = out[:f.batchMax]
	}
	return suggest.Parsed[[]suggest.Suggestion]{Outcome: suggest.OK, Value: out}, nil
}

func (f *fakeSuggester) Quote(_ context.Context, _ models.SourceMetadata, q models.Quote, vocab []string) (suggest.Parsed[suggest.Suggestion], error) {
	f.calls++
	f.vocab = append(f.vocab, vocab)
	if f.onRequest != nil {
		f.onRequest(f.calls)
	}
	if err := f.quoteErr[f.calls]; err != nil {
		return suggest.Parsed[suggest.Suggestion]{}, err
	}
	if f.calls == 2 {
		return suggest.Parsed[suggest.Suggestion]{Outcome: suggest.Malformed}, nil
	}
	return suggest.Parsed[suggest.Suggestion]{Outcome: suggest.OK, Value: suggest.Suggestion{Filename: "item " + q.Page, Tags: []string{"focus"}}}, nil
}

func (f *fakeSuggester) Taxonomy(context.Context, models.SourceMetadata, []models.Quote) (suggest.Parsed[models.Taxonomy], error) {
	return f.taxonomy, f.taxErr
}

func (f *fakeSuggester) Summary(context.Context, models.SourceMetadata, []models.Quote) (suggest.Parsed[string], error) {
	if f.summary == "" {
		return suggest.Parsed[string]{Outcome: suggest.Empty}, nil
	}
	return suggest.Parsed[string]{Outcome: suggest.OK, Value: f.summary}, nil
}

func TestConvert_ItemModeWithTaxonomyAndSummary(t *testing.T) {
	fake := &fakeSuggester{
		taxonomy: suggest.Parsed[models.Taxonomy]{Outcome: suggest.OK, Value: models.Taxonomy{
			CoreConcepts: []string{"Focus"},
			Hierarchy:    []models.Relation{{Parent: "psychology", Children: []string{"focus"}}},
		}},
		summary:  "A book about attention.",
		quoteErr: map[int]error{3: errors.New("upstream 500")},
	}
	var events []Event
	conv := New(WithSuggester(fake, "m"), WithProgress(func(e Event) { events = append(events, e) }))

	res, err := conv.Convert(context.Background(), Request{
		Source:   source,
		Text:     exportText(4),
		Settings: Settings{Mode: ModeItem, Summarize: Bool(true)},
	})
	require.NoError(t, err)

	require.NotNil(t, res.Taxonomy)
	assert.Equal(t, []string{"focus", "psychology"}, res.Taxonomy.CoreConcepts)
	assert.Equal(t, []string{"attention"}, res.Taxonomy.SpecialTopics)
	assert.Equal(t, []string{"focus", "psychology", "attention"}, fake.vocab[0])
	assert.True(t, res.Report.Taxonomy)

	assert.Equal(t, TaggingPartial, res.Report.Tagging)
	assert.Equal(t, 2, res.Report.AI)
	assert.Equal(t, 2, res.Report.Fallback)
	assert.Len(t, res.Report.Warnings, 2)
	assert.Equal(t, "item-1.md", res.Notes[2].Filename)
	assert.Equal(t, "item-4.md", res.Notes[5].Filename)

	assert.Equal(t, "A book about attention.", res.Source.Summary)
	assert.True(t, strings.HasSuffix(res.Notes[0].Body, "A book about attention."))

	require.NotEmpty(t, events)
	assert.Equal(t, StageExtract, events[0].Stage)
	assert.Equal(t, StageDone, events[len(events)-1].Stage)
	assert.Equal(t, "partial", events[len(events)-1].Message)
}

func TestConvert_MalformedTaxonomyIsSkipped(t *testing.T) {
	fake := &fakeSuggester{taxonomy: suggest.Parsed[models.Taxonomy]{Outcome: suggest.Malformed}}
	conv := New(WithSuggester(fake, "m"))

	res, err := conv.Convert(context.Background(), Request{Source: source, Text: exportText(3)})
	require.NoError(t, err)

	assert.Nil(t, res.Taxonomy)
	assert.False(t, res.Report.Taxonomy)
	assert.Nil(t, fake.vocab[0])
	assert.Equal(t, TaggingFull, res.Report.Tagging)
	assert.Contains(t, res.Report.Warnings[0], "taxonomy skipped")
}

func TestConvert_ShortBatchFallsBackForMissingQuotes(t *testing.T) {
	fake := &fakeSuggester{batchMax: 1}
	conv := New(WithSuggester(fake, "m"), WithDefaults(Settings{Taxonomy: Bool(false)}))

	res, err := conv.Convert(context.Background(), Request{Source: source, Text: exportText(3)})
	require.NoError(t, err)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, TaggingPartial, res.Report.Tagging)
	assert.Equal(t, 1, res.Report.AI)
	assert.Equal(t, 2, res.Report.Fallback)
	require.Len(t, res.Report.Warnings, 1)
	assert.Contains(t, res.Report.Warnings[0], "2 of 3 suggestions missing")
	assert.Equal(t, models.TaggingAI, res.Quotes[0].Tagging)
	assert.Equal(t, models.TaggingFallback, res.Quotes[2].Tagging)
	assert.Equal(t, "batch-1-0.md", res.Notes[2].Filename)
}

func TestConvert_CancelLeavesRemainingQuotesUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := &fakeSuggester{onRequest: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	conv := New(WithSuggester(fake, "m"), WithDefaults(Settings{Taxonomy: Bool(false), BatchSize: 2}))

	res, err := conv.Convert(ctx, Request{Source: source, Text: exportText(6)})
	require.NoError(t, err)

	assert.True(t, res.Report.Canceled)
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, 4, res.Report.AI, "the in-flight batch still completed")
	assert.Equal(t, 2, res.Report.Untouched)
	assert.Equal(t, TaggingPartial, res.Report.Tagging)
	assert.Equal(t, models.TaggingUntouched, res.Quotes[5].Tagging)
	assert.Empty(t, res.Quotes[5].Tags)
	assert.Len(t, res.Notes, 2+6)
}

func TestConvert_KeywordsAndNoneModes(t *testing.T) {
	conv := New()
	assert.Equal(t, ModeKeywords, conv.Defaults().Mode)

	res, err := conv.Convert(context.Background(), Request{Source: source, Text: exportText(2)})
	require.NoError(t, err)
	assert.Equal(t, TaggingFallback, res.Report.Tagging)
	assert.Contains(t, res.Quotes[0].Tags, "persuasion")

	res, err = conv.Convert(context.Background(), Request{Source: source, Text: exportText(2), Settings: Settings{Mode: ModeNone}})
	require.NoError(t, err)
	assert.Equal(t, TaggingNone, res.Report.Tagging)
	assert.Empty(t, res.Quotes[0].Tags)
	v, _ := res.Notes[2].Get("tags")
	assert.Empty(t, v.Items)
}

func TestConvert_Errors(t *testing.T) {
	conv := New()

	_, err := conv.Convert(context.Background(), Request{Source: models.SourceMetadata{Authors: []string{"A"}}, Text: exportText(1)})
	assert.True(t, errors.Is(err, apperr.ErrMissingTitle))

	_, err = conv.Convert(context.Background(), Request{Source: models.SourceMetadata{Title: "T"}, Text: exportText(1)})
	assert.True(t, errors.Is(err, apperr.ErrMissingAuthor))

	_, err = conv.Convert(context.Background(), Request{Source: source, Settings: Settings{Mode: ModeBatch}})
	assert.True(t, errors.Is(err, apperr.ErrNoSuggester))

	_, err = conv.Convert(context.Background(), Request{Source: source, Settings: Settings{Mode: "premium"}})
	assert.True(t, errors.Is(err, apperr.ErrUnknownMode))
}

func TestConvert_EmptyTextIsNotAnError(t *testing.T) {
	res, err := New().Convert(context.Background(), Request{Source: source, Text: "nothing to see"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Report.Quotes)
	assert.Equal(t, TaggingNone, res.Report.Tagging)
	assert.Len(t, res.Notes, 2)
	assert.Contains(t, res.Report.Warnings[0], "no highlights")
}

func TestConvert_CacheReusesSuggestionsAndRecordsRuns(t *testing.T) {
	db, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer db.Close()

	fake := &fakeSuggester{}
	conv := New(WithSuggester(fake, "m"), WithCache(db), WithDefaults(Settings{Taxonomy: Bool(false)}))
	req := Request{Source: source, Text: exportText(3)}

	first, err := conv.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 0, first.Report.Cached)

	second, err := conv.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls, "second run served from cache")
	assert.Equal(t, 3, second.Report.Cached)
	assert.Equal(t, TaggingFull, second.Report.Tagging)
	assert.Equal(t, first.Quotes[0].Filename, second.Quotes[0].Filename)

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSession(t *testing.T) {
	s := NewSession()
	_, ok := s.Current()
	assert.False(t, ok)

	s.Store(&Result{Report: Report{RunID: "r1"}})
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "r1", cur.Report.RunID)
	assert.False(t, s.UpdatedAt().IsZero())

	s.Reset()
	_, ok = s.Current()
	assert.False(t, ok)
}

func TestSampleConverts(t *testing.T) {
	res, err := New().Convert(context.Background(), Request{Source: SampleSource, Text: SampleText})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Report.Quotes)
	assert.Equal(t, "stand-out-of-our-light.md", res.Notes[0].Filename)
	assert.NotContains(t, res.Quotes[2].Text, "Continued")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Batch ")
	require.NoError(t, err)
	assert.Equal(t, ModeBatch, m)
	_, err = ParseMode("premium")
	assert.True(t, errors.Is(err, apperr.ErrUnknownMode))
}
