package notes

import (
	"fmt"
	"strconv"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/slug"
	"github.com/starford/marginalia/internal/tags"
)

// Body placeholders used when no text was supplied.
const (
	SummaryPlaceholder = "Summary goes here."
	BioPlaceholder     = "A short bio can go here."
)

// quoteSlugRunes is how much of a quote's text seeds its fallback filename.
const quoteSlugRunes = 50

// Synthesize builds every note of a run: the source note, one note per
// author, then one note per quote in the given order. Filenames are unique
// across the whole set and every back-reference uses the final filename.
func Synthesize(src models.SourceMetadata, quotes []models.Quote) ([]models.Note, error) {
	src = src.Normalized()
	if err := Validate(src); err != nil {
		return nil, err
	}

	names := newNamer()
	sourceStem := names.claim(SourceStem(src.Title))
	authorStems := make([]string, len(src.Authors))
	authorLinks := make([]string, len(src.Authors))
	for i, name := range src.Authors {
		authorStems[i] = names.claim(fallback(slug.Slugify(name, slug.MaxFilename), "author-"+strconv.Itoa(i+1)))
		authorLinks[i] = models.Link(authorStems[i])
	}

	out := make([]models.Note, 0, 1+len(src.Authors)+len(quotes))
	out = append(out, sourceNote(src, sourceStem, authorLinks))
	for i, name := range src.Authors {
		out = append(out, authorNote(src, i, name, authorStems[i]))
	}
	for i, q := range quotes {
		stem := names.claim(QuoteStem(q, i))
		out = append(out, quoteNote(src, q, stem, sourceStem, authorLinks))
	}
	return out, nil
}

// Validate reports the first problem that keeps src from being synthesized.
// src is expected to be normalized.
func Validate(src models.SourceMetadata) error {
	if src.Title == "" {
		return apperr.ErrMissingTitle
	}
	if len(src.Authors) == 0 {
		return apperr.ErrMissingAuthor
	}
	if err := src.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidSource, err)
	}
	return nil
}

// SourceStem is the filename stem of a source note before collisions are
// resolved: the slug of the title without its subtitle.
func SourceStem(title string) string {
	return fallback(slug.Slugify(slug.SimplifyTitle(title), slug.MaxFilename), "source")
}

// QuoteStem is the filename stem of the i-th quote before collisions are
// resolved: the suggested phrase, else the start of the text, else a counter.
func QuoteStem(q models.Quote, i int) string {
	if s := slug.Slugify(q.Filename, slug.MaxPhrase); s != "" {
		return s
	}
	return fallback(slug.Slugify(firstRunes(q.Text, quoteSlugRunes), slug.MaxFilename), "quote-"+strconv.Itoa(i+1))
}

func sourceNote(src models.SourceMetadata, stem string, authorLinks []string) models.Note {
	header := []models.Field{{Key: "note-type", Value: models.Scalar(string(models.KindSource))}}
	if t := tags.Dedupe(src.Tags); len(t) > 0 {
		header = append(header, models.Field{Key: "tags", Value: models.BlockList(t...)})
	}
	header = append(header,
		models.Field{Key: "author", Value: models.InlineList(authorLinks...)},
		models.Field{Key: "year", Value: models.Scalar(src.Year)},
		models.Field{Key: "publisher", Value: models.Scalar(src.Publisher)},
		models.Field{Key: "format", Value: models.Scalar(string(src.Format))},
		models.Field{Key: "link", Value: models.Scalar(src.Link)},
		models.Field{Key: "citation", Value: models.Scalar(src.CitationText())},
	)
	summary := src.Summary
	if summary == "" {
		summary = SummaryPlaceholder
	}
	return models.Note{
		Filename: stem + ".md",
		Kind:     models.KindSource,
		Title:    src.Title,
		Header:   header,
		Body:     "# " + src.Title + "\n\n" + summary,
	}
}

func authorNote(src models.SourceMetadata, i int, name, stem string) models.Note {
	body := BioPlaceholder
	if i == 0 && src.AuthorBio != "" {
		body = src.AuthorBio
	}
	return models.Note{
		Filename: stem + ".md",
		Kind:     models.KindAuthor,
		Title:    name,
		Header:   []models.Field{{Key: "note-type", Value: models.Scalar(string(models.KindAuthor))}},
		Body:     body,
	}
}

func quoteNote(src models.SourceMetadata, q models.Quote, stem, sourceStem string, authorLinks []string) models.Note {
	header := []models.Field{
		{Key: "note-type", Value: models.Scalar(string(models.KindQuote))},
		{Key: "source", Value: models.Scalar(models.Link(sourceStem))},
		{Key: "author", Value: models.InlineList(authorLinks...)},
		{Key: "tags", Value: models.BlockList(tags.Dedupe(q.Tags)...)},
		{Key: "page", Value: models.Scalar(q.Page)},
	}
	if src.Link != "" {
		header = append(header, models.Field{Key: "link", Value: models.Scalar(src.Link)})
	}
	return models.Note{
		Filename: stem + ".md",
		Kind:     models.KindQuote,
		Title:    stem,
		Header:   header,
		Body:     "> " + models.NormalizeNewlines(q.Text),
	}
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// namer hands out unique stems, suffixing repeats with -2, -3 and so on.
type namer struct {
	used map[string]struct{}
}

func newNamer() *namer {
	return &namer{used: make(map[string]struct{})}
}

func (n *namer) claim(stem string) string {
	name := stem
	for i := 2; ; i++ {
		if _, taken := n.used[name]; !taken {
			break
		}
		name = stem + "-" + strconv.Itoa(i)
	}
	n.used[name] = struct{}{}
	return name
}
