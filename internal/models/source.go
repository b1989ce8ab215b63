package models

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Format is the kind of work the highlights came from.
type Format string

const (
	FormatBook    Format = "book"
	FormatArticle Format = "article"
	FormatEssay   Format = "essay"
	FormatReport  Format = "report"
	FormatPodcast Format = "podcast"
	FormatVideo   Format = "video"
	FormatOther   Format = "other"
)

// SourceMetadata describes the work every quote of a run belongs to.
type SourceMetadata struct {
	Title     string   `json:"title" yaml:"title"`
	Authors   []string `json:"authors" yaml:"authors"`
	AuthorBio string   `json:"author_bio,omitempty" yaml:"author_bio"`
	Year      string   `json:"year,omitempty" yaml:"year"`
	Publisher string   `json:"publisher,omitempty" yaml:"publisher"`
	Link      string   `json:"link,omitempty" yaml:"link"`
	Citation  string   `json:"citation,omitempty" yaml:"citation"`
	Summary   string   `json:"summary,omitempty" yaml:"summary"`
	Tags      []string `json:"tags,omitempty" yaml:"tags"`
	Format    Format   `json:"format,omitempty" yaml:"format"`
}

// Validate checks the fields the synthesizer cannot work without.
func (m *SourceMetadata) Validate() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.Title, validation.Required),
		validation.Field(&m.Authors, validation.Required, validation.Each(validation.Required)),
		validation.Field(&m.Format, validation.In(
			FormatBook, FormatArticle, FormatEssay, FormatReport,
			FormatPodcast, FormatVideo, FormatOther,
		)),
	)
}

// Normalized returns a copy with LF line endings, trimmed single-line fields,
// blank authors removed and the format defaulted to book.
func (m SourceMetadata) Normalized() SourceMetadata {
	out := m
	out.Title = strings.TrimSpace(NormalizeNewlines(m.Title))
	out.Authors = nil
	for _, a := range m.Authors {
		if a = strings.TrimSpace(NormalizeNewlines(a)); a != "" {
			out.Authors = append(out.Authors, a)
		}
	}
	out.Year = strings.TrimSpace(NormalizeNewlines(m.Year))
	out.Publisher = strings.TrimSpace(NormalizeNewlines(m.Publisher))
	out.Link = strings.TrimSpace(NormalizeNewlines(m.Link))
	out.Citation = strings.TrimSpace(NormalizeNewlines(m.Citation))
	out.Summary = NormalizeNewlines(m.Summary)
	out.AuthorBio = NormalizeNewlines(m.AuthorBio)
	out.Format = Format(strings.ToLower(strings.TrimSpace(string(m.Format))))
	if out.Format == "" {
		out.Format = FormatBook
	}
	return out
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines converts CRLF and lone CR line endings to LF.
func NormalizeNewlines(s string) string {
	return newlines.Replace(s)
}

// CitationText returns the supplied citation, or an APA-style one built from
// authors, year, title and publisher.
func (m SourceMetadata) CitationText() string {
	if m.Citation != "" {
		return m.Citation
	}
	var b strings.Builder
	b.WriteString(strings.Join(m.Authors, ", "))
	if m.Year != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("(" + m.Year + ")")
	}
	b.WriteByte('.')
	if m.Title != "" {
		b.WriteString(" " + m.Title + ".")
	}
	if m.Publisher != "" {
		b.WriteString(" " + m.Publisher + ".")
	}
	return strings.TrimSpace(b.String())
}
