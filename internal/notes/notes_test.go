package notes

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/parser"
	"github.com/starford/marginalia/internal/slug"
)

func testSource() models.SourceMetadata {
	return models.SourceMetadata{
		Title:     "Stand Out of Our Light: Freedom and Resistance in the Attention Economy",
		Authors:   []string{"James Williams"},
		AuthorBio: "Former Google strategist.",
		Year:      "2018",
		Publisher: "Cambridge University Press",
		Link:      "https://doi.org/10.1017/9781108453004",
		Tags:      []string{"Attention", "#ethics"},
	}
}

func TestScalar(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", `""`},
		{"2018", "2018"},
		{"0", "0"},
		{"-12", "-12"},
		{"007", `"007"`},
		{"1.5", `"1.5"`},
		{"book", "book"},
		{"Cambridge University Press", "Cambridge University Press"},
		{"Williams, J.", `"Williams, J."`},
		{"yes", `"yes"`},
		{"Null", `"Null"`},
		{"xii", "xii"},
		{"trailing ", `"trailing "`},
		{"a: b", `"a: b"`},
		{`say "hi"`, `"say \"hi\""`},
		{"line\nbreak\ttab\r", `"line\nbreak\ttab\r"`},
		{`back\slash`, `"back\\slash"`},
		{"[[note]]", `"[[note]]"`},
		{"#tag", `"#tag"`},
		{"https://example.com", `"https://example.com"`},
	}
	for _, c := range cases {
		if got := Scalar(c.in); got != c.want {
			t.Errorf("Scalar(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestSynthesize_Documents(t *testing.T) {
	quotes := []models.Quote{
		{Page: "88", Text: "What do you pay when you pay attention?", Filename: "attention-is-paid-with-forgone-futures", Tags: []string{"attention", "Economics"}},
		{Page: "xii", Text: "Untagged quote."},
	}
	notes, err := Synthesize(testSource(), quotes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 4 {
		t.Fatalf("len(notes) = %d, want 4", len(notes))
	}

	wantSource := "---\n" +
		"note-type: source\n" +
		"tags:\n  - attention\n  - ethics\n" +
		"author: [\"[[james-williams]]\"]\n" +
		"year: 2018\n" +
		"publisher: Cambridge University Press\n" +
		"format: book\n" +
		"link: \"https://doi.org/10.1017/9781108453004\"\n" +
		"citation: \"James Williams (2018). Stand Out of Our Light: Freedom and Resistance in the Attention Economy. Cambridge University Press.\"\n" +
		"---\n\n" +
		"# Stand Out of Our Light: Freedom and Resistance in the Attention Economy\n\n" + SummaryPlaceholder + "\n"
	if got := Render(notes[0]); got != wantSource {
		t.Errorf("source document =\n%s\nwant\n%s", got, wantSource)
	}
	if notes[0].Filename != "stand-out-of-our-light.md" {
		t.Errorf("source filename = %q", notes[0].Filename)
	}

	wantAuthor := "---\nnote-type: author\n---\n\nFormer Google strategist.\n"
	if got := Render(notes[1]); got != wantAuthor {
		t.Errorf("author document = %q, want %q", got, wantAuthor)
	}

	wantQuote := "---\n" +
		"note-type: quote\n" +
		"source: \"[[stand-out-of-our-light]]\"\n" +
		"author: [\"[[james-williams]]\"]\n" +
		"tags:\n  - attention\n  - economics\n" +
		"page: 88\n" +
		"link: \"https://doi.org/10.1017/9781108453004\"\n" +
		"---\n\n" +
		"> What do you pay when you pay attention?\n"
	if got := Render(notes[2]); got != wantQuote {
		t.Errorf("quote document =\n%s\nwant\n%s", got, wantQuote)
	}
	if notes[2].Filename != "attention-is-paid-with-forgone-futures.md" {
		t.Errorf("quote filename = %q", notes[2].Filename)
	}

	if got := Render(notes[3]); !strings.Contains(got, "tags:\n  -\npage: xii\n") {
		t.Errorf("empty tag placeholder missing:\n%s", got)
	}
	if notes[3].Filename != "untagged-quote.md" {
		t.Errorf("fallback filename = %q", notes[3].Filename)
	}
}

func TestSynthesize_SubtitleDropped(t *testing.T) {
	notes, err := Synthesize(models.SourceMetadata{
		Title:   "Stand Out of Our Light: Freedom",
		Authors: []string{"Williams, J."},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := notes[0].Stem(); got != "stand-out-of-our-light" {
		t.Errorf("source stem = %q, want %q", got, "stand-out-of-our-light")
	}
	if got := notes[1].Stem(); got != "williams-j" {
		t.Errorf("author stem = %q, want %q", got, "williams-j")
	}
	if body := notes[1].Body; body != BioPlaceholder {
		t.Errorf("author body = %q", body)
	}
	if v, _ := notes[0].Get("link"); Scalar(v.Text) != `""` {
		t.Errorf("empty link should render as empty string, got %s", Scalar(v.Text))
	}
}

func TestSynthesize_Collisions(t *testing.T) {
	src := models.SourceMetadata{Title: "Focus", Authors: []string{"Focus", "???", "Ann Lee", "ann lee"}}
	quotes := []models.Quote{
		{Text: "Same phrase.", Filename: "same"},
		{Text: "Other text.", Filename: "same"},
		{Text: "!!!"},
		{Text: "Focus"},
	}
	notes, err := Synthesize(src, quotes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"focus", "focus-2", "author-2", "ann-lee", "ann-lee-2",
		"same", "same-2", "quote-3", "focus-3",
	}
	if len(notes) != len(want) {
		t.Fatalf("len(notes) = %d, want %d", len(notes), len(want))
	}
	seen := make(map[string]bool)
	for i, n := range notes {
		if n.Stem() != want[i] {
			t.Errorf("note %d stem = %q, want %q", i, n.Stem(), want[i])
		}
		if seen[n.Filename] {
			t.Errorf("duplicate filename %q", n.Filename)
		}
		seen[n.Filename] = true
	}

	authors, _ := notes[5].Get("author")
	wantLinks := []string{"[[focus-2]]", "[[author-2]]", "[[ann-lee]]", "[[ann-lee-2]]"}
	if strings.Join(authors.Items, ",") != strings.Join(wantLinks, ",") {
		t.Errorf("author links = %v, want %v", authors.Items, wantLinks)
	}
	if src, _ := notes[8].Get("source"); src.Text != "[[focus]]" {
		t.Errorf("source link = %q", src.Text)
	}
}

func TestSynthesize_FatalInput(t *testing.T) {
	cases := []struct {
		name string
		src  models.SourceMetadata
		want error
	}{
		{"no title", models.SourceMetadata{Title: "  ", Authors: []string{"A"}}, apperr.ErrMissingTitle},
		{"no authors", models.SourceMetadata{Title: "T"}, apperr.ErrMissingAuthor},
		{"blank authors", models.SourceMetadata{Title: "T", Authors: []string{" ", ""}}, apperr.ErrMissingAuthor},
		{"bad format", models.SourceMetadata{Title: "T", Authors: []string{"A"}, Format: "scroll"}, apperr.ErrInvalidSource},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			notes, err := Synthesize(c.src, []models.Quote{{Text: "q"}})
			if !errors.Is(err, c.want) {
				t.Errorf("err = %v, want %v", err, c.want)
			}
			if notes != nil {
				t.Errorf("notes should be nil on fatal input, got %d", len(notes))
			}
		})
	}
}

// Rendered headers read back through a YAML parser yield the original values.
func TestRender_RoundTrip(t *testing.T) {
	src := testSource()
	src.Publisher = `O'Reilly: "Media"`
	src.Citation = "Line one\nline two\twith tab \\ slash"
	src.Year = "007"
	quotes := []models.Quote{{Page: "true", Text: "x", Tags: []string{"no", "on-off"}}}

	notes, err := Synthesize(src, quotes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, n := range notes {
		r, err := parser.Parse([]byte(Render(n)))
		if err != nil {
			t.Fatalf("parse %s: %v", n.Filename, err)
		}
		if r.Body != n.Body+"\n" {
			t.Errorf("%s body = %q, want %q", n.Filename, r.Body, n.Body+"\n")
		}
		for _, f := range n.Header {
			got, ok := r.Frontmatter[f.Key]
			if !ok {
				t.Errorf("%s: key %q missing", n.Filename, f.Key)
				continue
			}
			if f.Value.Kind == models.ScalarValue {
				if want := f.Value.Text; toString(got) != want {
					t.Errorf("%s: %s = %#v, want %q", n.Filename, f.Key, got, want)
				}
				continue
			}
			list, _ := got.([]interface{})
			if len(f.Value.Items) == 0 {
				continue
			}
			if len(list) != len(f.Value.Items) {
				t.Errorf("%s: %s = %#v, want %v", n.Filename, f.Key, got, f.Value.Items)
				continue
			}
			for i, item := range f.Value.Items {
				if toString(list[i]) != item {
					t.Errorf("%s: %s[%d] = %#v, want %q", n.Filename, f.Key, i, list[i], item)
				}
			}
		}
	}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	default:
		return ""
	}
}

func TestRender_NumericTagReadBack(t *testing.T) {
	quotes := []models.Quote{{Page: "12", Text: "War is peace.", Tags: []string{"1984", "dystopia"}}}
	ns, err := Synthesize(testSource(), quotes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := Render(ns[len(ns)-1])
	if !strings.Contains(doc, "  - 1984\n") {
		t.Fatalf("document = %q, want bare 1984 tag", doc)
	}
	r, err := parser.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(r.Tags) != 2 || r.Tags[0] != "1984" || r.Tags[1] != "dystopia" {
		t.Errorf("tags = %v, want [1984 dystopia]", r.Tags)
	}
}

func TestContract_SlugLimits(t *testing.T) {
	for _, n := range []int{slug.MaxFilename, slug.MaxPhrase} {
		if !strings.Contains(Contract, strconv.Itoa(n)) {
			t.Errorf("contract does not mention the %d character limit", n)
		}
	}
	if !strings.Contains(Contract, "or 80 for a suggested quote phrase") {
		t.Error("contract names section disagrees with the quote filename rule")
	}
}
