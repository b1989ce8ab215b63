package suggest

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/starford/marginalia/internal/models"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// summaryQuotes caps how many highlights are quoted in a summary request.
const summaryQuotes = 20

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}).ParseFS(promptFS, "prompts/*.tmpl"))

type promptData struct {
	Source     models.SourceMetadata
	Quotes     []models.Quote
	Vocabulary []string
	// Lead is the name used in "X argues that ..." examples.
	Lead string
}

func render(name string, data promptData) (string, error) {
	if len(data.Source.Authors) > 0 {
		data.Lead = data.Source.Authors[0]
	} else {
		data.Lead = "The author"
	}
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("suggest: render %s: %w", name, err)
	}
	return b.String(), nil
}

// BatchPrompt asks for one filename phrase and tag set per quote.
func BatchPrompt(src models.SourceMetadata, quotes []models.Quote, vocabulary []string) (string, error) {
	return render("batch.tmpl", promptData{Source: src, Quotes: quotes, Vocabulary: vocabulary})
}

// QuotePrompt asks for the filename phrase and tags of a single quote.
func QuotePrompt(src models.SourceMetadata, quote models.Quote, vocabulary []string) (string, error) {
	return render("quote.tmpl", promptData{Source: src, Quotes: []models.Quote{quote}, Vocabulary: vocabulary})
}

// TaxonomyPrompt asks for a tiered tag inventory of the whole quote set.
func TaxonomyPrompt(src models.SourceMetadata, quotes []models.Quote) (string, error) {
	return render("taxonomy.tmpl", promptData{Source: src, Quotes: quotes})
}

// SummaryPrompt asks for a short summary of the source.
func SummaryPrompt(src models.SourceMetadata, quotes []models.Quote) (string, error) {
	if len(quotes) > summaryQuotes {
		quotes = quotes[:summaryQuotes]
	}
	return render("summary.tmpl", promptData{Source: src, Quotes: quotes})
}
