// Package notes turns a source, its authors and its quotes into note
// documents with a fixed header layout.
package notes

import (
	"regexp"
	"strings"

	"github.com/starford/marginalia/internal/models"
)

const delimiter = "---"

var (
	plainScalar  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 ._()-]*$`)
	integer      = regexp.MustCompile(`^(0|-?[1-9][0-9]*)$`)
	scalarEscape = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
)

// keywords would change type if written bare.
var keywords = map[string]struct{}{
	"true": {}, "false": {}, "yes": {}, "no": {}, "on": {}, "off": {}, "null": {}, "~": {},
}

// Scalar formats one header value. Integers and simple words are written
// bare, everything else is double-quoted.
func Scalar(s string) string {
	if integer.MatchString(s) {
		return s
	}
	if plainScalar.MatchString(s) && !strings.HasSuffix(s, " ") {
		if _, ok := keywords[strings.ToLower(s)]; !ok {
			return s
		}
	}
	return `"` + scalarEscape.Replace(s) + `"`
}

// Render writes the full document of n: the delimited header, a blank line,
// the body and a final newline.
func Render(n models.Note) string {
	var b strings.Builder
	b.WriteString(delimiter + "\n")
	for _, f := range n.Header {
		writeField(&b, f)
	}
	b.WriteString(delimiter + "\n\n")
	b.WriteString(n.Body)
	b.WriteString("\n")
	return b.String()
}

func writeField(b *strings.Builder, f models.Field) {
	b.WriteString(f.Key + ":")
	switch f.Value.Kind {
	case models.InlineListValue:
		items := make([]string, len(f.Value.Items))
		for i, item := range f.Value.Items {
			items[i] = Scalar(item)
		}
		b.WriteString(" [" + strings.Join(items, ", ") + "]\n")
	case models.BlockListValue:
		b.WriteString("\n")
		if len(f.Value.Items) == 0 {
			b.WriteString("  -\n")
		}
		for _, item := range f.Value.Items {
			b.WriteString("  - " + Scalar(item) + "\n")
		}
	default:
		b.WriteString(" " + Scalar(f.Value.Text) + "\n")
	}
}
