// Package export packages synthesized notes as a zip archive, a directory of
// files, a CSV table or JSON documents. Every format is derived from the same
// notes with no further computation.
package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/notes"
	"github.com/starford/marginalia/internal/slug"
	"github.com/starford/marginalia/internal/storage"
)

// Format names an export representation.
type Format string

const (
	FormatJSON Format = "json"
	FormatZip  Format = "zip"
	FormatCSV  Format = "csv"
	FormatDir  Format = "dir"
)

// ParseFormat validates a format name. An empty name means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatZip, FormatCSV, FormatDir:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", apperr.ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of a streamed export.
func (f Format) ContentType() string {
	switch f {
	case FormatZip:
		return "application/zip"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

// BundleName is the download name of an export for the given source title.
func BundleName(title string, f Format) string {
	base := slug.Slugify(slug.SimplifyTitle(title), slug.MaxFilename)
	if base == "" {
		base = "notes"
	}
	switch f {
	case FormatCSV:
		return base + "-highlights.csv"
	case FormatJSON:
		return base + "-highlights.json"
	default:
		return base + "-highlights.zip"
	}
}

// Zip writes one archive entry per note, named by its filename.
func Zip(w io.Writer, ns []models.Note) error {
	zw := zip.NewWriter(w)
	for _, n := range ns {
		fw, err := zw.Create(n.Filename)
		if err != nil {
			return fmt.Errorf("export: zip entry %s: %w", n.Filename, err)
		}
		if _, err := io.WriteString(fw, notes.Render(n)); err != nil {
			return fmt.Errorf("export: zip write %s: %w", n.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("export: zip close: %w", err)
	}
	return nil
}

// Dir writes every note under dir through p. Each file is written atomically.
func Dir(p storage.Provider, dir string, ns []models.Note) ([]string, error) {
	written := make([]string, 0, len(ns))
	for _, n := range ns {
		rel := path.Join(dir, n.Filename)
		if err := p.Write(rel, []byte(notes.Render(n))); err != nil {
			return written, fmt.Errorf("export: write %s: %w", rel, err)
		}
		written = append(written, rel)
	}
	return written, nil
}

// Document is the JSON form of a note.
type Document struct {
	Filename string          `json:"filename"`
	Kind     models.NoteKind `json:"kind"`
	Title    string          `json:"title,omitempty"`
	Header   []models.Field  `json:"header"`
	Body     string          `json:"body"`
	Content  string          `json:"content"`
}

// Documents returns the JSON form of every note.
func Documents(ns []models.Note) []Document {
	out := make([]Document, len(ns))
	for i, n := range ns {
		out[i] = Document{
			Filename: n.Filename,
			Kind:     n.Kind,
			Title:    n.Title,
			Header:   n.Header,
			Body:     n.Body,
			Content:  notes.Render(n),
		}
	}
	return out
}

// JSON writes the JSON form of every note as an array.
func JSON(w io.Writer, ns []models.Note) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Documents(ns)); err != nil {
		return fmt.Errorf("export: json: %w", err)
	}
	return nil
}

// Write streams notes in a single-stream format. FormatDir is not a stream
// and is rejected; use Dir.
func Write(w io.Writer, f Format, ns []models.Note) error {
	switch f {
	case FormatZip:
		return Zip(w, ns)
	case FormatCSV:
		return CSV(w, ns)
	case FormatJSON:
		return JSON(w, ns)
	default:
		return fmt.Errorf("%w: %q cannot be streamed", apperr.ErrUnknownFormat, f)
	}
}
