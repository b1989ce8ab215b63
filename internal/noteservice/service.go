// Package noteservice is the conversion service shared by the HTTP API and
// the MCP server: it runs conversions, keeps the latest one in a session and
// exports it.
package noteservice

import (
	"bytes"
	"context"
	"fmt"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/cache"
	"github.com/starford/marginalia/internal/checksum"
	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/highlights"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/notes"
	"github.com/starford/marginalia/internal/parser"
	"github.com/starford/marginalia/internal/pipeline"
	"github.com/starford/marginalia/internal/storage"
)

// Converter runs one conversion. *pipeline.Converter satisfies it.
type Converter interface {
	Convert(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// RunStore lists recorded runs. *cache.DB satisfies it.
type RunStore interface {
	ListRuns(limit int) ([]cache.RunRow, error)
	GetRun(id string) (*cache.RunRow, error)
}

// Extraction is the result of extracting quotes without converting them.
type Extraction struct {
	Count  int            `json:"count"`
	Quotes []models.Quote `json:"quotes"`
}

// NoteDetail is a parsed note document.
type NoteDetail struct {
	Title       string         `json:"title"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Links       []string       `json:"links"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Body        string         `json:"body"`
}

// Exported describes a session export. Stream formats carry their content;
// dir and zip exports are written to the output store and list the paths.
type Exported struct {
	Format  export.Format `json:"format"`
	Name    string        `json:"name"`
	Content string        `json:"content,omitempty"`
	Paths   []string      `json:"paths,omitempty"`
}

// Service coordinates conversions, the session and run history.
type Service struct {
	conv    Converter
	runs    RunStore
	session *pipeline.Session
	out     storage.Provider
}

// NewService creates a service. runs and out may be nil; run listing then
// returns nothing and file exports are refused.
func NewService(conv Converter, runs RunStore, session *pipeline.Session, out storage.Provider) *Service {
	if session == nil {
		session = pipeline.NewSession()
	}
	return &Service{conv: conv, runs: runs, session: session, out: out}
}

// Convert runs a conversion and makes it the current session.
func (s *Service) Convert(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	res, err := s.conv.Convert(ctx, req)
	if err != nil {
		return nil, err
	}
	s.session.Store(res)
	return res, nil
}

// Extract splits raw export text into quotes.
func (s *Service) Extract(_ context.Context, text string) *Extraction {
	quotes := highlights.Extract(text)
	return &Extraction{Count: len(quotes), Quotes: quotes}
}

// Inspect parses a note document.
func (s *Service) Inspect(_ context.Context, content []byte) (*NoteDetail, error) {
	res, err := parser.Parse(content)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Title:       res.Title,
		Checksum:    checksum.Sum(content),
		Tags:        nonNilSlice(res.Tags),
		Links:       nonNilSlice(res.Links),
		Frontmatter: res.Frontmatter,
		Body:        res.Body,
	}, nil
}

// ListRuns returns recorded runs, newest first.
func (s *Service) ListRuns(_ context.Context, limit int) ([]cache.RunRow, error) {
	if s.runs == nil {
		return []cache.RunRow{}, nil
	}
	rows, err := s.runs.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(rows), nil
}

// GetRun returns one recorded run.
func (s *Service) GetRun(_ context.Context, id string) (*cache.RunRow, error) {
	if s.runs == nil {
		return nil, apperr.ErrNotFound
	}
	return s.runs.GetRun(id)
}

// Session returns the current conversion.
func (s *Service) Session(_ context.Context) (*pipeline.Result, error) {
	res, ok := s.session.Current()
	if !ok {
		return nil, fmt.Errorf("session: %w", apperr.ErrNotFound)
	}
	return res, nil
}

// ResetSession discards the current conversion.
func (s *Service) ResetSession(_ context.Context) {
	s.session.Reset()
}

// ExportSession exports the current conversion in format f.
func (s *Service) ExportSession(ctx context.Context, f export.Format) (*Exported, error) {
	res, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}
	name := export.BundleName(res.Source.Title, f)
	out := &Exported{Format: f, Name: name}

	switch f {
	case export.FormatJSON, export.FormatCSV:
		var buf bytes.Buffer
		if err := export.Write(&buf, f, res.Notes); err != nil {
			return nil, err
		}
		out.Content = buf.String()
		return out, nil
	}

	if s.out == nil {
		return nil, fmt.Errorf("export %s: no output directory configured", f)
	}
	switch f {
	case export.FormatZip:
		var buf bytes.Buffer
		if err := export.Zip(&buf, res.Notes); err != nil {
			return nil, err
		}
		if err := s.out.Write(name, buf.Bytes()); err != nil {
			return nil, fmt.Errorf("export: write %s: %w", name, err)
		}
		out.Paths = []string{name}
	case export.FormatDir:
		dir := notes.SourceStem(res.Source.Title)
		paths, err := export.Dir(s.out, dir, res.Notes)
		if err != nil {
			return nil, err
		}
		out.Name = dir
		out.Paths = paths
	}
	return out, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
