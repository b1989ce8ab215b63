// Package inbox converts highlight files dropped into a directory. Each file
// carries its source metadata as YAML front matter followed by the raw
// export text.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/export"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/notes"
	"github.com/starford/marginalia/internal/parser"
	"github.com/starford/marginalia/internal/pipeline"
	"github.com/starford/marginalia/internal/storage"
)

// Extensions picked up from the inbox.
var Extensions = []string{".txt", ".md"}

// Suffixes appended to a file once it has been handled.
const (
	DoneSuffix   = ".done"
	FailedSuffix = ".failed"
)

// File is the front matter of an inbox file.
type File struct {
	models.SourceMetadata `yaml:",inline"`
	Mode                  string `yaml:"mode"`
}

// EventCallback is called after a file has been handled.
// kind is "converted" or "failed".
type EventCallback func(kind, path string, report *pipeline.Report)

// Converter is the pipeline as the inbox uses it.
type Converter interface {
	Convert(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Processor converts inbox files and writes their notes to the output store.
type Processor struct {
	conv   Converter
	in     storage.Provider
	out    storage.Provider
	logger *slog.Logger
	cb     EventCallback
}

// NewProcessor creates a Processor reading from in and writing to out.
func NewProcessor(conv Converter, in, out storage.Provider, logger *slog.Logger, cb EventCallback) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{conv: conv, in: in, out: out, logger: logger, cb: cb}
}

// Process converts the file at rel. The notes land in a directory named
// after the source; the file is then renamed with DoneSuffix. Files whose
// front matter or metadata is unusable are renamed with FailedSuffix so they
// are not retried.
func (p *Processor) Process(ctx context.Context, rel string) (*pipeline.Result, error) {
	res, err := p.convert(ctx, rel)
	if err != nil {
		if errors.Is(err, context.Canceled) || !permanent(err) {
			return nil, err
		}
		p.logger.Warn("inbox: conversion failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		if moveErr := p.in.Move(rel, rel+FailedSuffix); moveErr != nil {
			p.logger.Warn("inbox: mark failed", slog.String("path", rel), slog.String("error", moveErr.Error()))
		}
		if p.cb != nil {
			p.cb("failed", rel, nil)
		}
		return nil, err
	}

	if err := p.in.Move(rel, rel+DoneSuffix); err != nil {
		return res, fmt.Errorf("inbox: mark done: %w", err)
	}
	p.logger.Info("inbox: converted",
		slog.String("path", rel),
		slog.String("run_id", res.Report.RunID),
		slog.Int("quotes", res.Report.Quotes),
		slog.String("tagging", string(res.Report.Tagging)))
	if p.cb != nil {
		p.cb("converted", rel, &res.Report)
	}
	return res, nil
}

func (p *Processor) convert(ctx context.Context, rel string) (*pipeline.Result, error) {
	data, err := p.in.Read(rel)
	if err != nil {
		return nil, err
	}
	var f File
	body, err := parser.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidSource, err)
	}
	mode, err := pipeline.ParseMode(f.Mode)
	if err != nil {
		return nil, err
	}
	res, err := p.conv.Convert(ctx, pipeline.Request{
		Source:   f.SourceMetadata,
		Text:     body,
		Settings: pipeline.Settings{Mode: mode},
	})
	if err != nil {
		return nil, err
	}
	dir := notes.SourceStem(res.Source.Title)
	if _, err := export.Dir(p.out, dir, res.Notes); err != nil {
		return nil, err
	}
	return res, nil
}

// permanent reports whether retrying the same file cannot succeed.
func permanent(err error) bool {
	for _, target := range []error{
		apperr.ErrInvalidSource, apperr.ErrMissingTitle, apperr.ErrMissingAuthor,
		apperr.ErrUnknownMode, apperr.ErrNoSuggester,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Scan processes every file already waiting at the top level of the inbox.
// Subdirectories are skipped, as the watcher does not see them either.
func (p *Processor) Scan(ctx context.Context) error {
	entries, err := p.in.List("", Extensions...)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if filepath.Dir(e.Path) != "." {
			continue
		}
		if _, err := p.Process(ctx, e.Path); err != nil && !permanent(err) {
			p.logger.Warn("inbox: scan failed", slog.String("path", e.Path), slog.String("error", err.Error()))
		}
	}
	return nil
}
