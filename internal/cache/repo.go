package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/marginalia/internal/apperr"
)

// DefaultRunLimit bounds ListRuns when no limit is given.
const DefaultRunLimit = 50

// SuggestionRow is a cached filename/tags suggestion for one quote.
type SuggestionRow struct {
	Key       string
	Model     string
	Filename  string
	Tags      []string
	CreatedAt time.Time
}

// RunRow summarizes one finished conversion run.
type RunRow struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Mode       string    `json:"mode"`
	Tagging    string    `json:"tagging"`
	Quotes     int       `json:"quotes"`
	Notes      int       `json:"notes"`
	AI         int       `json:"ai"`
	Fallback   int       `json:"fallback"`
	Cached     int       `json:"cached"`
	Canceled   bool      `json:"canceled"`
	Warnings   []string  `json:"warnings"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// GetSuggestion returns the suggestion stored under key, or nil when there
// is none.
func (db *DB) GetSuggestion(key string) (*SuggestionRow, error) {
	var (
		r    SuggestionRow
		tags string
	)
	err := db.conn.QueryRow(`
		SELECT key, model, filename, tags, created_at
		FROM suggestions WHERE key = ?
	`, key).Scan(&r.Key, &r.Model, &r.Filename, &tags, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get suggestion: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		return nil, fmt.Errorf("cache: decode tags: %w", err)
	}
	return &r, nil
}

// PutSuggestion inserts or replaces a suggestion.
func (db *DB) PutSuggestion(r SuggestionRow) error {
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	tagsJSON, _ := json.Marshal(r.Tags)
	_, err := db.conn.Exec(`
		INSERT INTO suggestions (key, model, filename, tags, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			model      = excluded.model,
			filename   = excluded.filename,
			tags       = excluded.tags,
			created_at = excluded.created_at
	`, r.Key, r.Model, r.Filename, string(tagsJSON), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("cache: put suggestion: %w", err)
	}
	return nil
}

// RecordRun stores a run summary.
func (db *DB) RecordRun(r RunRow) error {
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	warnings, _ := json.Marshal(r.Warnings)
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, title, mode, tagging, quotes, notes, ai, fallback, cached, canceled, warnings, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Title, r.Mode, r.Tagging, r.Quotes, r.Notes, r.AI, r.Fallback, r.Cached, r.Canceled,
		string(warnings), r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("cache: record run: %w", err)
	}
	return nil
}

const runColumns = `id, title, mode, tagging, quotes, notes, ai, fallback, cached, canceled, warnings, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunRow, error) {
	var (
		r        RunRow
		warnings string
	)
	if err := s.Scan(&r.ID, &r.Title, &r.Mode, &r.Tagging, &r.Quotes, &r.Notes, &r.AI, &r.Fallback,
		&r.Cached, &r.Canceled, &warnings, &r.StartedAt, &r.FinishedAt); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(warnings), &r.Warnings); err != nil {
		return r, fmt.Errorf("cache: decode warnings: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	rows, err := db.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("cache: list runs: %w", err)
	}
	defer rows.Close()

	out := []RunRow{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run by id.
func (db *DB) GetRun(id string) (*RunRow, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cache: run %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: get run: %w", err)
	}
	return &r, nil
}
