// Package apperr holds the sentinel errors callers branch on with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Fatal input: synthesis cannot start.
	ErrInvalidSource = errors.New("invalid source metadata")
	ErrMissingTitle  = errors.New("source title is required")
	ErrMissingAuthor = errors.New("at least one author is required")
	ErrUnknownFormat = errors.New("unknown export format")
	ErrUnknownMode   = errors.New("unknown suggestion mode")
	ErrNoSuggester   = errors.New("suggestion mode requires a configured suggester")
)
