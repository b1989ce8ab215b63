package internal

import (
	"io"

	"github.com/starford/marginalia/internal/suggest"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	completer suggest.Completer
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithCompleter replaces the Anthropic completer built from the config.
func WithCompleter(c suggest.Completer) Option {
	return func(a *application) {
		a.completer = c
	}
}

// WithLogOutput sets where the JSON logs go. Commands that write data to
// stdout log to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
