package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/marginalia/internal/pipeline"
	"github.com/starford/marginalia/internal/suggest"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Suggest SuggestConfig     `yaml:"suggest"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Output  OutputConfig      `yaml:"output"`
	Inbox   InboxConfig       `yaml:"inbox"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Suggest.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if err := c.Inbox.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SuggestConfig configures the suggestion service and the default run
// settings. Without an API key only the keywords and none modes work.
type SuggestConfig struct {
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
	Mode      string        `yaml:"mode"`
	BatchSize int           `yaml:"batch_size"`
	Taxonomy  bool          `yaml:"taxonomy"`
	Summarize bool          `yaml:"summarize"`
}

// Validate validates the suggestion configuration.
func (c *SuggestConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.MaxTokens, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}
	mode, err := pipeline.ParseMode(c.Mode)
	if err != nil {
		return fmt.Errorf("suggest: %w", err)
	}
	if (mode == pipeline.ModeBatch || mode == pipeline.ModeItem) && !c.Enabled() {
		return fmt.Errorf("suggest: mode %q needs api_key", mode)
	}
	return nil
}

// Enabled returns true when an API key is configured.
func (c *SuggestConfig) Enabled() bool {
	return c.APIKey != ""
}

// Settings returns the default run settings.
func (c *SuggestConfig) Settings() pipeline.Settings {
	return pipeline.Settings{
		Mode:      pipeline.Mode(c.Mode),
		BatchSize: c.BatchSize,
		Taxonomy:  pipeline.Bool(c.Taxonomy),
		Summarize: pipeline.Bool(c.Summarize),
	}
}

// SQLiteConfig holds the suggestion cache and run history database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// OutputConfig holds the directory notes are written to.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// InboxConfig holds the watched directory for highlight files.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Suggest: SuggestConfig{
			Model:     suggest.DefaultModel,
			MaxTokens: suggest.DefaultMaxTokens,
			Timeout:   60 * time.Second,
			BatchSize: pipeline.DefaultBatchSize,
			Taxonomy:  true,
		},
		SQLite: SQLiteConfig{
			Path: "./marginalia.db",
		},
		Output: OutputConfig{
			Path: "./notes",
		},
		Inbox: InboxConfig{
			Path: "./inbox",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
