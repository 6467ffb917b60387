package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/opdedupe/internal/apperr"
	"github.com/starford/opdedupe/internal/fetch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	Fetch   FetchConfig       `yaml:"fetch"`
	Report  ReportConfig      `yaml:"report"`
	Apply   ApplyConfig       `yaml:"apply"`
	Journal JournalConfig     `yaml:"journal"`
	HTTP    HTTPConfig        `yaml:"http"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration. Failures are *apperr.ConfigError.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"app", &c.App},
		{"store", &c.Store},
		{"report", &c.Report},
		{"http", &c.HTTP},
		{"auth", &c.Auth},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return &apperr.ConfigError{Field: s.name, Message: err.Error(), Err: err}
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// StoreConfig selects the store CLI and the scan scope.
type StoreConfig struct {
	Binary  string `yaml:"binary"`
	Account string `yaml:"account"`
	// Vault limits listing to one vault; empty scans every vault.
	Vault string `yaml:"vault"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.Required),
	)
}

// FetchConfig controls the fetch worker pool. Workers below 1 are clamped
// to 1 by the fetcher rather than rejected.
type FetchConfig struct {
	Workers int `yaml:"workers"`
}

// ReportConfig locates the report and selects its layout.
type ReportConfig struct {
	Path     string `yaml:"path"`
	Schema   string `yaml:"schema"`
	StripWWW bool   `yaml:"strip_www"`
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Schema, validation.In("multi", "exact")),
	)
}

// ApplyConfig holds the apply safety switches.
type ApplyConfig struct {
	// AllowDestructive gates archive and delete, independently of dry-run.
	AllowDestructive bool `yaml:"allow_destructive"`
	SkipUnchanged    bool `yaml:"skip_unchanged"`
}

// JournalConfig holds the SQLite audit journal location. An empty path
// disables journaling.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether journaling is on.
func (c *JournalConfig) Enabled() bool { return c.Path != "" }

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

// AuthConfig holds authentication configuration for the review server.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
		},
		Store: StoreConfig{
			Binary: "op",
		},
		Fetch: FetchConfig{
			Workers: fetch.DefaultWorkers,
		},
		Report: ReportConfig{
			Path:     "duplicate_report.csv",
			Schema:   "multi",
			StripWWW: true,
		},
		Apply: ApplyConfig{
			SkipUnchanged: true,
		},
		Journal: JournalConfig{
			Path: "opdedupe.db",
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
