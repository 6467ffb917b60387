// Package apperr defines the error taxonomy shared by the dedupe pipeline.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient external failure")
	ErrFatalExternal = errors.New("external failure")
	ErrReportSchema  = errors.New("report schema error")
	ErrConfiguration = errors.New("configuration error")
)

// TransientPatterns are lowercase substrings that mark a store CLI failure as retryable.
var TransientPatterns = []string{
	"connection reset by peer",
	"tls handshake timeout",
	"eof",
	"temporary failure",
	"timeout awaiting response",
	"i/o timeout",
}

// IsTransientMessage reports whether msg matches one of TransientPatterns.
func IsTransientMessage(msg string) bool {
	s := strings.ToLower(msg)
	for _, p := range TransientPatterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// ExternalError is a failed invocation of the store CLI.
type ExternalError struct {
	Args     []string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *ExternalError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("op %s failed (exit %d): %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// Transient reports whether the failure looks retryable.
func (e *ExternalError) Transient() bool {
	if IsTransientMessage(e.Stderr) {
		return true
	}
	return e.Err != nil && IsTransientMessage(e.Err.Error())
}

// Is maps the error onto ErrTransient or ErrFatalExternal.
func (e *ExternalError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Transient()
	case ErrFatalExternal:
		return !e.Transient()
	}
	return false
}

// ItemError records a failure scoped to one store item. Batches collect
// these instead of aborting.
type ItemError struct {
	ItemID string
	Op     string
	Err    error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ItemID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// SchemaError is returned when a report lacks required columns.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("report is missing required columns: %s", strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Is(target error) bool { return target == ErrReportSchema }

// ConfigError is an invalid configuration value that cannot be clamped.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }
