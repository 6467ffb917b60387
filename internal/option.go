package internal

import (
	"io"
	"os"

	"github.com/starford/opdedupe/internal/reconcile"
	"github.com/starford/opdedupe/internal/store"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	provider  store.Provider
	confirmer reconcile.Confirmer
	stdin     *os.File
	stdout    io.Writer
	logOutput io.Writer
	version   string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithProvider replaces the op CLI client with another store.
func WithProvider(p store.Provider) Option {
	return func(a *application) {
		a.provider = p
	}
}

// WithConfirmer replaces the interactive dry-run prompt.
func WithConfirmer(c reconcile.Confirmer) Option {
	return func(a *application) {
		a.confirmer = c
	}
}

// WithStdin sets the terminal the dry-run prompt reads from.
func WithStdin(f *os.File) Option {
	return func(a *application) {
		a.stdin = f
	}
}

// WithStdout sets where command output is printed.
func WithStdout(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}

// WithLogOutput sets the log destination. Defaults to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
