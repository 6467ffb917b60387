// Package opcli implements store.Provider on top of the 1Password `op` CLI.
package opcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/starford/opdedupe/internal/apperr"
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/parser"
	"github.com/starford/opdedupe/internal/store"
)

// Runner executes one CLI invocation and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

// ExecRunner runs the CLI binary as a subprocess.
type ExecRunner struct {
	Binary  string
	Account string
}

// Run executes Binary with args. A non-zero exit is reported as an
// *apperr.ExternalError carrying the captured stderr.
func (r ExecRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	full := args
	if r.Account != "" {
		full = append(append([]string{}, args...), "--account", r.Account)
	}

	//nolint:gosec // binary and arguments come from configuration and item IDs, never a shell
	cmd := exec.CommandContext(ctx, r.Binary, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return nil, &apperr.ExternalError{
			Args:     args,
			Stderr:   stderr.String(),
			ExitCode: code,
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// Client talks to the store through a Runner.
type Client struct {
	runner Runner
}

// New creates a Client.
func New(runner Runner) *Client {
	return &Client{runner: runner}
}

// Verify *Client satisfies store.Provider at compile time.
var _ store.Provider = (*Client)(nil)

// ListItems runs `item list --format json [--vault V]`.
func (c *Client) ListItems(ctx context.Context, vault string) ([]string, error) {
	args := []string{"item", "list", "--format", "json"}
	if vault != "" {
		args = append(args, "--vault", vault)
	}
	out, err := c.runner.Run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("opcli: list items: %w", err)
	}
	return parser.ParseItemIDs(out)
}

// GetItem runs `item get ID --format json`.
func (c *Client) GetItem(ctx context.Context, id string) (*models.Record, error) {
	out, err := c.runner.Run(ctx, "item", "get", id, "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("opcli: get item %s: %w", id, err)
	}
	return parser.ParseItem(out)
}

// EditItem runs `item edit ID [--title T] [--url U]`. It is a no-op when
// both values are empty.
func (c *Client) EditItem(ctx context.Context, id, title, url string) error {
	args := []string{"item", "edit", id}
	if title != "" {
		args = append(args, "--title", title)
	}
	if url != "" {
		args = append(args, "--url", url)
	}
	if len(args) == 3 {
		return nil
	}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("opcli: edit item %s: %w", id, err)
	}
	return nil
}

// DeleteItem runs `item delete ID [--archive]`.
func (c *Client) DeleteItem(ctx context.Context, id string, archive bool) error {
	args := []string{"item", "delete", id}
	if archive {
		args = append(args, "--archive")
	}
	if _, err := c.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("opcli: delete item %s: %w", id, err)
	}
	return nil
}

// ListVaults runs `vault list --format json`.
func (c *Client) ListVaults(ctx context.Context) ([]models.Vault, error) {
	out, err := c.runner.Run(ctx, "vault", "list", "--format", "json")
	if err != nil {
		return nil, fmt.Errorf("opcli: list vaults: %w", err)
	}
	return parser.ParseVaults(out)
}
