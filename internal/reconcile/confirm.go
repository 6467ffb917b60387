package reconcile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Confirmer decides whether an apply runs in dry-run mode.
type Confirmer interface {
	ConfirmDryRun(ctx context.Context, c Counts) (dryRun bool, err error)
}

// Fixed is a Confirmer that always returns the same answer.
type Fixed bool

// ConfirmDryRun returns bool(f).
func (f Fixed) ConfirmDryRun(context.Context, Counts) (bool, error) { return bool(f), nil }

// Prompt asks on a terminal. Anything other than an explicit "no" means
// dry-run, including EOF and a non-terminal input.
type Prompt struct {
	in       io.Reader
	out      io.Writer
	terminal bool
}

// NewPrompt creates a Prompt reading from in. When in is not a terminal the
// prompt is skipped and dry-run is chosen.
func NewPrompt(in *os.File, out io.Writer) *Prompt {
	return &Prompt{
		in:       in,
		out:      out,
		terminal: isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()),
	}
}

// ConfirmDryRun prints the counts and asks "[Y/n]" until the answer is valid.
func (p *Prompt) ConfirmDryRun(ctx context.Context, c Counts) (bool, error) {
	PrintCounts(p.out, c)
	if !p.terminal {
		fmt.Fprintln(p.out, "Input is not a terminal; running in dry-run mode.")
		return true, nil
	}

	sc := bufio.NewScanner(p.in)
	for {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		fmt.Fprint(p.out, "Run in dry-run mode (no changes)? [Y/n]: ")
		if !sc.Scan() {
			if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
				return true, fmt.Errorf("reconcile: read answer: %w", err)
			}
			return true, nil
		}
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "", "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer 'y' or 'n'.")
	}
}
