package reconcile

import (
	"context"
	"log/slog"

	"github.com/starford/opdedupe/internal/apperr"
	"github.com/starford/opdedupe/internal/journal"
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/retry"
	"github.com/starford/opdedupe/internal/store"
)

// Options controls how a plan is applied.
type Options struct {
	DryRun bool
	// AllowDestructive gates archive and delete independently of DryRun.
	AllowDestructive bool
	// SkipUnchanged reads each record before editing and drops fields that
	// already match.
	SkipUnchanged bool
	// SkipURL disables URL edits; set when the report has no url column.
	SkipURL bool
	// RunID tags journal entries. Empty disables journaling.
	RunID string
}

// Summary is the outcome of an apply.
type Summary struct {
	DryRun    bool               `json:"dry_run"`
	Planned   int                `json:"planned"`
	Updated   int                `json:"updated"`
	Unchanged int                `json:"unchanged"`
	Archived  int                `json:"archived"`
	Deleted   int                `json:"deleted"`
	Skipped   int                `json:"skipped"`
	Failures  []apperr.ItemError `json:"-"`
}

// Stats converts the summary to journal counters.
func (s Summary) Stats() journal.Stats {
	return journal.Stats{
		Updated:  s.Updated,
		Archived: s.Archived,
		Deleted:  s.Deleted,
		Skipped:  s.Skipped + s.Unchanged,
		Failed:   len(s.Failures),
	}
}

// Reconciler executes plans one item at a time.
type Reconciler struct {
	reader   store.Reader
	writer   store.Writer
	policy   *retry.Policy
	recorder journal.Recorder
	logger   *slog.Logger
}

// New creates a Reconciler. recorder may be nil.
func New(reader store.Reader, writer store.Writer, policy *retry.Policy, recorder journal.Recorder, logger *slog.Logger) *Reconciler {
	return &Reconciler{reader: reader, writer: writer, policy: policy, recorder: recorder, logger: logger}
}

// Apply runs the update, archive and delete phases in that order. Per-item
// failures are collected in the summary and never stop the batch. In dry-run
// mode the same intent is logged but EditItem and DeleteItem are never called.
func (r *Reconciler) Apply(ctx context.Context, p Plan, opts Options) Summary {
	sum := Summary{DryRun: opts.DryRun}
	r.logger.Info("reconcile: starting",
		slog.Bool("dry_run", opts.DryRun),
		slog.Int("updates", len(p.Updates)),
		slog.Int("archives", len(p.Archives)),
		slog.Int("deletes", len(p.Deletes)))

	for _, c := range p.Conflicts {
		r.logger.Warn("reconcile: item has conflicting rows; keeping the least destructive action",
			slog.String("item_id", c.ItemID),
			slog.Any("actions", c.Actions),
			slog.String("kept", string(c.Kept)))
	}

	for _, c := range p.Updates {
		r.update(ctx, c, opts, &sum)
	}
	for _, c := range p.Archives {
		r.remove(ctx, PhaseArchive, c, opts, &sum)
	}
	for _, c := range p.Deletes {
		r.remove(ctx, PhaseDelete, c, opts, &sum)
	}

	r.logger.Info("reconcile: done",
		slog.Bool("dry_run", opts.DryRun),
		slog.Int("planned", sum.Planned),
		slog.Int("updated", sum.Updated),
		slog.Int("unchanged", sum.Unchanged),
		slog.Int("archived", sum.Archived),
		slog.Int("deleted", sum.Deleted),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", len(sum.Failures)))
	return sum
}

func (r *Reconciler) update(ctx context.Context, c models.Change, opts Options, sum *Summary) {
	title, url := c.Title, c.URL
	if opts.SkipURL {
		url = ""
	}
	if title == "" && url == "" {
		r.record(opts, journal.Action{Phase: PhaseUpdate, ItemID: c.ItemID, Outcome: journal.OutcomeSkipped, Error: "nothing to set"})
		sum.Skipped++
		return
	}

	if opts.SkipUnchanged {
		cur, err := r.reader.GetItem(ctx, c.ItemID)
		if err != nil {
			r.logger.Warn("reconcile: could not read current item; sending edit as-is",
				slog.String("item_id", c.ItemID),
				slog.String("error", err.Error()))
		} else {
			if cur.Title == title {
				title = ""
			}
			if url != "" && cur.HasURL(url) {
				url = ""
			}
			if title == "" && url == "" {
				r.logger.Debug("reconcile: already up to date", slog.String("item_id", c.ItemID))
				r.record(opts, journal.Action{Phase: PhaseUpdate, ItemID: c.ItemID, Outcome: journal.OutcomeUnchanged})
				sum.Unchanged++
				return
			}
		}
	}

	r.logger.Info("reconcile: update",
		slog.String("phase", PhaseUpdate),
		slog.String("item_id", c.ItemID),
		slog.String("title", title),
		slog.String("url", url),
		slog.Bool("dry_run", opts.DryRun))

	act := journal.Action{Phase: PhaseUpdate, ItemID: c.ItemID, Title: title, URL: url}
	if opts.DryRun {
		act.Outcome = journal.OutcomePlanned
		r.record(opts, act)
		sum.Planned++
		return
	}

	attempts, err := r.policy.Do(ctx, PhaseUpdate, func() error {
		return r.writer.EditItem(ctx, c.ItemID, title, url)
	})
	act.Attempts = attempts
	if err != nil {
		r.fail(PhaseUpdate, c, err, act, opts, sum)
		return
	}
	act.Outcome = journal.OutcomeApplied
	r.record(opts, act)
	sum.Updated++
}

func (r *Reconciler) remove(ctx context.Context, phase string, c models.Change, opts Options, sum *Summary) {
	act := journal.Action{Phase: phase, ItemID: c.ItemID, Title: c.Title, URL: c.URL}
	if !opts.AllowDestructive {
		r.logger.Warn("reconcile: destructive actions disabled; skipping",
			slog.String("phase", phase),
			slog.String("item_id", c.ItemID),
			slog.Bool("dry_run", opts.DryRun))
		act.Outcome = journal.OutcomeSkipped
		act.Error = "destructive actions disabled"
		r.record(opts, act)
		sum.Skipped++
		return
	}

	r.logger.Info("reconcile: "+phase,
		slog.String("phase", phase),
		slog.String("item_id", c.ItemID),
		slog.String("title", c.Title),
		slog.String("url", c.URL),
		slog.Bool("dry_run", opts.DryRun))

	if opts.DryRun {
		act.Outcome = journal.OutcomePlanned
		r.record(opts, act)
		sum.Planned++
		return
	}

	archive := phase == PhaseArchive
	attempts, err := r.policy.Do(ctx, phase, func() error {
		return r.writer.DeleteItem(ctx, c.ItemID, archive)
	})
	act.Attempts = attempts
	if err != nil {
		r.fail(phase, c, err, act, opts, sum)
		return
	}
	act.Outcome = journal.OutcomeApplied
	r.record(opts, act)
	if archive {
		sum.Archived++
	} else {
		sum.Deleted++
	}
}

func (r *Reconciler) fail(phase string, c models.Change, err error, act journal.Action, opts Options, sum *Summary) {
	r.logger.Warn("reconcile: item failed",
		slog.String("phase", phase),
		slog.String("item_id", c.ItemID),
		slog.Int("attempts", act.Attempts),
		slog.String("error", err.Error()))
	act.Outcome = journal.OutcomeFailed
	act.Error = err.Error()
	r.record(opts, act)
	sum.Failures = append(sum.Failures, apperr.ItemError{ItemID: c.ItemID, Op: phase, Err: err})
}

func (r *Reconciler) record(opts Options, a journal.Action) {
	if r.recorder == nil || opts.RunID == "" {
		return
	}
	a.RunID = opts.RunID
	if err := r.recorder.RecordAction(a); err != nil {
		r.logger.Warn("reconcile: journal write failed",
			slog.String("item_id", a.ItemID),
			slog.String("error", err.Error()))
	}
}
