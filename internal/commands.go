package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/starford/opdedupe/internal/apperr"
	"github.com/starford/opdedupe/internal/checksum"
	"github.com/starford/opdedupe/internal/dedupe"
	"github.com/starford/opdedupe/internal/fetch"
	"github.com/starford/opdedupe/internal/journal"
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/normalize"
	"github.com/starford/opdedupe/internal/planservice"
	"github.com/starford/opdedupe/internal/reconcile"
	"github.com/starford/opdedupe/internal/report"
	"github.com/starford/opdedupe/internal/retry"
	"github.com/starford/opdedupe/internal/scan"
	"github.com/starford/opdedupe/internal/watch"
)

// Analyse scans the configured vault and writes the duplicate report.
func Analyse(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	schema, err := report.ParseSchema(cfg.Report.Schema)
	if err != nil {
		return &apperr.ConfigError{Field: "report.schema", Message: err.Error(), Err: err}
	}

	db, err := app.openJournal()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	norm := normalize.New(cfg.Report.StripWWW)
	svc := scan.NewService(
		fetch.New(app.provider, cfg.Fetch.Workers, logger),
		dedupe.NewIndexer(norm),
		report.NewWriter(schema, norm),
		recorder(db),
		logger,
	)

	res, err := svc.Run(ctx, cfg.Store.Vault, cfg.Report.Path)
	if err != nil {
		return err
	}

	out := app.stdout
	scope := cfg.Store.Vault
	if scope == "" {
		scope = "all vaults"
	}
	fmt.Fprintf(out, "Scanned %s: %d items fetched, %d failed\n", scope, res.Fetched, len(res.Failures))
	counts := res.GroupCounts()
	fmt.Fprintf(out, "Duplicate groups: %d exact, %d local, %d domain\n",
		counts[models.ReasonExact], counts[models.ReasonLocal], counts[models.ReasonDomain])
	fmt.Fprintf(out, "Report written to %s (%d rows, %s schema)\n", res.ReportPath, res.Rows, schema)
	printFailures(out, res.Failures)
	return nil
}

// Apply loads the report, asks for the mode and reconciles the store.
// A report schema error aborts before any store call.
func Apply(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts...)
	if err != nil {
		return err
	}
	cfg := app.config
	out := app.stdout

	data, err := os.ReadFile(cfg.Report.Path)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	rep, err := report.Parse(data, logger)
	if err != nil {
		return err
	}

	plan := reconcile.Partition(rep.Changes)
	if plan.Empty() {
		fmt.Fprintln(out, "Report has no rows; nothing to do.")
		return nil
	}

	dryRun, err := app.confirmer.ConfirmDryRun(ctx, plan.Counts())
	if err != nil {
		return err
	}

	db, err := app.openJournal()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	runID := uuid.NewString()
	if db != nil {
		err := db.BeginRun(journal.Run{
			ID:             runID,
			Kind:           journal.KindApply,
			Vault:          cfg.Store.Vault,
			ReportPath:     cfg.Report.Path,
			ReportChecksum: checksum.Sum(data),
			DryRun:         dryRun,
		})
		if err != nil {
			logger.Warn("journal begin failed", slog.String("error", err.Error()))
		}
	}

	rec := reconcile.New(app.provider, app.provider, retry.NewPolicy(logger), recorder(db), logger)
	sum := rec.Apply(ctx, plan, reconcile.Options{
		DryRun:           dryRun,
		AllowDestructive: cfg.Apply.AllowDestructive,
		SkipUnchanged:    cfg.Apply.SkipUnchanged,
		SkipURL:          !rep.HasURL,
		RunID:            runID,
	})

	if db != nil {
		stats := sum.Stats()
		stats.Rows = len(rep.Changes)
		if err := db.FinishRun(runID, stats, ""); err != nil {
			logger.Warn("journal finish failed", slog.String("run_id", runID), slog.String("error", err.Error()))
		}
	}

	printSummary(out, sum, cfg.Apply.AllowDestructive)
	printFailures(out, sum.Failures)
	return nil
}

// Plan prints the phase counts of the current report. With follow set it
// re-prints on every saved change until ctx is cancelled.
func Plan(ctx context.Context, follow bool, opts ...Option) error {
	app, logger, err := setup(opts...)
	if err != nil {
		return err
	}
	svc := planservice.NewService(app.config.Report.Path, nil, logger)
	out := app.stdout

	show := func() error {
		view, err := svc.Plan(ctx)
		if err != nil {
			return err
		}
		reconcile.PrintCounts(out, view.Counts)
		if view.Skipped > 0 {
			fmt.Fprintf(out, " (%d rows without item_id ignored)\n", view.Skipped)
		}
		if !view.HasURL {
			fmt.Fprintln(out, " (no url column; URL updates will be skipped)")
		}
		return nil
	}

	if !follow {
		return show()
	}

	if err := show(); err != nil {
		fmt.Fprintf(out, "cannot read report: %v\n", err)
	}
	return watch.Report(ctx, app.config.Report.Path, logger, func(string) {
		fmt.Fprintf(out, "\n[%s] report changed\n", time.Now().Format(time.TimeOnly))
		if err := show(); err != nil {
			fmt.Fprintf(out, "cannot read report: %v\n", err)
		}
	})
}

// History lists recent runs, or the actions of runID when it is set.
func History(ctx context.Context, runID string, limit int, opts ...Option) error {
	app, logger, err := setup(opts...)
	if err != nil {
		return err
	}
	db, err := app.openJournal()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	svc := planservice.NewService(app.config.Report.Path, db, logger)

	tw := tabwriter.NewWriter(app.stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if runID == "" {
		runs, err := svc.Runs(ctx, limit)
		if err != nil {
			return historyErr(err)
		}
		fmt.Fprintln(tw, "RUN\tKIND\tSTARTED\tDRY RUN\tROWS\tUPDATED\tARCHIVED\tDELETED\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				r.ID, r.Kind, r.StartedAt.Local().Format(time.DateTime), yesNo(r.DryRun),
				r.Stats.Rows, r.Stats.Updated, r.Stats.Archived, r.Stats.Deleted, r.Stats.Failed)
		}
		return nil
	}

	detail, err := svc.Run(ctx, runID)
	if err != nil {
		return historyErr(err)
	}
	fmt.Fprintf(tw, "Run %s (%s, dry run: %s)\n", detail.ID, detail.Kind, yesNo(detail.DryRun))
	if detail.Error != "" {
		fmt.Fprintf(tw, "Error: %s\n", detail.Error)
	}
	fmt.Fprintln(tw, "SEQ\tPHASE\tITEM\tOUTCOME\tATTEMPTS\tDETAIL")
	for _, a := range detail.Actions {
		detailText := a.Error
		if detailText == "" {
			detailText = strings.TrimSpace(a.Title + " " + a.URL)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", a.Seq, a.Phase, a.ItemID, a.Outcome, a.Attempts, detailText)
	}
	return nil
}

func historyErr(err error) error {
	if errors.Is(err, planservice.ErrJournalDisabled) {
		return &apperr.ConfigError{Field: "journal.path", Message: "journal is disabled", Err: err}
	}
	return err
}

// Vaults prints the vaults visible to the signed-in account.
func Vaults(ctx context.Context, opts ...Option) error {
	app, _, err := setup(opts...)
	if err != nil {
		return err
	}
	vaults, err := app.provider.ListVaults(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(app.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, v := range vaults {
		fmt.Fprintf(tw, "%s\t%s\n", v.ID, v.Name)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s reconcile.Summary, allowDestructive bool) {
	if s.DryRun {
		fmt.Fprintf(w, "Dry run: %d actions planned, no changes made.\n", s.Planned)
	} else {
		fmt.Fprintf(w, "Applied: %d updated, %d archived, %d deleted, %d unchanged.\n",
			s.Updated, s.Archived, s.Deleted, s.Unchanged)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d\n", s.Skipped)
	}
	if !allowDestructive {
		fmt.Fprintln(w, "Archive and delete are disabled; set apply.allow_destructive to enable them.")
	}
}

func printFailures(w io.Writer, failures []apperr.ItemError) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(w, "%d item(s) failed:\n", len(failures))
	for _, f := range failures {
		fmt.Fprintf(w, " - %v\n", f)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
