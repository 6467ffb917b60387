// Package scan runs the analyse pipeline: list, fetch, group, resolve and
// write the duplicate report.
package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/opdedupe/internal/apperr"
	"github.com/starford/opdedupe/internal/checksum"
	"github.com/starford/opdedupe/internal/dedupe"
	"github.com/starford/opdedupe/internal/fetch"
	"github.com/starford/opdedupe/internal/journal"
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/report"
)

// Result describes one analyse run.
type Result struct {
	RunID      string
	Fetched    int
	Failures   []apperr.ItemError
	Groups     []models.ResolvedGroup
	Rows       int
	ReportPath string
	Checksum   string
}

// GroupCounts returns the number of groups per reason.
func (r *Result) GroupCounts() map[models.Reason]int {
	out := make(map[models.Reason]int, 3)
	for _, g := range r.Groups {
		out[g.Key.Reason()]++
	}
	return out
}

// Service wires the analyse pipeline together.
type Service struct {
	fetcher  *fetch.Fetcher
	indexer  *dedupe.Indexer
	writer   *report.Writer
	recorder journal.Recorder
	logger   *slog.Logger
}

// NewService creates a Service. recorder may be nil.
func NewService(fetcher *fetch.Fetcher, indexer *dedupe.Indexer, writer *report.Writer, recorder journal.Recorder, logger *slog.Logger) *Service {
	return &Service{fetcher: fetcher, indexer: indexer, writer: writer, recorder: recorder, logger: logger}
}

// Run scans vault ("" for all vaults) and writes the report to reportPath.
// Individual fetch failures are reported in the result; a listing or write
// failure aborts the run.
func (s *Service) Run(ctx context.Context, vault, reportPath string) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), ReportPath: reportPath}
	s.begin(journal.Run{ID: res.RunID, Kind: journal.KindAnalyse, Vault: vault, ReportPath: reportPath})

	fetched, err := s.fetcher.FetchScope(ctx, vault)
	if err != nil {
		s.finish(res, err)
		return nil, err
	}
	res.Fetched = len(fetched.Records)
	res.Failures = fetched.Failures

	res.Groups = dedupe.Resolve(s.indexer.Index(fetched.Records))
	s.logger.Info("scan: grouped records",
		slog.Int("records", res.Fetched),
		slog.Int("groups", len(res.Groups)))

	rows, err := s.writer.WriteFile(reportPath, res.Groups)
	if err != nil {
		err = fmt.Errorf("scan: %w", err)
		s.finish(res, err)
		return nil, err
	}
	res.Rows = rows

	if sum, err := checksum.File(reportPath); err == nil {
		res.Checksum = sum
	}
	s.logger.Info("scan: report written",
		slog.String("run_id", res.RunID),
		slog.String("path", reportPath),
		slog.String("schema", string(s.writer.Schema())),
		slog.Int("rows", rows))
	s.finish(res, nil)
	return res, nil
}

func (s *Service) begin(run journal.Run) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.BeginRun(run); err != nil {
		s.logger.Warn("scan: journal begin failed", slog.String("error", err.Error()))
	}
}

func (s *Service) finish(res *Result, runErr error) {
	if s.recorder == nil {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	stats := journal.Stats{
		Fetched: res.Fetched,
		Groups:  len(res.Groups),
		Rows:    res.Rows,
		Failed:  len(res.Failures),
	}
	if err := s.recorder.FinishRun(res.RunID, stats, msg); err != nil {
		s.logger.Warn("scan: journal finish failed", slog.String("run_id", res.RunID), slog.String("error", err.Error()))
	}
}
