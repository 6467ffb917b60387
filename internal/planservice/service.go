// Package planservice is the read side shared by the plan command, the HTTP
// review surface and the MCP server. It never mutates the store.
package planservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/opdedupe/internal/apperr"
	"github.com/starford/opdedupe/internal/checksum"
	"github.com/starford/opdedupe/internal/journal"
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/reconcile"
	"github.com/starford/opdedupe/internal/report"
)

// ErrJournalDisabled is returned by run queries when no journal is configured.
var ErrJournalDisabled = errors.New("journal disabled")

// PlanView is the partitioned plan of the current report file.
type PlanView struct {
	ReportPath string           `json:"report_path"`
	Checksum   string           `json:"checksum"`
	Schema     string           `json:"schema"`
	HasURL     bool             `json:"has_url"`
	Skipped    int              `json:"skipped_rows"`
	Counts     reconcile.Counts `json:"counts"`
	Plan       reconcile.Plan   `json:"plan"`
}

// RunDetail is a journal run with its actions.
type RunDetail struct {
	journal.Run
	Actions []journal.Action `json:"actions"`
}

// Service reads the report file and the journal.
type Service struct {
	reportPath string
	db         *journal.DB
	logger     *slog.Logger
}

// NewService creates a Service. db may be nil when journaling is disabled.
func NewService(reportPath string, db *journal.DB, logger *slog.Logger) *Service {
	return &Service{reportPath: reportPath, db: db, logger: logger}
}

// ReportPath returns the watched report path.
func (s *Service) ReportPath() string { return s.reportPath }

func (s *Service) load() (*report.Report, string, error) {
	data, err := os.ReadFile(s.reportPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("report %s: %w", s.reportPath, apperr.ErrNotFound)
		}
		return nil, "", err
	}
	rep, err := report.Parse(data, s.logger)
	if err != nil {
		return nil, "", err
	}
	return rep, checksum.Sum(data), nil
}

// Plan loads the report and partitions it into phases.
func (s *Service) Plan(_ context.Context) (*PlanView, error) {
	rep, sum, err := s.load()
	if err != nil {
		return nil, err
	}
	p := reconcile.Partition(rep.Changes)
	return &PlanView{
		ReportPath: s.reportPath,
		Checksum:   sum,
		Schema:     string(rep.Schema),
		HasURL:     rep.HasURL,
		Skipped:    rep.Skipped,
		Counts:     p.Counts(),
		Plan:       p,
	}, nil
}

// Rows returns the report rows, optionally filtered by action (case-insensitive).
func (s *Service) Rows(_ context.Context, action string) ([]models.Change, error) {
	rep, _, err := s.load()
	if err != nil {
		return nil, err
	}
	if action == "" {
		return nonNilSlice(rep.Changes), nil
	}
	want := models.ParseAction(action)
	out := []models.Change{}
	for _, c := range rep.Changes {
		if c.Action == want {
			out = append(out, c)
		}
	}
	return out, nil
}

// Runs lists recent journal runs, newest first.
func (s *Service) Runs(_ context.Context, limit int) ([]journal.Run, error) {
	if s.db == nil {
		return nil, ErrJournalDisabled
	}
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(runs), nil
}

// Run returns one run and its actions.
func (s *Service) Run(_ context.Context, id string) (*RunDetail, error) {
	if s.db == nil {
		return nil, ErrJournalDisabled
	}
	run, err := s.db.GetRun(id)
	if err != nil {
		return nil, err
	}
	acts, err := s.db.RunActions(id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: *run, Actions: nonNilSlice(acts)}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
