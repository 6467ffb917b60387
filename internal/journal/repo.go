package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/opdedupe/internal/apperr"
)

// Run kinds.
const (
	KindAnalyse = "analyse"
	KindApply   = "apply"
)

// Action outcomes.
const (
	OutcomePlanned   = "planned"
	OutcomeApplied   = "applied"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Stats are the counters recorded when a run finishes.
type Stats struct {
	Fetched  int `json:"fetched"`
	Groups   int `json:"groups"`
	Rows     int `json:"rows"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Deleted  int `json:"deleted"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Run is one analyse or apply invocation.
type Run struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	Vault          string     `json:"vault,omitempty"`
	ReportPath     string     `json:"report_path"`
	ReportChecksum string     `json:"report_checksum,omitempty"`
	DryRun         bool       `json:"dry_run"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Stats          Stats      `json:"stats"`
	Error          string     `json:"error,omitempty"`
}

// Action is one attempted (or planned) store mutation within an apply run.
type Action struct {
	RunID    string    `json:"run_id"`
	Seq      int       `json:"seq"`
	Phase    string    `json:"phase"`
	ItemID   string    `json:"item_id"`
	Title    string    `json:"title,omitempty"`
	URL      string    `json:"url,omitempty"`
	Outcome  string    `json:"outcome"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Recorder is the write side of the journal used by the pipeline.
type Recorder interface {
	BeginRun(r Run) error
	RecordAction(a Action) error
	FinishRun(id string, stats Stats, errMsg string) error
}

// Verify *DB satisfies Recorder at compile time.
var _ Recorder = (*DB)(nil)

// BeginRun inserts a new run row.
func (db *DB) BeginRun(r Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, kind, vault, report_path, report_checksum, dry_run, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Kind, r.Vault, r.ReportPath, r.ReportChecksum, r.DryRun, r.StartedAt)
	if err != nil {
		return fmt.Errorf("journal: begin run: %w", err)
	}
	return nil
}

// RecordAction appends an action to its run, assigning the next sequence number.
func (db *DB) RecordAction(a Action) error {
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO actions (run_id, seq, phase, item_id, title, url, outcome, attempts, error, at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ?
		FROM actions WHERE run_id = ?
	`, a.RunID, a.Phase, a.ItemID, a.Title, a.URL, a.Outcome, a.Attempts, a.Error, a.At, a.RunID)
	if err != nil {
		return fmt.Errorf("journal: record action: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and error message of a run.
func (db *DB) FinishRun(id string, s Stats, errMsg string) error {
	res, err := db.conn.Exec(`
		UPDATE runs SET
			finished_at  = ?,
			fetched      = ?,
			groups_found = ?,
			rows_written = ?,
			updated      = ?,
			archived     = ?,
			deleted      = ?,
			skipped      = ?,
			failed       = ?,
			error        = ?
		WHERE id = ?
	`, time.Now().UTC(), s.Fetched, s.Groups, s.Rows, s.Updated, s.Archived, s.Deleted, s.Skipped, s.Failed, errMsg, id)
	if err != nil {
		return fmt.Errorf("journal: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal: finish run %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

const runColumns = `id, kind, vault, report_path, report_checksum, dry_run, started_at, finished_at,
	fetched, groups_found, rows_written, updated, archived, deleted, skipped, failed, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var finished sql.NullTime
	err := s.Scan(&r.ID, &r.Kind, &r.Vault, &r.ReportPath, &r.ReportChecksum, &r.DryRun, &r.StartedAt, &finished,
		&r.Stats.Fetched, &r.Stats.Groups, &r.Stats.Rows, &r.Stats.Updated, &r.Stats.Archived,
		&r.Stats.Deleted, &r.Stats.Skipped, &r.Stats.Failed, &r.Error)
	if err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 defaults to 20.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run or apperr.ErrNotFound.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journal: get run: %w", err)
	}
	return &r, nil
}

// RunActions returns a run's actions in execution order.
func (db *DB) RunActions(runID string) ([]Action, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, seq, phase, item_id, title, url, outcome, attempts, error, at
		FROM actions WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: run actions: %w", err)
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.RunID, &a.Seq, &a.Phase, &a.ItemID, &a.Title, &a.URL, &a.Outcome, &a.Attempts, &a.Error, &a.At); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
