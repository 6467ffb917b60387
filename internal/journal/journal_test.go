package journal

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/opdedupe/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "opdedupe-journal-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM runs`).Scan(&count); err != nil {
		t.Fatalf("runs table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM actions`).Scan(&count); err != nil {
		t.Fatalf("actions table missing: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	db := testDB(t)
	if err := db.BeginRun(Run{ID: "r1", Kind: KindApply, ReportPath: "report.csv", DryRun: true}); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	got, err := db.GetRun("r1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.FinishedAt != nil {
		t.Error("unfinished run should have no finish time")
	}
	if !got.DryRun || got.Kind != KindApply {
		t.Errorf("run = %+v", got)
	}

	stats := Stats{Updated: 2, Deleted: 1, Failed: 1}
	if err := db.FinishRun("r1", stats, "1 failure"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	got, _ = db.GetRun("r1")
	if got.FinishedAt == nil {
		t.Fatal("finished run should have a finish time")
	}
	if got.Stats != stats {
		t.Errorf("stats = %+v, want %+v", got.Stats, stats)
	}
	if got.Error != "1 failure" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetRun("nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := db.FinishRun("nope", Stats{}, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("FinishRun err = %v, want ErrNotFound", err)
	}
}

func TestRecordAction_AssignsSequence(t *testing.T) {
	db := testDB(t)
	_ = db.BeginRun(Run{ID: "r1", Kind: KindApply})
	_ = db.BeginRun(Run{ID: "r2", Kind: KindApply})

	for _, id := range []string{"a", "b", "c"} {
		if err := db.RecordAction(Action{RunID: "r1", Phase: "delete", ItemID: id, Outcome: OutcomeApplied, Attempts: 1}); err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
	}
	_ = db.RecordAction(Action{RunID: "r2", Phase: "update", ItemID: "z", Outcome: OutcomePlanned})

	acts, err := db.RunActions("r1")
	if err != nil {
		t.Fatalf("RunActions: %v", err)
	}
	if len(acts) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(acts))
	}
	for i, a := range acts {
		if a.Seq != i+1 {
			t.Errorf("action %d seq = %d", i, a.Seq)
		}
	}
	if acts[0].ItemID != "a" || acts[2].ItemID != "c" {
		t.Errorf("unexpected order: %+v", acts)
	}

	other, _ := db.RunActions("r2")
	if len(other) != 1 || other[0].Seq != 1 {
		t.Errorf("r2 actions = %+v", other)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := testDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = db.BeginRun(Run{ID: "old", Kind: KindAnalyse, StartedAt: base})
	_ = db.BeginRun(Run{ID: "new", Kind: KindApply, StartedAt: base.Add(time.Hour)})

	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" {
		t.Errorf("runs = %+v", runs)
	}

	runs, _ = db.ListRuns(1)
	if len(runs) != 1 {
		t.Errorf("limit ignored: %d runs", len(runs))
	}
}
