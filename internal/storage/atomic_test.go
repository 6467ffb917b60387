package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "report.csv")
	if err := WriteFile(p, []byte("a,b\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "a,b\n" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteFile_Replaces(t *testing.T) {
	p := filepath.Join(t.TempDir(), "report.csv")
	_ = WriteFile(p, []byte("old"))
	if err := WriteFile(p, []byte("new")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, _ := os.ReadFile(p)
	if string(got) != "new" {
		t.Errorf("content = %q, want new", got)
	}
}

func TestWriteFile_CreatesSubdirs(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a", "b", "report.csv")
	if err := WriteFile(p, []byte("deep")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestWriteFile_NoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	_ = WriteFile(filepath.Join(dir, "r.csv"), []byte("x"))
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected 1 file, found %d", len(entries))
	}
}
