// Package testutil provides shared test helpers: an in-memory store and a
// temporary journal.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/opdedupe/internal/apperr"
	"github.com/starford/opdedupe/internal/journal"
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/store"
)

// Call is one recorded store invocation.
type Call struct {
	Op      string
	ID      string
	Title   string
	URL     string
	Archive bool
}

// FakeStore is an in-memory store.Provider that records every call.
type FakeStore struct {
	mu      sync.Mutex
	items   map[string]models.Record
	order   []string
	calls   []Call
	active  int
	maxSeen int

	Vaults   []models.Vault
	ListErr  error
	GetErr   map[string]error
	GetDelay time.Duration
	// EditErr and DeleteErr hold per-item error sequences consumed one per call.
	EditErr   map[string][]error
	DeleteErr map[string][]error
}

var _ store.Provider = (*FakeStore)(nil)

// NewFakeStore creates a store holding records in the given order.
func NewFakeStore(records ...models.Record) *FakeStore {
	s := &FakeStore{
		items:     make(map[string]models.Record, len(records)),
		GetErr:    make(map[string]error),
		EditErr:   make(map[string][]error),
		DeleteErr: make(map[string][]error),
	}
	for _, r := range records {
		s.items[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	return s
}

// ListItems returns every stored ID; the vault filter matches Record.Vault.
func (s *FakeStore) ListItems(_ context.Context, vault string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: "list"})
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	var ids []string
	for _, id := range s.order {
		rec, ok := s.items[id]
		if !ok {
			continue
		}
		if vault != "" && rec.Vault != vault {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetItem returns a copy of the stored record.
func (s *FakeStore) GetItem(_ context.Context, id string) (*models.Record, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Op: "get", ID: id})
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	delay := s.GetDelay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	if err := s.GetErr[id]; err != nil {
		return nil, err
	}
	rec, ok := s.items[id]
	if !ok {
		return nil, &apperr.ExternalError{Args: []string{"item", "get", id}, Stderr: fmt.Sprintf("%q isn't an item", id), ExitCode: 1}
	}
	cp := rec
	cp.URLs = append([]string(nil), rec.URLs...)
	return &cp, nil
}

// EditItem applies title/url to the stored record.
func (s *FakeStore) EditItem(_ context.Context, id, title, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: "edit", ID: id, Title: title, URL: url})
	if err := pop(s.EditErr, id); err != nil {
		return err
	}
	rec, ok := s.items[id]
	if !ok {
		return &apperr.ExternalError{Args: []string{"item", "edit", id}, Stderr: "item not found", ExitCode: 1}
	}
	if title != "" {
		rec.Title = title
	}
	if url != "" && !rec.HasURL(url) {
		rec.URLs = append([]string{url}, rec.URLs...)
	}
	s.items[id] = rec
	return nil
}

// DeleteItem removes the stored record.
func (s *FakeStore) DeleteItem(_ context.Context, id string, archive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: "delete", ID: id, Archive: archive})
	if err := pop(s.DeleteErr, id); err != nil {
		return err
	}
	if _, ok := s.items[id]; !ok {
		return &apperr.ExternalError{Args: []string{"item", "delete", id}, Stderr: "item not found", ExitCode: 1}
	}
	delete(s.items, id)
	return nil
}

// ListVaults returns Vaults.
func (s *FakeStore) ListVaults(_ context.Context) ([]models.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: "vaults"})
	return s.Vaults, nil
}

// Calls returns every recorded call in order.
func (s *FakeStore) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Mutations returns only edit and delete calls.
func (s *FakeStore) Mutations() []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == "edit" || c.Op == "delete" {
			out = append(out, c)
		}
	}
	return out
}

// MaxConcurrentGets returns the highest number of overlapping GetItem calls seen.
func (s *FakeStore) MaxConcurrentGets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSeen
}

// Item returns the stored record for id.
func (s *FakeStore) Item(id string) (models.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	return r, ok
}

func pop(m map[string][]error, id string) error {
	seq := m[id]
	if len(seq) == 0 {
		return nil
	}
	m[id] = seq[1:]
	return seq[0]
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestJournal creates a temporary SQLite journal that is automatically cleaned up.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "opdedupe-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := journal.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Login builds a login record with a USERNAME-purpose field.
func Login(id, title, username, updated string, urls ...string) models.Record {
	r := models.Record{ID: id, Title: title, URLs: urls, UpdatedAt: updated, Vault: "Personal"}
	if username != "" {
		r.Fields = []models.Field{{ID: "username", Purpose: "USERNAME", Label: "username", Value: username}}
	}
	return r
}
