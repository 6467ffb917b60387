// Package fetch retrieves full records from the store with bounded parallelism.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/starford/opdedupe/internal/apperr"
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/store"
)

// ErrEmptyItem is recorded when the store returns no record and no error.
var ErrEmptyItem = errors.New("empty item")

// DefaultWorkers is the fetch concurrency when none is configured.
const DefaultWorkers = 8

// Result is the outcome of a fetch batch. Records keep the order of the
// requested identifiers; failed identifiers are listed in Failures instead.
type Result struct {
	Records  []models.Record
	Failures []apperr.ItemError
}

// Fetcher fetches records concurrently. One failed fetch never affects the others.
type Fetcher struct {
	reader  store.Reader
	workers int
	logger  *slog.Logger
}

// New creates a Fetcher. A worker count below 1 is clamped to 1 with a warning.
func New(reader store.Reader, workers int, logger *slog.Logger) *Fetcher {
	if workers < 1 {
		logger.Warn("fetch: worker count must be at least 1; using 1", slog.Int("workers", workers))
		workers = 1
	}
	return &Fetcher{reader: reader, workers: workers, logger: logger}
}

// Workers returns the effective concurrency.
func (f *Fetcher) Workers() int { return f.workers }

// FetchScope lists the identifiers in vault ("" for every vault) and fetches them.
// Only a listing failure is returned as an error.
func (f *Fetcher) FetchScope(ctx context.Context, vault string) (Result, error) {
	ids, err := f.reader.ListItems(ctx, vault)
	if err != nil {
		return Result{}, fmt.Errorf("fetch: list items: %w", err)
	}
	f.logger.Info("fetch: listed items", slog.Int("count", len(ids)), slog.String("vault", vault))
	return f.Fetch(ctx, ids), nil
}

// Fetch retrieves every id. It always drains the full set before returning.
func (f *Fetcher) Fetch(ctx context.Context, ids []string) Result {
	records := make([]*models.Record, len(ids))
	errs := make([]error, len(ids))
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := f.reader.GetItem(ctx, id)
			n := done.Add(1)
			if err == nil && rec == nil {
				err = ErrEmptyItem
			}
			if err != nil {
				errs[i] = err
				f.logger.Warn("fetch: skipping item",
					slog.String("item_id", id),
					slog.String("error", err.Error()))
				return nil
			}
			records[i] = rec
			f.logger.Debug("fetch: fetched item",
				slog.String("item_id", id),
				slog.Int64("done", n),
				slog.Int("total", len(ids)))
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, id := range ids {
		if errs[i] != nil {
			res.Failures = append(res.Failures, apperr.ItemError{ItemID: id, Op: "fetch", Err: errs[i]})
			continue
		}
		res.Records = append(res.Records, *records[i])
	}
	f.logger.Info("fetch: complete",
		slog.Int("fetched", len(res.Records)),
		slog.Int("failed", len(res.Failures)),
		slog.Int("workers", f.workers))
	return res
}
