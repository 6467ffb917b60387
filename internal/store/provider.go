// Package store defines the abstraction over the external secret store.
package store

import (
	"context"

	"github.com/starford/opdedupe/internal/models"
)

// Reader is the read side of the store.
type Reader interface {
	// ListItems returns item identifiers, restricted to vault when non-empty.
	ListItems(ctx context.Context, vault string) ([]string, error)
	// GetItem returns the full record for id.
	GetItem(ctx context.Context, id string) (*models.Record, error)
}

// Writer is the mutating side of the store.
type Writer interface {
	// EditItem sets the title and/or primary URL; empty values are left untouched.
	EditItem(ctx context.Context, id, title, url string) error
	// DeleteItem removes the item, or moves it to the archive when archive is true.
	DeleteItem(ctx context.Context, id string, archive bool) error
}

// Provider is the full store surface used by opdedupe.
type Provider interface {
	Reader
	Writer
	// ListVaults returns the vaults visible to the signed-in account.
	ListVaults(ctx context.Context) ([]models.Vault, error)
}
