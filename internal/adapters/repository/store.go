// Package repository holds the answer cache: catalog id -> correct answer.
package repository

import (
	"context"

	"github.com/okian/plusolver/internal/domain/model"
)

// Cache maps catalog ids to their correct answers. It is written once and
// read on every attempt.
type Cache interface {
	// IsPopulated reports whether a complete population pass has been stored.
	IsPopulated(ctx context.Context) (bool, error)

	// Populate stores items keyed by catalog id. Ids already present are left
	// untouched. Returns the number of newly stored items.
	Populate(ctx context.Context, items []model.CatalogItem) (int, error)

	// Lookup returns the correct answer for a catalog id. ok is false when
	// the id was never cached.
	Lookup(ctx context.Context, catalogID model.ID) (answer string, ok bool, err error)

	// Get returns the full entry. Returns ErrNotFound if the id is unknown.
	Get(ctx context.Context, catalogID model.ID) (model.CatalogItem, error)

	// List returns up to limit entries ordered by catalog id.
	List(ctx context.Context, limit int) ([]model.CatalogItem, error)

	// Count returns the number of cached entries.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Drivers accepted by OpenCache.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// OpenCache opens the cache backend named by driver.
func OpenCache(ctx context.Context, driver, dsn string, opts ...Option) (Cache, error) {
	if driver == DriverMemory {
		return NewMemoryStore(opts...), nil
	}
	return Open(ctx, driver, dsn, opts...)
}
