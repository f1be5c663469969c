// backend-go/internal/repository/repository.go
package repository

import (
	"context"
	"strings"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
)

// LedgerStore persists the on-hand count of every product and serves it joined
// with the product's needs profile.
type LedgerStore interface {
	// Upsert overwrites only the on-hand count of an existing key and inserts new keys.
	Upsert(ctx context.Context, category domain.Category, key domain.ProductKey, onHand float64) error
	// UpsertLedger commits the final quantities of a whole ledger in one transaction.
	UpsertLedger(ctx context.Context, ledger *domain.StockLedger) error
	List(ctx context.Context, category domain.Category) ([]domain.InventoryItem, error)
	SearchByName(ctx context.Context, category domain.Category, substr string) ([]domain.InventoryItem, error)
	SearchByCode(ctx context.Context, category domain.Category, substr string) ([]domain.InventoryItem, error)
	// Get returns domain.ErrNotFound when the key has no on-hand record.
	Get(ctx context.Context, category domain.Category, key domain.ProductKey) (domain.InventoryItem, error)
	// Names returns distinct product names containing partial, sorted.
	Names(ctx context.Context, category domain.Category, partial string, limit int) ([]string, error)
}

// NeedsProfileStore holds per-product replenishment configuration.
type NeedsProfileStore interface {
	// Get returns the defaulted profile and false when nothing is configured for key.
	Get(ctx context.Context, category domain.Category, key domain.ProductKey) (domain.NeedsProfile, bool, error)
	// Put applies a partial update and returns the resulting profile.
	Put(ctx context.Context, category domain.Category, key domain.ProductKey, update domain.NeedsUpdate) (domain.NeedsProfile, error)
	// PutMany applies a batch of partial updates atomically.
	PutMany(ctx context.Context, category domain.Category, records []domain.NeedsRecord) error
}

// ContainsFold reports whether substr occurs in s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// DefaultNamesLimit caps autocomplete results when the caller passes no limit.
const DefaultNamesLimit = 20
