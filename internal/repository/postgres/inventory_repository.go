package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/repository"
)

const upsertStockQuery = `
	INSERT INTO inventory_stock (category, name, code, on_hand, updated_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (category, name, code) DO UPDATE SET
		on_hand = EXCLUDED.on_hand,
		updated_at = EXCLUDED.updated_at
`

const selectItemsQuery = `
	SELECT s.name, s.code, s.on_hand, s.updated_at,
	       n.required_quantity, n.location, n.units_per_package
	FROM inventory_stock s
	LEFT JOIN needs_profiles n
	       ON n.category = s.category AND n.name = s.name AND n.code = s.code
	WHERE s.category = $1
`

type itemRow struct {
	Name             string    `db:"name"`
	Code             string    `db:"code"`
	OnHand           float64   `db:"on_hand"`
	UpdatedAt        time.Time `db:"updated_at"`
	RequiredQuantity *float64  `db:"required_quantity"`
	Location         *string   `db:"location"`
	UnitsPerPackage  *float64  `db:"units_per_package"`
}

func (r itemRow) item(defaults domain.NeedsDefaults) domain.InventoryItem {
	return domain.InventoryItem{
		ProductKey: domain.ProductKey{Name: r.Name, Code: r.Code},
		OnHand:     r.OnHand,
		Needs:      defaults.Resolve(r.RequiredQuantity, r.Location, r.UnitsPerPackage),
		UpdatedAt:  r.UpdatedAt,
	}
}

// InventoryRepository stores on-hand counts in inventory_stock.
type InventoryRepository struct {
	db       *DB
	defaults domain.NeedsDefaults
}

var _ repository.LedgerStore = (*InventoryRepository)(nil)

// NewInventoryRepository creates a new inventory repository
func NewInventoryRepository(db *DB, defaults domain.NeedsDefaults) *InventoryRepository {
	return &InventoryRepository{db: db, defaults: defaults}
}

func (r *InventoryRepository) Upsert(ctx context.Context, category domain.Category, key domain.ProductKey, onHand float64) error {
	if _, err := r.db.ExecContext(ctx, upsertStockQuery, category, key.Name, key.Code, onHand); err != nil {
		return fmt.Errorf("failed to upsert stock %s: %w", key, err)
	}
	return nil
}

// UpsertLedger writes every entry's final quantity as the new on-hand count.
func (r *InventoryRepository) UpsertLedger(ctx context.Context, ledger *domain.StockLedger) error {
	if len(ledger.Entries) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertStockQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare stock upsert: %w", err)
		}
		defer stmt.Close()

		for _, e := range ledger.Entries {
			if _, err := stmt.ExecContext(ctx, ledger.Category, e.Name, e.Code, e.FinalQuantity); err != nil {
				return fmt.Errorf("failed to upsert stock %s: %w", e.ProductKey, err)
			}
		}
		return nil
	})
}

func (r *InventoryRepository) List(ctx context.Context, category domain.Category) ([]domain.InventoryItem, error) {
	return r.selectItems(ctx, "", category)
}

func (r *InventoryRepository) SearchByName(ctx context.Context, category domain.Category, substr string) ([]domain.InventoryItem, error) {
	return r.selectItems(ctx, " AND strpos(lower(s.name), lower($2)) > 0", category, substr)
}

func (r *InventoryRepository) SearchByCode(ctx context.Context, category domain.Category, substr string) ([]domain.InventoryItem, error) {
	return r.selectItems(ctx, " AND strpos(lower(s.code), lower($2)) > 0", category, substr)
}

func (r *InventoryRepository) Get(ctx context.Context, category domain.Category, key domain.ProductKey) (domain.InventoryItem, error) {
	query := selectItemsQuery + " AND s.name = $2 AND s.code = $3"

	var row itemRow
	err := r.db.GetContext(ctx, &row, query, category, key.Name, key.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InventoryItem{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("error getting inventory item %s: %w", key, err)
	}
	return row.item(r.defaults), nil
}

func (r *InventoryRepository) Names(ctx context.Context, category domain.Category, partial string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = repository.DefaultNamesLimit
	}

	query := `
		SELECT DISTINCT name
		FROM inventory_stock
		WHERE category = $1 AND strpos(lower(name), lower($2)) > 0
		ORDER BY name
		LIMIT $3
	`

	var names []string
	if err := r.db.SelectContext(ctx, &names, query, category, partial, limit); err != nil {
		return nil, fmt.Errorf("error getting product names: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (r *InventoryRepository) selectItems(ctx context.Context, condition string, args ...interface{}) ([]domain.InventoryItem, error) {
	query := selectItemsQuery + condition

	var rows []itemRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error getting inventory items: %w", err)
	}

	items := make([]domain.InventoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.item(r.defaults))
	}
	// database collation may disagree with the canonical byte order
	sort.Slice(items, func(i, j int) bool { return items[i].Less(items[j].ProductKey) })
	return items, nil
}
