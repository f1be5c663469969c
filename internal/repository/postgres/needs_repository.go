package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/repository"
)

// Each field is only overwritten when the update carries a value for it.
const upsertNeedsQuery = `
	INSERT INTO needs_profiles (category, name, code, required_quantity, location, units_per_package, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	ON CONFLICT (category, name, code) DO UPDATE SET
		required_quantity = COALESCE(EXCLUDED.required_quantity, needs_profiles.required_quantity),
		location = COALESCE(EXCLUDED.location, needs_profiles.location),
		units_per_package = COALESCE(EXCLUDED.units_per_package, needs_profiles.units_per_package),
		updated_at = EXCLUDED.updated_at
`

type needsRow struct {
	RequiredQuantity *float64 `db:"required_quantity"`
	Location         *string  `db:"location"`
	UnitsPerPackage  *float64 `db:"units_per_package"`
}

// NeedsRepository stores needs profiles in needs_profiles.
type NeedsRepository struct {
	db       *DB
	defaults domain.NeedsDefaults
}

var _ repository.NeedsProfileStore = (*NeedsRepository)(nil)

// NewNeedsRepository creates a new needs profile repository
func NewNeedsRepository(db *DB, defaults domain.NeedsDefaults) *NeedsRepository {
	return &NeedsRepository{db: db, defaults: defaults}
}

func (r *NeedsRepository) Get(ctx context.Context, category domain.Category, key domain.ProductKey) (domain.NeedsProfile, bool, error) {
	query := `
		SELECT required_quantity, location, units_per_package
		FROM needs_profiles
		WHERE category = $1 AND name = $2 AND code = $3
	`

	var row needsRow
	err := r.db.GetContext(ctx, &row, query, category, key.Name, key.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return r.defaults.Profile(), false, nil
	}
	if err != nil {
		return domain.NeedsProfile{}, false, fmt.Errorf("error getting needs profile %s: %w", key, err)
	}
	return r.defaults.Resolve(row.RequiredQuantity, row.Location, row.UnitsPerPackage), true, nil
}

func (r *NeedsRepository) Put(ctx context.Context, category domain.Category, key domain.ProductKey, update domain.NeedsUpdate) (domain.NeedsProfile, error) {
	if err := update.Validate(); err != nil {
		return domain.NeedsProfile{}, err
	}

	query := upsertNeedsQuery + " RETURNING required_quantity, location, units_per_package"

	var row needsRow
	err := r.db.QueryRowxContext(ctx, query,
		category, key.Name, key.Code,
		update.RequiredQuantity, update.Location, update.UnitsPerPackage,
	).StructScan(&row)
	if err != nil {
		return domain.NeedsProfile{}, fmt.Errorf("failed to update needs profile %s: %w", key, err)
	}
	return r.defaults.Resolve(row.RequiredQuantity, row.Location, row.UnitsPerPackage), nil
}

func (r *NeedsRepository) PutMany(ctx context.Context, category domain.Category, records []domain.NeedsRecord) error {
	for _, rec := range records {
		if err := rec.Update.Validate(); err != nil {
			return fmt.Errorf("%s: %w", rec.Key, err)
		}
	}
	if len(records) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertNeedsQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare needs upsert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			u := rec.Update
			if _, err := stmt.ExecContext(ctx, category, rec.Key.Name, rec.Key.Code,
				u.RequiredQuantity, u.Location, u.UnitsPerPackage); err != nil {
				return fmt.Errorf("failed to upsert needs profile %s: %w", rec.Key, err)
			}
		}
		return nil
	})
}
