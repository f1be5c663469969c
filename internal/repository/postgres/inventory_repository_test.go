package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/repository/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemColumns = []string{
	"name", "code", "on_hand", "updated_at",
	"required_quantity", "location", "units_per_package",
}

func newMockDB(t *testing.T) (*postgres.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.Wrap(sqlx.NewDb(db, "postgres")), mock
}

func TestInventoryRepository_UpsertLedgerInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewInventoryRepository(db, domain.DefaultNeeds())

	ledger := &domain.StockLedger{
		Category: domain.CategoryProfessional,
		Entries: []domain.LedgerEntry{
			domain.NewLedgerEntry(domain.ProductKey{Name: "aspirin", Code: "7"}, 2, 0, 5),
			domain.NewLedgerEntry(domain.ProductKey{Name: "ibuprofen", Code: "100"}, 5, 20, 8),
		},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO inventory_stock`)
	prep.ExpectExec().
		WithArgs("professional", "aspirin", "7", -3.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("professional", "ibuprofen", "100", 17.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpsertLedger(context.Background(), ledger))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_UpsertLedgerRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewInventoryRepository(db, domain.DefaultNeeds())
	boom := errors.New("connection reset")

	ledger := &domain.StockLedger{
		Category: domain.CategoryGeneral,
		Entries: []domain.LedgerEntry{
			domain.NewLedgerEntry(domain.ProductKey{Name: "vitamin c"}, 4, 0, 0),
		},
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO inventory_stock`).
		ExpectExec().
		WithArgs("general", "vitamin c", "", 4.0).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.UpsertLedger(context.Background(), ledger)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewInventoryRepository(db, domain.DefaultNeeds())

	mock.ExpectExec(`ON CONFLICT \(category, name, code\) DO UPDATE`).
		WithArgs("general", "vitamin c", "8801", 12.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), domain.CategoryGeneral, domain.ProductKey{Name: "vitamin c", Code: "8801"}, 12)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_ListJoinsNeedsAndDefaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewInventoryRepository(db, domain.DefaultNeeds())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(itemColumns).
		AddRow("tylenol", "22", 4.0, now, 30.0, "B-2", 10.0).
		AddRow("Aspirin", "7", 1.0, now, nil, nil, nil)
	mock.ExpectQuery(`LEFT JOIN needs_profiles`).
		WithArgs("professional").
		WillReturnRows(rows)

	items, err := repo.List(context.Background(), domain.CategoryProfessional)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Aspirin", items[0].Name)
	assert.Equal(t, domain.DefaultNeeds().Profile(), items[0].Needs)

	assert.Equal(t, "tylenol", items[1].Name)
	assert.Equal(t, 30.0, items[1].Needs.RequiredQuantity)
	assert.Equal(t, "B-2", items[1].Needs.Location)
	assert.Equal(t, 10.0, items[1].Needs.UnitsPerPackage)
	assert.False(t, items[1].Needs.Defaulted.Any())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_SearchByNameAndCode(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewInventoryRepository(db, domain.DefaultNeeds())
	now := time.Now()

	mock.ExpectQuery(`strpos\(lower\(s.name\), lower\(\$2\)\)`).
		WithArgs("professional", "ASP").
		WillReturnRows(sqlmock.NewRows(itemColumns).AddRow("aspirin", "7", 1.0, now, nil, nil, nil))
	mock.ExpectQuery(`strpos\(lower\(s.code\), lower\(\$2\)\)`).
		WithArgs("professional", "10").
		WillReturnRows(sqlmock.NewRows(itemColumns))

	byName, err := repo.SearchByName(context.Background(), domain.CategoryProfessional, "ASP")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "aspirin", byName[0].Name)

	byCode, err := repo.SearchByCode(context.Background(), domain.CategoryProfessional, "10")
	require.NoError(t, err)
	assert.Empty(t, byCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewInventoryRepository(db, domain.DefaultNeeds())

	mock.ExpectQuery(`AND s.name = \$2 AND s.code = \$3`).
		WithArgs("general", "ghost", "").
		WillReturnRows(sqlmock.NewRows(itemColumns))

	_, err := repo.Get(context.Background(), domain.CategoryGeneral, domain.ProductKey{Name: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_Names(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewInventoryRepository(db, domain.DefaultNeeds())

	mock.ExpectQuery(`SELECT DISTINCT name`).
		WithArgs("general", "vit", 20).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("vitamin d").AddRow("Vitamin C"))

	names, err := repo.Names(context.Background(), domain.CategoryGeneral, "vit", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vitamin C", "vitamin d"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}
