package ledger_test

import (
	"errors"
	"testing"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNeeds(t *testing.T) {
	table := ledger.Table{
		Name:   "needs.xlsx",
		Header: []string{"약 이름", "약 코드", "필요 재고", "위치", "통당 수량"},
		Rows: [][]string{
			{"aspirin", "7.0", "30", "A-1", "10"},
			{"tylenol", "22", "abc", "", ""},
			{"ibuprofen", "100", "", "B-2", "0"},
			{"", "", "5", "C-3", ""},
			{"vitamin", "", "", "", ""},
		},
	}

	records, diags, err := ledger.ParseNeeds(table)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, domain.ProductKey{Name: "aspirin", Code: "7"}, records[0].Key)
	require.NotNil(t, records[0].Update.RequiredQuantity)
	assert.Equal(t, 30.0, *records[0].Update.RequiredQuantity)
	assert.Equal(t, "A-1", *records[0].Update.Location)
	assert.Equal(t, 10.0, *records[0].Update.UnitsPerPackage)

	assert.Equal(t, "ibuprofen", records[1].Key.Name)
	assert.Nil(t, records[1].Update.RequiredQuantity)
	assert.Nil(t, records[1].Update.UnitsPerPackage)
	assert.Equal(t, "B-2", *records[1].Update.Location)

	require.Len(t, diags, 2)
	assert.Equal(t, 3, diags[0].Row)
	assert.Equal(t, "필요 재고", diags[0].Column)
	assert.Equal(t, "abc", diags[0].Value)
	assert.Equal(t, 4, diags[1].Row)
	assert.Equal(t, "통당 수량", diags[1].Column)
}

func TestParseNeeds_MissingNameColumn(t *testing.T) {
	_, _, err := ledger.ParseNeeds(ledger.Table{Name: "needs.csv", Header: []string{"코드", "필요 재고"}})

	var ingestErr *domain.IngestionError
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, "약 이름", ingestErr.Column)
}

func TestParseNeeds_NoNeedsColumns(t *testing.T) {
	_, _, err := ledger.ParseNeeds(ledger.Table{Name: "needs.csv", Header: []string{"약 이름", "약 코드"}})

	var ingestErr *domain.IngestionError
	assert.True(t, errors.As(err, &ingestErr))
}
