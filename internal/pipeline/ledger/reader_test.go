package ledger_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadTable_CSVWithBOM(t *testing.T) {
	data := "\ufeff약품명,약품코드,개수\nibuprofen,100,5\naspirin,\"1,200\",3\n"

	table, err := ledger.ReadTable(strings.NewReader(data), "stock.csv")
	require.NoError(t, err)

	assert.Equal(t, "stock.csv", table.Name)
	assert.Equal(t, []string{"약품명", "약품코드", "개수"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"aspirin", "1,200", "3"}, table.Rows[1])
}

func TestReadTable_RaggedCSV(t *testing.T) {
	data := "상품명,수량\nvitamin c,1\n합계\n"

	table, err := ledger.ReadTable(strings.NewReader(data), "sales.CSV")
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"합계"}, table.Rows[1])
}

func TestReadTable_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"상품명", "바코드", "재고수량"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"", "", "EA"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"vitamin c", "8801234", "7"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := ledger.ReadTable(bytes.NewReader(buf.Bytes()), "general.xlsx")
	require.NoError(t, err)

	assert.Equal(t, []string{"상품명", "바코드", "재고수량"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"vitamin c", "8801234", "7"}, table.Rows[1])
}

func TestReadTable_UnsupportedFormat(t *testing.T) {
	_, err := ledger.ReadTable(strings.NewReader("whatever"), "stock.pdf")

	var formatErr *domain.FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, "stock.pdf", formatErr.File)
}

func TestReadTable_EmptyFile(t *testing.T) {
	_, err := ledger.ReadTable(strings.NewReader(""), "stock.csv")

	var formatErr *domain.FormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestReadTable_CorruptXLSX(t *testing.T) {
	_, err := ledger.ReadTable(strings.NewReader("not a zip archive"), "stock.xlsx")

	var formatErr *domain.FormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestReadFile_RejectsBeforeOpening(t *testing.T) {
	_, err := ledger.ReadFile(filepath.Join(t.TempDir(), "missing.xls"))

	var formatErr *domain.FormatError
	assert.True(t, errors.As(err, &formatErr))
}

func TestLoadSources_ReadsEveryKind(t *testing.T) {
	dir := t.TempDir()
	stock := filepath.Join(dir, "stock.csv")
	sales := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(stock, []byte("약품명,약품코드,개수\nibuprofen,100,5\n"), 0o644))
	require.NoError(t, os.WriteFile(sales, []byte("약품명,약품코드,조제수량\nibuprofen,100,2\n"), 0o644))

	sources, err := ledger.LoadSources(context.Background(), map[domain.SourceKind]string{
		domain.SourceDispensed: sales,
		domain.SourceOnHand:    stock,
	})
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, domain.SourceOnHand, sources[0].Kind)
	assert.Equal(t, domain.SourceDispensed, sources[1].Kind)

	r, err := ledger.NewReconciler(domain.CategoryProfessional)
	require.NoError(t, err)
	out, err := r.Reconcile(context.Background(), sources)
	require.NoError(t, err)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, 3.0, out.Entries[0].FinalQuantity)
}

func TestLoadSources_FailsAtomically(t *testing.T) {
	dir := t.TempDir()
	stock := filepath.Join(dir, "stock.csv")
	require.NoError(t, os.WriteFile(stock, []byte("약품명,약품코드,개수\nibuprofen,100,5\n"), 0o644))

	sources, err := ledger.LoadSources(context.Background(), map[domain.SourceKind]string{
		domain.SourceOnHand:   stock,
		domain.SourceIncoming: filepath.Join(dir, "purchase.txt"),
	})
	assert.Nil(t, sources)
	assert.Error(t, err)
}
