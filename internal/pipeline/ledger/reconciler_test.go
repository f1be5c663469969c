package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func professionalSources() []ledger.Source {
	return []ledger.Source{
		{
			Kind: domain.SourceOnHand,
			Table: ledger.Table{
				Name:   "stock.csv",
				Header: []string{"약품명", "약품코드", "개수"},
				Rows: [][]string{
					{"ibuprofen", "100", "5"},
					{"aspirin", "200.0", "3"},
				},
			},
		},
		{
			Kind: domain.SourceIncoming,
			Table: ledger.Table{
				Name:   "purchase.csv",
				Header: []string{"약 품 명", "수량"},
				Rows: [][]string{
					{"ibuprofen", "20"},
				},
			},
		},
		{
			Kind: domain.SourceDispensed,
			Table: ledger.Table{
				Name:   "sales.csv",
				Header: []string{"약품명", "약품코드", "조제수량"},
				Rows: [][]string{
					{"ibuprofen", "100", "8"},
				},
			},
		},
	}
}

func reconcile(t *testing.T, category domain.Category, sources []ledger.Source) *domain.StockLedger {
	t.Helper()
	r, err := ledger.NewReconciler(category)
	require.NoError(t, err)
	out, err := r.Reconcile(context.Background(), sources)
	require.NoError(t, err)
	return out
}

func TestReconcile_EndToEnd(t *testing.T) {
	out := reconcile(t, domain.CategoryProfessional, professionalSources())

	entry, ok := out.Lookup(domain.ProductKey{Name: "ibuprofen", Code: "100"})
	require.True(t, ok)
	assert.Equal(t, 5.0, entry.OnHand)
	assert.Equal(t, 20.0, entry.Received)
	assert.Equal(t, 8.0, entry.Dispensed)
	assert.Equal(t, 17.0, entry.FinalQuantity)
	assert.False(t, entry.IsNew)

	assert.Len(t, out.Entries, 2)
	assert.Empty(t, out.Diagnostics)
}

func TestReconcile_IsIdempotentAndOrderIndependent(t *testing.T) {
	first := reconcile(t, domain.CategoryProfessional, professionalSources())
	second := reconcile(t, domain.CategoryProfessional, professionalSources())
	assert.Equal(t, first, second)

	reversed := professionalSources()
	reversed[0], reversed[2] = reversed[2], reversed[0]
	assert.Equal(t, first, reconcile(t, domain.CategoryProfessional, reversed))
}

func TestReconcile_CanonicalOrder(t *testing.T) {
	out := reconcile(t, domain.CategoryProfessional, []ledger.Source{{
		Kind: domain.SourceOnHand,
		Table: ledger.Table{
			Header: []string{"약품명", "약품코드", "개수"},
			Rows: [][]string{
				{"b", "2", "1"},
				{"a", "9", "1"},
				{"b", "10", "1"},
				{"a", "1", "1"},
			},
		},
	}})

	keys := make([]string, 0, len(out.Entries))
	for _, e := range out.Entries {
		keys = append(keys, e.String())
	}
	assert.Equal(t, []string{"a::1", "a::9", "b::10", "b::2"}, keys)
}

func TestReconcile_CodeNormalizationCollapsesKeys(t *testing.T) {
	out := reconcile(t, domain.CategoryProfessional, []ledger.Source{{
		Kind: domain.SourceOnHand,
		Table: ledger.Table{
			Header: []string{"약품명", "약품코드", "개수"},
			Rows: [][]string{
				{"tylenol", "123", "1"},
				{" tylenol ", "123.0", "2"},
				{"tylenol", "0123.00", "1,000"},
			},
		},
	}})

	require.Len(t, out.Entries, 1)
	assert.Equal(t, domain.ProductKey{Name: "tylenol", Code: "123"}, out.Entries[0].ProductKey)
	assert.Equal(t, 1003.0, out.Entries[0].OnHand)
}

func TestReconcile_UnionCompleteness(t *testing.T) {
	out := reconcile(t, domain.CategoryProfessional, []ledger.Source{
		{
			Kind: domain.SourceOnHand,
			Table: ledger.Table{
				Header: []string{"약품명", "약품코드", "개수"},
				Rows:   [][]string{{"a", "1", "4"}},
			},
		},
		{
			Kind: domain.SourceDispensed,
			Table: ledger.Table{
				Header: []string{"약품명", "약품코드", "조제수량"},
				Rows:   [][]string{{"b", "2", "3"}, {"a", "1", "1"}},
			},
		},
		{
			Kind: domain.SourceIncoming,
			Table: ledger.Table{
				Header: []string{"약 품 명", "수량"},
				Rows:   [][]string{{"c", "6"}},
			},
		},
	})

	require.Len(t, out.Entries, 3)

	a, ok := out.Lookup(domain.ProductKey{Name: "a", Code: "1"})
	require.True(t, ok)
	assert.False(t, a.IsNew)
	assert.Equal(t, 3.0, a.FinalQuantity)

	b, ok := out.Lookup(domain.ProductKey{Name: "b", Code: "2"})
	require.True(t, ok)
	assert.True(t, b.IsNew)
	assert.Equal(t, -3.0, b.FinalQuantity)

	c, ok := out.Lookup(domain.ProductKey{Name: "c"})
	require.True(t, ok)
	assert.True(t, c.IsNew)
	assert.Equal(t, 6.0, c.Received)
	assert.Equal(t, 2, out.NewItems())

	for _, e := range out.Entries {
		assert.InDelta(t, e.OnHand+e.Received-e.Dispensed, e.FinalQuantity, 1e-9)
	}
}

func TestReconcile_NameOnlySourceJoinsEveryCodeWithThatName(t *testing.T) {
	out := reconcile(t, domain.CategoryProfessional, []ledger.Source{
		{
			Kind: domain.SourceOnHand,
			Table: ledger.Table{
				Header: []string{"약품명", "약품코드", "개수"},
				Rows:   [][]string{{"aspirin", "1", "1"}, {"aspirin", "2", "2"}},
			},
		},
		{
			Kind: domain.SourceIncoming,
			Table: ledger.Table{
				Header: []string{"약 품 명", "수량"},
				Rows:   [][]string{{"aspirin", "4"}, {"aspirin", "6"}},
			},
		},
	})

	require.Len(t, out.Entries, 2)
	for _, e := range out.Entries {
		assert.Equal(t, 10.0, e.Received, e.String())
	}
}

func TestReconcile_MalformedCellDegradesToZero(t *testing.T) {
	out := reconcile(t, domain.CategoryProfessional, []ledger.Source{{
		Kind: domain.SourceOnHand,
		Table: ledger.Table{
			Name:   "stock.csv",
			Header: []string{"약품명", "약품코드", "개수"},
			Rows: [][]string{
				{"a", "1", "abc"},
				{"b", "2", "7"},
			},
		},
	}})

	require.Len(t, out.Entries, 2)
	a, _ := out.Lookup(domain.ProductKey{Name: "a", Code: "1"})
	assert.Equal(t, 0.0, a.OnHand)

	require.Len(t, out.Diagnostics, 1)
	d := out.Diagnostics[0]
	assert.Equal(t, domain.DiagnosticParseWarning, d.Kind)
	assert.Equal(t, domain.SourceOnHand, d.Source)
	assert.Equal(t, "stock.csv", d.File)
	assert.Equal(t, 2, d.Row)
	assert.Equal(t, "개수", d.Column)
	assert.Equal(t, "abc", d.Value)
	assert.Equal(t, 1, out.Warnings())
}

func TestReconcile_DropsFooterAndSubtotalRows(t *testing.T) {
	out := reconcile(t, domain.CategoryProfessional, []ledger.Source{{
		Kind: domain.SourceOnHand,
		Table: ledger.Table{
			Header: []string{"no", "약품명", "약품코드", "개수"},
			Rows: [][]string{
				{"1", "a", "1", "2"},
				{"2", "  ", "2", "9"},
				{"3", "12345", "3", "9"},
				{"", "", "", ""},
				{"합계", "total", "", "11"},
				{"Infinity", "합계행", "", "99"},
				{"1.5", "subtotal", "", "7"},
				{"-1", "carried", "", "4"},
			},
		},
	}})

	require.Len(t, out.Entries, 1)
	assert.Equal(t, "a", out.Entries[0].Name)
	assert.Empty(t, out.Diagnostics)
}

func TestReconcile_MissingNameColumn(t *testing.T) {
	r, err := ledger.NewReconciler(domain.CategoryProfessional)
	require.NoError(t, err)

	_, err = r.Reconcile(context.Background(), []ledger.Source{{
		Kind: domain.SourceOnHand,
		Table: ledger.Table{
			Name:   "stock.csv",
			Header: []string{"코드", "개수"},
			Rows:   [][]string{{"1", "2"}},
		},
	}})

	var ingestErr *domain.IngestionError
	require.True(t, errors.As(err, &ingestErr))
	assert.Equal(t, "약품명", ingestErr.Column)
	assert.Equal(t, domain.SourceOnHand, ingestErr.Source)
}

func TestReconcile_DuplicateKindRejected(t *testing.T) {
	sources := professionalSources()
	sources = append(sources, sources[0])

	r, err := ledger.NewReconciler(domain.CategoryProfessional)
	require.NoError(t, err)
	out, err := r.Reconcile(context.Background(), sources)
	assert.Nil(t, out)

	var ingestErr *domain.IngestionError
	assert.True(t, errors.As(err, &ingestErr))
}

func TestReconcile_QuantityFallsBackToLastColumn(t *testing.T) {
	out := reconcile(t, domain.CategoryGeneral, []ledger.Source{{
		Kind: domain.SourceIncoming,
		Table: ledger.Table{
			Header: []string{"no", "상품명", "단가", "입고량"},
			Rows: [][]string{
				{"1", "vitamin c", "5000", "12"},
				{"2", "vitamin c", "5000", "3"},
			},
		},
	}})

	require.Len(t, out.Entries, 1)
	assert.Equal(t, domain.ProductKey{Name: "vitamin c"}, out.Entries[0].ProductKey)
	assert.Equal(t, 15.0, out.Entries[0].Received)
}

func TestReconcile_FallbackRejectsIdentityColumns(t *testing.T) {
	tests := []struct {
		name     string
		category domain.Category
		kind     domain.SourceKind
		header   []string
		row      []string
		column   string
	}{
		{
			name:     "general barcode is last",
			category: domain.CategoryGeneral,
			kind:     domain.SourceIncoming,
			header:   []string{"상품명", "바코드"},
			row:      []string{"vitamin", "8806436001234"},
			column:   "수량",
		},
		{
			name:     "professional code is last",
			category: domain.CategoryProfessional,
			kind:     domain.SourceOnHand,
			header:   []string{"약품명", "약품코드"},
			row:      []string{"aspirin", "7"},
			column:   "재고합계",
		},
		{
			name:     "name only",
			category: domain.CategoryGeneral,
			kind:     domain.SourceDispensed,
			header:   []string{"no", "상품명"},
			row:      []string{"1", "vitamin"},
			column:   "수량",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ledger.NewReconciler(tt.category)
			require.NoError(t, err)

			out, err := r.Reconcile(context.Background(), []ledger.Source{{
				Kind:  tt.kind,
				Table: ledger.Table{Name: "export.csv", Header: tt.header, Rows: [][]string{tt.row}},
			}})
			assert.Nil(t, out)

			var ingestErr *domain.IngestionError
			require.True(t, errors.As(err, &ingestErr))
			assert.Equal(t, tt.kind, ingestErr.Source)
			assert.Equal(t, "export.csv", ingestErr.File)
			assert.Equal(t, tt.column, ingestErr.Column)
		})
	}
}

func TestReconcile_GeneralSkipsMetadataRow(t *testing.T) {
	out := reconcile(t, domain.CategoryGeneral, []ledger.Source{
		{
			Kind: domain.SourceOnHand,
			Table: ledger.Table{
				Header: []string{"상품명", "재고수량"},
				Rows: [][]string{
					{"단위", "EA"},
					{"vitamin c", "4"},
				},
			},
		},
		{
			Kind: domain.SourceDispensed,
			Table: ledger.Table{
				Header: []string{"no", "상품명", "수량"},
				Rows: [][]string{
					{"1", "vitamin c", "1"},
					{"합계", "", "1"},
				},
			},
		},
	})

	require.Len(t, out.Entries, 1)
	assert.Equal(t, 3.0, out.Entries[0].FinalQuantity)
	assert.Empty(t, out.Diagnostics)
}

func TestReconcile_NegativeStockDiagnostic(t *testing.T) {
	out := reconcile(t, domain.CategoryProfessional, []ledger.Source{
		{
			Kind: domain.SourceOnHand,
			Table: ledger.Table{
				Header: []string{"약품명", "약품코드", "개수"},
				Rows:   [][]string{{"a", "1", "2"}},
			},
		},
		{
			Kind: domain.SourceDispensed,
			Table: ledger.Table{
				Header: []string{"약품명", "약품코드", "조제수량"},
				Rows:   [][]string{{"a", "1", "5"}},
			},
		},
	})

	require.Len(t, out.Entries, 1)
	assert.Equal(t, -3.0, out.Entries[0].FinalQuantity)

	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, domain.DiagnosticNegativeStock, out.Diagnostics[0].Kind)
	assert.Equal(t, domain.ProductKey{Name: "a", Code: "1"}, out.Diagnostics[0].Key)
}

func TestReconcile_NoSources(t *testing.T) {
	out := reconcile(t, domain.CategoryGeneral, nil)
	assert.Empty(t, out.Entries)
	assert.Equal(t, domain.CategoryGeneral, out.Category)
}

func TestReconcile_CancelledContext(t *testing.T) {
	r, err := ledger.NewReconciler(domain.CategoryProfessional)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := r.Reconcile(ctx, professionalSources())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		raw       string
		value     float64
		defaulted bool
	}{
		{"12", 12, false},
		{" 1,234.5 ", 1234.5, false},
		{"-2", -2, false},
		{"", 0, true},
		{"abc", 0, true},
		{"NaN", 0, true},
		{"inf", 0, true},
	}
	for _, tc := range cases {
		got := ledger.ParseQuantity(tc.raw)
		assert.Equal(t, tc.value, got.Value, tc.raw)
		assert.Equal(t, tc.defaulted, got.Defaulted, tc.raw)
		if tc.defaulted {
			assert.NotEmpty(t, got.Reason, tc.raw)
		}
	}
}
