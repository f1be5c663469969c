package ledger

import "github.com/pharmacheck/inventory/backend-go/internal/domain"

// Table is a materialized tabular export: the header row plus every data row below it.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Source tags a table with the quantity it contributes to the ledger.
type Source struct {
	Kind  domain.SourceKind
	Table Table
}

// QuantityResult is the outcome of parsing one quantity cell.
// Defaulted is set when the cell could not be read and Value fell back to zero.
type QuantityResult struct {
	Value     float64
	Defaulted bool
	Reason    string
}

// rawRecord is one surviving data row after schema resolution and filtering.
type rawRecord struct {
	Key      domain.ProductKey
	HasCode  bool
	Quantity QuantityResult
	Row      int
}

// aggregate holds the per-key totals of a single source. Sources without a
// code column are keyed by name alone (empty code).
type aggregate struct {
	kind     domain.SourceKind
	hasCode  bool
	totals   map[domain.ProductKey]float64
	warnings []domain.Diagnostic
}
