package ledger

import (
	"strings"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
)

// Column aliases of a needs import sheet. The product columns also accept the
// export headers of both categories so an inventory export can be annotated in place.
var (
	needsNameColumns     = []string{"약 이름", "약품명", "상품명", "name"}
	needsCodeColumns     = []string{"약 코드", "약품코드", "바코드", "code"}
	needsRequiredColumns = []string{"필요 재고", "need", "required_quantity"}
	needsLocationColumns = []string{"위치", "location"}
	needsUnitsColumns    = []string{"통당 수량", "unitcount", "units_per_package"}
)

// ParseNeeds reads needs profile rows from an import sheet. Blank cells leave the
// field untouched; invalid values are reported as diagnostics and skipped.
func ParseNeeds(table Table) ([]domain.NeedsRecord, []domain.Diagnostic, error) {
	name := findColumn(table.Header, needsNameColumns...)
	if name < 0 {
		return nil, nil, &domain.IngestionError{
			File:   table.Name,
			Column: needsNameColumns[0],
			Reason: "required name column is missing",
		}
	}
	code := findColumn(table.Header, needsCodeColumns...)
	required := findColumn(table.Header, needsRequiredColumns...)
	location := findColumn(table.Header, needsLocationColumns...)
	units := findColumn(table.Header, needsUnitsColumns...)
	if required < 0 && location < 0 && units < 0 {
		return nil, nil, &domain.IngestionError{
			File:   table.Name,
			Column: needsRequiredColumns[0],
			Reason: "no needs column found",
		}
	}

	var (
		records []domain.NeedsRecord
		diags   []domain.Diagnostic
	)
	for i, row := range table.Rows {
		rowNum := i + 2
		key := domain.NewProductKey(cell(row, name), cell(row, code))
		if key.Name == "" {
			continue
		}

		warn := func(column, value, msg string) {
			diags = append(diags, domain.Diagnostic{
				Kind:    domain.DiagnosticParseWarning,
				File:    table.Name,
				Row:     rowNum,
				Column:  column,
				Value:   value,
				Key:     key,
				Message: msg,
			})
		}

		var update domain.NeedsUpdate
		if raw := strings.TrimSpace(cell(row, required)); raw != "" {
			q := ParseQuantity(raw)
			switch {
			case q.Defaulted:
				warn(table.Header[required], raw, "required quantity is not a number")
			case q.Value < 0:
				warn(table.Header[required], raw, "required quantity must be >= 0")
			default:
				v := q.Value
				update.RequiredQuantity = &v
			}
		}
		if raw := strings.TrimSpace(cell(row, location)); raw != "" {
			update.Location = &raw
		}
		if raw := strings.TrimSpace(cell(row, units)); raw != "" {
			q := ParseQuantity(raw)
			switch {
			case q.Defaulted:
				warn(table.Header[units], raw, "units per package is not a number")
			case q.Value <= 0:
				warn(table.Header[units], raw, "units per package must be > 0")
			default:
				v := q.Value
				update.UnitsPerPackage = &v
			}
		}

		if !update.IsEmpty() {
			records = append(records, domain.NeedsRecord{Key: key, Update: update})
		}
	}
	return records, diags, nil
}
