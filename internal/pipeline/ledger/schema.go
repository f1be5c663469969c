package ledger

import (
	"fmt"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
)

// Schema describes the column naming convention of one product category.
// Every alias list is matched against the header ignoring case and whitespace.
type Schema struct {
	Category domain.Category
	Name     []string
	Code     []string
	Sequence []string
	Quantity map[domain.SourceKind][]string

	// MetadataRowKinds lists the sources whose first data row is a units row.
	MetadataRowKinds []domain.SourceKind
	// DropNumericNames discards rows whose name is only digits (subtotal lines).
	DropNumericNames bool
}

var professionalSchema = Schema{
	Category: domain.CategoryProfessional,
	Name:     []string{"약품명", "약 품 명"},
	Code:     []string{"약품코드"},
	Sequence: []string{"no"},
	Quantity: map[domain.SourceKind][]string{
		domain.SourceOnHand:    {"재고합계", "개수"},
		domain.SourceIncoming:  {"수량"},
		domain.SourceDispensed: {"조제수량", "수량"},
	},
	DropNumericNames: true,
}

var generalSchema = Schema{
	Category: domain.CategoryGeneral,
	Name:     []string{"상품명"},
	Code:     []string{"바코드"},
	Sequence: []string{"no"},
	Quantity: map[domain.SourceKind][]string{
		domain.SourceOnHand:    {"재고수량"},
		domain.SourceIncoming:  {"수량"},
		domain.SourceDispensed: {"수량"},
	},
	MetadataRowKinds: []domain.SourceKind{domain.SourceOnHand},
}

// SchemaFor returns the column convention of a category.
func SchemaFor(c domain.Category) (Schema, error) {
	switch c {
	case domain.CategoryProfessional:
		return professionalSchema, nil
	case domain.CategoryGeneral:
		return generalSchema, nil
	}
	return Schema{}, fmt.Errorf("no schema for category %q", c)
}

func (s Schema) skipsMetadataRow(kind domain.SourceKind) bool {
	for _, k := range s.MetadataRowKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// columnMap is the resolved position of every column a source needs. -1 means absent.
type columnMap struct {
	name     int
	code     int
	sequence int
	quantity int
	// quantityFallback is set when no alias matched and the last column was taken.
	quantityFallback bool
	unknown          []string
}

// resolve maps a source header onto the schema before any row is read.
func (s Schema) resolve(kind domain.SourceKind, file string, header []string) (columnMap, error) {
	aliases, ok := s.Quantity[kind]
	if !ok {
		return columnMap{}, &domain.IngestionError{Source: kind, File: file, Reason: "unknown source kind"}
	}

	cols := columnMap{
		name:     findColumn(header, s.Name...),
		code:     findColumn(header, s.Code...),
		sequence: findColumn(header, s.Sequence...),
		quantity: findColumn(header, aliases...),
	}
	if cols.name < 0 {
		return columnMap{}, &domain.IngestionError{
			Source: kind,
			File:   file,
			Column: s.Name[0],
			Reason: "required name column is missing",
		}
	}
	if cols.quantity < 0 {
		cols.quantity = len(header) - 1
		cols.quantityFallback = true
		// the last column must not be one of the identity columns
		if cols.quantity == cols.name || cols.quantity == cols.code || cols.quantity == cols.sequence {
			return columnMap{}, &domain.IngestionError{
				Source: kind,
				File:   file,
				Column: aliases[0],
				Reason: "quantity column is missing",
			}
		}
	}

	known := map[int]bool{cols.name: true, cols.code: true, cols.sequence: true, cols.quantity: true}
	for i, h := range header {
		if !known[i] && normalizeColumnName(h) != "" {
			cols.unknown = append(cols.unknown, h)
		}
	}
	return cols, nil
}
