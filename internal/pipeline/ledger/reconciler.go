package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Reconciler turns the raw exports of one category into a StockLedger.
// It holds no state between runs.
type Reconciler struct {
	schema Schema
}

// NewReconciler creates a reconciler for the column convention of category.
func NewReconciler(category domain.Category) (*Reconciler, error) {
	schema, err := SchemaFor(category)
	if err != nil {
		return nil, err
	}
	return &Reconciler{schema: schema}, nil
}

// NewReconcilerWithSchema creates a reconciler for a custom column convention.
func NewReconcilerWithSchema(schema Schema) *Reconciler {
	return &Reconciler{schema: schema}
}

// Category returns the category this reconciler was built for.
func (r *Reconciler) Category() domain.Category {
	return r.schema.Category
}

// Reconcile aggregates zero to three sources, at most one per kind, into a ledger.
// Either the full ledger is returned or an error; never a partial result.
func (r *Reconciler) Reconcile(ctx context.Context, sources []Source) (*domain.StockLedger, error) {
	seen := make(map[domain.SourceKind]bool, len(sources))
	for _, src := range sources {
		if seen[src.Kind] {
			return nil, &domain.IngestionError{Source: src.Kind, File: src.Table.Name, Reason: "source kind supplied more than once"}
		}
		seen[src.Kind] = true
	}

	aggs := make([]*aggregate, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, warnings, err := r.records(src)
			if err != nil {
				return err
			}
			aggs[i] = aggregateRecords(src.Kind, records, warnings)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge order is fixed by kind so that output does not depend on input order.
	sort.SliceStable(aggs, func(i, j int) bool {
		return kindOrder(aggs[i].kind) < kindOrder(aggs[j].kind)
	})

	entries := merge(aggs)

	ledger := &domain.StockLedger{
		Category:    r.schema.Category,
		Entries:     entries,
		Diagnostics: []domain.Diagnostic{},
	}
	for _, a := range aggs {
		ledger.Diagnostics = append(ledger.Diagnostics, a.warnings...)
	}
	for _, e := range entries {
		if e.FinalQuantity < 0 {
			ledger.Diagnostics = append(ledger.Diagnostics, domain.Diagnostic{
				Kind:    domain.DiagnosticNegativeStock,
				Key:     e.ProductKey,
				Value:   fmt.Sprintf("%g", e.FinalQuantity),
				Message: "dispensed exceeds on-hand plus received",
			})
		}
	}

	logger.Log.Debug().
		Str("category", string(r.schema.Category)).
		Int("sources", len(sources)).
		Int("entries", len(entries)).
		Int("diagnostics", len(ledger.Diagnostics)).
		Msg("ledger reconciled")

	return ledger, nil
}

// records resolves the source header and returns every surviving data row.
func (r *Reconciler) records(src Source) ([]rawRecord, []domain.Diagnostic, error) {
	t := src.Table
	cols, err := r.schema.resolve(src.Kind, t.Name, t.Header)
	if err != nil {
		return nil, nil, err
	}
	if cols.quantityFallback {
		logger.Log.Debug().
			Str("source", string(src.Kind)).
			Str("file", t.Name).
			Str("column", cell(t.Header, cols.quantity)).
			Msg("no quantity column matched, using last column")
	}
	if len(cols.unknown) > 0 {
		logger.Log.Debug().
			Str("source", string(src.Kind)).
			Str("file", t.Name).
			Strs("columns", cols.unknown).
			Msg("ignoring unmapped columns")
	}

	start := 0
	if r.schema.skipsMetadataRow(src.Kind) && len(t.Rows) > 0 {
		start = 1
	}

	hasCode := cols.code >= 0
	quantityColumn := cell(t.Header, cols.quantity)
	records := make([]rawRecord, 0, len(t.Rows))
	var warnings []domain.Diagnostic
	for i := start; i < len(t.Rows); i++ {
		record := t.Rows[i]
		// header is physical row 1
		row := i + 2
		if isBlankRow(record) {
			continue
		}
		if cols.sequence >= 0 && !isSequenceNumber(cell(record, cols.sequence)) {
			continue
		}
		name := domain.NormalizeName(cell(record, cols.name))
		if name == "" {
			continue
		}
		if r.schema.DropNumericNames && isDigits(name) {
			continue
		}

		key := domain.ProductKey{Name: name}
		if hasCode {
			key.Code = domain.NormalizeCode(cell(record, cols.code))
		}
		raw := cell(record, cols.quantity)
		q := ParseQuantity(raw)
		if q.Defaulted {
			warnings = append(warnings, domain.Diagnostic{
				Kind:    domain.DiagnosticParseWarning,
				Source:  src.Kind,
				File:    t.Name,
				Row:     row,
				Column:  quantityColumn,
				Value:   raw,
				Key:     key,
				Message: q.Reason,
			})
		}
		records = append(records, rawRecord{Key: key, HasCode: hasCode, Quantity: q, Row: row})
	}
	return records, warnings, nil
}

func aggregateRecords(kind domain.SourceKind, records []rawRecord, warnings []domain.Diagnostic) *aggregate {
	a := &aggregate{
		kind:     kind,
		totals:   make(map[domain.ProductKey]float64),
		warnings: warnings,
	}
	for _, rec := range records {
		if rec.HasCode {
			a.hasCode = true
		}
		a.totals[rec.Key] += rec.Quantity.Value
	}
	return a
}

type sums struct {
	onHand    float64
	received  float64
	dispensed float64
}

func (s *sums) add(kind domain.SourceKind, v float64) {
	switch kind {
	case domain.SourceOnHand:
		s.onHand += v
	case domain.SourceIncoming:
		s.received += v
	case domain.SourceDispensed:
		s.dispensed += v
	}
}

// merge unions the keys of every source. Name-only totals are attributed to each
// code-bearing key with the same name, or to a code-less key when none exists.
func merge(aggs []*aggregate) []domain.LedgerEntry {
	merged := make(map[domain.ProductKey]*sums)
	add := func(key domain.ProductKey, kind domain.SourceKind, v float64) {
		s, ok := merged[key]
		if !ok {
			s = &sums{}
			merged[key] = s
		}
		s.add(kind, v)
	}

	for _, a := range aggs {
		if !a.hasCode {
			continue
		}
		for key, v := range a.totals {
			add(key, a.kind, v)
		}
	}

	byName := make(map[string][]domain.ProductKey)
	for key := range merged {
		byName[key.Name] = append(byName[key.Name], key)
	}

	for _, a := range aggs {
		if a.hasCode {
			continue
		}
		for key, v := range a.totals {
			targets := byName[key.Name]
			if len(targets) == 0 {
				add(key, a.kind, v)
				continue
			}
			for _, t := range targets {
				add(t, a.kind, v)
			}
		}
	}

	entries := make([]domain.LedgerEntry, 0, len(merged))
	for key, s := range merged {
		entries = append(entries, domain.NewLedgerEntry(key, s.onHand, s.received, s.dispensed))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ProductKey.Less(entries[j].ProductKey)
	})
	return entries
}

func kindOrder(kind domain.SourceKind) int {
	for i, k := range domain.SourceKinds {
		if k == kind {
			return i
		}
	}
	return len(domain.SourceKinds)
}
