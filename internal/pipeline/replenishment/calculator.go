package replenishment

import (
	"math"
	"sort"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
)

// DefaultBuffer is the margin above the required quantity that still counts as a warning.
const DefaultBuffer = 3.0

// Classifier derives ordering quantities and a shortage tier for a product.
// It is safe for concurrent use.
type Classifier struct {
	buffer   float64
	defaults domain.NeedsDefaults
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithBuffer overrides the warning margin. Negative values are ignored.
func WithBuffer(buffer float64) Option {
	return func(c *Classifier) {
		if buffer >= 0 {
			c.buffer = buffer
		}
	}
}

// WithDefaults overrides the values used when a product has no needs profile.
func WithDefaults(d domain.NeedsDefaults) Option {
	return func(c *Classifier) {
		c.defaults = d
	}
}

// NewClassifier creates a classifier with the documented buffer and defaults.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		buffer:   DefaultBuffer,
		defaults: domain.DefaultNeeds(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !(c.defaults.UnitsPerPackage > 0) {
		c.defaults.UnitsPerPackage = 1
	}
	return c
}

// Buffer returns the configured warning margin.
func (c *Classifier) Buffer() float64 {
	return c.buffer
}

// Defaults returns the profile substituted for unconfigured products.
func (c *Classifier) Defaults() domain.NeedsDefaults {
	return c.defaults
}

// Tier classifies on-hand stock against the required quantity.
func (c *Classifier) Tier(onHand, required float64) domain.ShortageTier {
	switch {
	case onHand < required:
		return domain.TierCritical
	case onHand < required+c.buffer:
		return domain.TierWarning
	default:
		return domain.TierSufficient
	}
}

// Classify joins an on-hand count with its needs profile.
// A non-positive package size is replaced by the default and flagged.
func (c *Classifier) Classify(key domain.ProductKey, onHand float64, profile domain.NeedsProfile) domain.ReplenishmentView {
	units := profile.UnitsPerPackage
	defaulted := profile.Defaulted
	if !(units > 0) || math.IsInf(units, 0) {
		units = c.defaults.UnitsPerPackage
		defaulted.UnitsPerPackage = true
	}

	required := profile.RequiredQuantity
	tier := c.Tier(onHand, required)

	requiredPackages := required / units
	availablePackages := onHand / units

	return domain.ReplenishmentView{
		ProductKey:        key,
		OnHand:            onHand,
		RequiredQuantity:  required,
		Location:          profile.Location,
		UnitsPerPackage:   units,
		Defaulted:         defaulted,
		RequiredPackages:  requiredPackages,
		AvailablePackages: availablePackages,
		OrderPackages:     requiredPackages - availablePackages,
		Tier:              tier,
		TierLabel:         tier.Label(),
		Negative:          onHand < 0,
	}
}

// ClassifyItem classifies a persisted on-hand record.
func (c *Classifier) ClassifyItem(item domain.InventoryItem) domain.ReplenishmentView {
	return c.Classify(item.ProductKey, item.OnHand, item.Needs)
}

// ClassifyEntry classifies a freshly reconciled ledger entry using its final quantity.
func (c *Classifier) ClassifyEntry(entry domain.LedgerEntry, profile domain.NeedsProfile) domain.ReplenishmentView {
	return c.Classify(entry.ProductKey, entry.FinalQuantity, profile)
}

// ClassifyAll classifies every item and returns the views in canonical order.
func (c *Classifier) ClassifyAll(items []domain.InventoryItem) []domain.ReplenishmentView {
	views := make([]domain.ReplenishmentView, 0, len(items))
	for _, item := range items {
		views = append(views, c.ClassifyItem(item))
	}
	SortViews(views)
	return views
}

// SortViews orders views by name, then code.
func SortViews(views []domain.ReplenishmentView) {
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].ProductKey.Less(views[j].ProductKey)
	})
}

// LowStock keeps only critical and warning views, preserving order.
func LowStock(views []domain.ReplenishmentView) []domain.ReplenishmentView {
	out := make([]domain.ReplenishmentView, 0, len(views))
	for _, v := range views {
		if v.Tier.IsShort() {
			out = append(out, v)
		}
	}
	return out
}

// Summarize counts views per tier.
func Summarize(category domain.Category, views []domain.ReplenishmentView) domain.InventorySummary {
	s := domain.InventorySummary{Category: category, Total: len(views)}
	for _, v := range views {
		switch v.Tier {
		case domain.TierCritical:
			s.Critical++
		case domain.TierWarning:
			s.Warning++
		case domain.TierSufficient:
			s.Sufficient++
		}
		if v.Negative {
			s.Negative++
		}
	}
	return s
}

// DefaultDiagnostics reports every view that fell back to at least one default.
func DefaultDiagnostics(views []domain.ReplenishmentView) []domain.Diagnostic {
	var out []domain.Diagnostic
	for _, v := range views {
		if !v.Defaulted.Any() {
			continue
		}
		out = append(out, domain.Diagnostic{
			Kind:    domain.DiagnosticConfigDefault,
			Key:     v.ProductKey,
			Message: "needs profile defaults applied",
		})
	}
	return out
}
