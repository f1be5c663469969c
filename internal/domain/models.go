// backend-go/internal/domain/models.go
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category selects the export schema family a product belongs to.
type Category string

const (
	CategoryProfessional Category = "professional"
	CategoryGeneral      Category = "general"
)

// Categories lists every supported category in a stable order.
var Categories = []Category{CategoryProfessional, CategoryGeneral}

// ParseCategory validates a category coming from a query string or CLI flag.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("type must be professional or general, got %q", raw)
	}
	return c, nil
}

func (c Category) Valid() bool {
	return c == CategoryProfessional || c == CategoryGeneral
}

// SourceKind tags a tabular export with the quantity it contributes to the ledger.
type SourceKind string

const (
	SourceOnHand    SourceKind = "on_hand"
	SourceIncoming  SourceKind = "incoming"
	SourceDispensed SourceKind = "dispensed"
)

// SourceKinds is the canonical processing order of sources.
var SourceKinds = []SourceKind{SourceOnHand, SourceIncoming, SourceDispensed}

// ParseSourceKind accepts the canonical names plus the upload form aliases.
func ParseSourceKind(raw string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on_hand", "onhand", "stock":
		return SourceOnHand, nil
	case "incoming", "purchase", "received":
		return SourceIncoming, nil
	case "dispensed", "sales", "sold":
		return SourceDispensed, nil
	}
	return "", fmt.Errorf("unknown source kind %q", raw)
}

// LedgerEntry is the reconciled quantity state of one product.
type LedgerEntry struct {
	ProductKey
	OnHand        float64 `json:"on_hand"`
	Received      float64 `json:"received"`
	Dispensed     float64 `json:"dispensed"`
	FinalQuantity float64 `json:"final_quantity"`
	IsNew         bool    `json:"is_new"`
}

// NewLedgerEntry derives FinalQuantity and IsNew from the three aggregates.
// Negative final quantities are kept as-is.
func NewLedgerEntry(key ProductKey, onHand, received, dispensed float64) LedgerEntry {
	return LedgerEntry{
		ProductKey:    key,
		OnHand:        onHand,
		Received:      received,
		Dispensed:     dispensed,
		FinalQuantity: onHand + received - dispensed,
		IsNew:         onHand == 0 && (received > 0 || dispensed > 0),
	}
}

// StockLedger is the output of one reconciliation run. Entries are sorted by name, then code.
type StockLedger struct {
	Category    Category      `json:"category"`
	Entries     []LedgerEntry `json:"entries"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
}

// Lookup returns the entry for key, if present.
func (l *StockLedger) Lookup(key ProductKey) (LedgerEntry, bool) {
	for _, e := range l.Entries {
		if e.ProductKey == key {
			return e, true
		}
	}
	return LedgerEntry{}, false
}

// Warnings counts parse warnings among the diagnostics.
func (l *StockLedger) Warnings() int {
	n := 0
	for _, d := range l.Diagnostics {
		if d.Kind == DiagnosticParseWarning {
			n++
		}
	}
	return n
}

// NewItems counts entries flagged as new.
func (l *StockLedger) NewItems() int {
	n := 0
	for _, e := range l.Entries {
		if e.IsNew {
			n++
		}
	}
	return n
}

// NeedsDefaults holds the values substituted when no profile is configured.
type NeedsDefaults struct {
	RequiredQuantity float64
	Location         string
	UnitsPerPackage  float64
}

// DefaultNeeds returns the documented policy defaults.
func DefaultNeeds() NeedsDefaults {
	return NeedsDefaults{
		RequiredQuantity: 10,
		Location:         "unassigned",
		UnitsPerPackage:  1,
	}
}

// Profile builds a fully defaulted profile.
func (d NeedsDefaults) Profile() NeedsProfile {
	return NeedsProfile{
		RequiredQuantity: d.RequiredQuantity,
		Location:         d.Location,
		UnitsPerPackage:  d.UnitsPerPackage,
		Defaulted: DefaultedFields{
			RequiredQuantity: true,
			Location:         true,
			UnitsPerPackage:  true,
		},
	}
}

// Resolve builds a profile from optionally stored fields, defaulting the missing ones.
func (d NeedsDefaults) Resolve(required *float64, location *string, units *float64) NeedsProfile {
	return d.Profile().Apply(NeedsUpdate{
		RequiredQuantity: required,
		Location:         location,
		UnitsPerPackage:  units,
	})
}

// DefaultedFields marks which profile fields came from defaults rather than configuration.
type DefaultedFields struct {
	RequiredQuantity bool `json:"required_quantity"`
	Location         bool `json:"location"`
	UnitsPerPackage  bool `json:"units_per_package"`
}

func (d DefaultedFields) Any() bool {
	return d.RequiredQuantity || d.Location || d.UnitsPerPackage
}

// NeedsProfile is the per-product replenishment configuration.
type NeedsProfile struct {
	RequiredQuantity float64         `json:"required_quantity"`
	Location         string          `json:"location"`
	UnitsPerPackage  float64         `json:"units_per_package"`
	Defaulted        DefaultedFields `json:"defaulted"`
}

// Apply overlays the set fields of u onto p.
func (p NeedsProfile) Apply(u NeedsUpdate) NeedsProfile {
	if u.RequiredQuantity != nil {
		p.RequiredQuantity = *u.RequiredQuantity
		p.Defaulted.RequiredQuantity = false
	}
	if u.Location != nil {
		p.Location = *u.Location
		p.Defaulted.Location = false
	}
	if u.UnitsPerPackage != nil {
		p.UnitsPerPackage = *u.UnitsPerPackage
		p.Defaulted.UnitsPerPackage = false
	}
	return p
}

// NeedsUpdate is a partial profile update; nil fields are left untouched.
type NeedsUpdate struct {
	RequiredQuantity *float64 `json:"need,omitempty"`
	Location         *string  `json:"location,omitempty"`
	UnitsPerPackage  *float64 `json:"unitCount,omitempty"`
}

func (u NeedsUpdate) IsEmpty() bool {
	return u.RequiredQuantity == nil && u.Location == nil && u.UnitsPerPackage == nil
}

// Validate rejects values that would break the replenishment arithmetic.
func (u NeedsUpdate) Validate() error {
	if u.RequiredQuantity != nil && *u.RequiredQuantity < 0 {
		return fmt.Errorf("%w: required quantity must be >= 0", ErrInvalidNeeds)
	}
	if u.UnitsPerPackage != nil && *u.UnitsPerPackage <= 0 {
		return fmt.Errorf("%w: units per package must be > 0", ErrInvalidNeeds)
	}
	if u.Location != nil && strings.TrimSpace(*u.Location) == "" {
		return fmt.Errorf("%w: location must not be blank", ErrInvalidNeeds)
	}
	return nil
}

// NeedsRecord is one row of a bulk needs import.
type NeedsRecord struct {
	Key    ProductKey
	Update NeedsUpdate
}

// InventoryItem is the persisted on-hand count joined with its needs profile.
type InventoryItem struct {
	ProductKey
	OnHand    float64      `json:"on_hand"`
	Needs     NeedsProfile `json:"needs"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ReplenishmentView is derived on every read and never stored.
type ReplenishmentView struct {
	ProductKey
	OnHand            float64         `json:"on_hand"`
	RequiredQuantity  float64         `json:"required_quantity"`
	Location          string          `json:"location"`
	UnitsPerPackage   float64         `json:"units_per_package"`
	Defaulted         DefaultedFields `json:"defaulted"`
	RequiredPackages  float64         `json:"required_packages"`
	AvailablePackages float64         `json:"available_packages"`
	OrderPackages     float64         `json:"order_packages"`
	Tier              ShortageTier    `json:"tier"`
	TierLabel         string          `json:"tier_label"`
	Negative          bool            `json:"negative"`
}

// UploadedFile represents an uploaded export saved to local disk.
type UploadedFile struct {
	Kind     SourceKind
	Filename string
	Path     string
	Size     int64
}

// ReconcileResult summarizes a committed reconciliation run.
type ReconcileResult struct {
	RunID       int64        `json:"run_id,omitempty"`
	Category    Category     `json:"category"`
	Entries     int          `json:"entries"`
	NewItems    int          `json:"new_items"`
	Warnings    int          `json:"warnings"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	ProcessedAt time.Time    `json:"processed_at"`
}

// InventorySummary counts products per shortage tier for one category.
type InventorySummary struct {
	Category   Category `json:"category"`
	Total      int      `json:"total"`
	Critical   int      `json:"critical"`
	Warning    int      `json:"warning"`
	Sufficient int      `json:"sufficient"`
	Negative   int      `json:"negative"`
}
