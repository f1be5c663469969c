package replenishment_test

import (
	"testing"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/replenishment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile(required, units float64) domain.NeedsProfile {
	return domain.NeedsProfile{RequiredQuantity: required, Location: "A-1", UnitsPerPackage: units}
}

func TestTier_Boundaries(t *testing.T) {
	c := replenishment.NewClassifier()

	cases := map[float64]domain.ShortageTier{
		9:  domain.TierCritical,
		10: domain.TierWarning,
		12: domain.TierWarning,
		13: domain.TierSufficient,
		-1: domain.TierCritical,
	}
	for onHand, want := range cases {
		assert.Equal(t, want, c.Tier(onHand, 10), "on_hand=%v", onHand)
	}
}

func TestTier_CustomBuffer(t *testing.T) {
	c := replenishment.NewClassifier(replenishment.WithBuffer(0))
	assert.Equal(t, domain.TierSufficient, c.Tier(10, 10))

	c = replenishment.NewClassifier(replenishment.WithBuffer(-5))
	assert.Equal(t, replenishment.DefaultBuffer, c.Buffer())
}

func TestClassify_Scenario(t *testing.T) {
	c := replenishment.NewClassifier()
	key := domain.ProductKey{Name: "ibuprofen", Code: "100"}

	v := c.Classify(key, 5, profile(15, 5))

	assert.Equal(t, key, v.ProductKey)
	assert.Equal(t, 3.0, v.RequiredPackages)
	assert.Equal(t, 1.0, v.AvailablePackages)
	assert.Equal(t, 2.0, v.OrderPackages)
	assert.Equal(t, domain.TierCritical, v.Tier)
	assert.Equal(t, "심각", v.TierLabel)
	assert.Equal(t, "A-1", v.Location)
	assert.False(t, v.Defaulted.UnitsPerPackage)
	assert.False(t, v.Negative)
}

func TestClassify_PackageSizeGuard(t *testing.T) {
	c := replenishment.NewClassifier()
	key := domain.ProductKey{Name: "a", Code: "1"}

	for _, units := range []float64{0, -4} {
		v := c.Classify(key, 4, profile(8, units))
		assert.Equal(t, 1.0, v.UnitsPerPackage)
		assert.True(t, v.Defaulted.UnitsPerPackage)
		assert.Equal(t, 8.0, v.RequiredPackages)
		assert.Equal(t, 4.0, v.AvailablePackages)
		assert.Equal(t, 4.0, v.OrderPackages)
	}
}

func TestClassify_DefaultProfile(t *testing.T) {
	c := replenishment.NewClassifier()
	v := c.Classify(domain.ProductKey{Name: "a"}, 12, domain.DefaultNeeds().Profile())

	assert.Equal(t, 10.0, v.RequiredQuantity)
	assert.Equal(t, "unassigned", v.Location)
	assert.Equal(t, 1.0, v.UnitsPerPackage)
	assert.True(t, v.Defaulted.Any())
	assert.Equal(t, domain.TierWarning, v.Tier)

	diags := replenishment.DefaultDiagnostics([]domain.ReplenishmentView{v})
	require.Len(t, diags, 1)
	assert.Equal(t, domain.DiagnosticConfigDefault, diags[0].Kind)
}

func TestClassifyEntry_UsesFinalQuantityAndFlagsNegative(t *testing.T) {
	c := replenishment.NewClassifier()
	entry := domain.NewLedgerEntry(domain.ProductKey{Name: "a", Code: "1"}, 2, 0, 5)

	v := c.ClassifyEntry(entry, profile(10, 1))
	assert.Equal(t, -3.0, v.OnHand)
	assert.True(t, v.Negative)
	assert.Equal(t, domain.TierCritical, v.Tier)
}

func TestClassifyAll_SortedAndLowStock(t *testing.T) {
	c := replenishment.NewClassifier()
	items := []domain.InventoryItem{
		{ProductKey: domain.ProductKey{Name: "c", Code: "1"}, OnHand: 50, Needs: profile(10, 1)},
		{ProductKey: domain.ProductKey{Name: "a", Code: "2"}, OnHand: 11, Needs: profile(10, 1)},
		{ProductKey: domain.ProductKey{Name: "a", Code: "1"}, OnHand: 1, Needs: profile(10, 1)},
		{ProductKey: domain.ProductKey{Name: "b", Code: "1"}, OnHand: -2, Needs: profile(10, 1)},
	}

	views := c.ClassifyAll(items)
	require.Len(t, views, 4)
	assert.Equal(t, "a::1", views[0].String())
	assert.Equal(t, "a::2", views[1].String())
	assert.Equal(t, "b::1", views[2].String())
	assert.Equal(t, "c::1", views[3].String())

	low := replenishment.LowStock(views)
	require.Len(t, low, 3)
	for _, v := range low {
		assert.True(t, v.Tier.IsShort())
	}

	summary := replenishment.Summarize(domain.CategoryProfessional, views)
	assert.Equal(t, domain.InventorySummary{
		Category:   domain.CategoryProfessional,
		Total:      4,
		Critical:   2,
		Warning:    1,
		Sufficient: 1,
		Negative:   1,
	}, summary)
}
