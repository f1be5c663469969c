package cache

import (
	"strings"
	"testing"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildInventoryKey(t *testing.T) {
	all := buildInventoryKey(InventoryQuery{Category: domain.CategoryGeneral})
	assert.Equal(t, "inventory:items:general:all", all)

	a := buildInventoryKey(InventoryQuery{Category: domain.CategoryProfessional, Name: "Aspirin"})
	b := buildInventoryKey(InventoryQuery{Category: domain.CategoryProfessional, Name: "aspirin"})
	c := buildInventoryKey(InventoryQuery{Category: domain.CategoryProfessional, Code: "aspirin"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, categoryKeyPrefix(domain.CategoryProfessional)))
}
