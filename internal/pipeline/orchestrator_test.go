package pipeline_test

import (
	"context"
	"testing"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyFilename(t *testing.T) {
	cases := []struct {
		name     string
		category domain.Category
		kind     domain.SourceKind
	}{
		{"전문약_재고_20250101.xlsx", domain.CategoryProfessional, domain.SourceOnHand},
		{"전문약 입고.csv", domain.CategoryProfessional, domain.SourceIncoming},
		{"조제내역.csv", domain.CategoryProfessional, domain.SourceDispensed},
		{"일반약_재고.xlsx", domain.CategoryGeneral, domain.SourceOnHand},
		{"일반약_매입.xlsx", domain.CategoryGeneral, domain.SourceIncoming},
		{"일반약_판매.xlsx", domain.CategoryGeneral, domain.SourceDispensed},
		{"/tmp/general_sales.CSV", domain.CategoryGeneral, domain.SourceDispensed},
	}
	for _, tc := range cases {
		category, kind, err := pipeline.ClassifyFilename(tc.name)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.category, category, tc.name)
		assert.Equal(t, tc.kind, kind, tc.name)
	}

	_, _, err := pipeline.ClassifyFilename("report.csv")
	assert.Error(t, err)
}

func TestGroup_RejectsDuplicateKinds(t *testing.T) {
	_, err := pipeline.Group([]string{"전문약_재고_1.csv", "전문약_재고_2.csv"})
	assert.Error(t, err)
}

func TestOrchestrator_RunsEachCategory(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "전문약_재고.csv", "약품명,약품코드,개수\nibuprofen,100,5\n"),
		writeFile(t, dir, "일반약_재고.csv", "상품명,재고수량\n단위,EA\nvitamin c,4\n"),
		writeFile(t, dir, "일반약_판매.csv", "no,상품명,수량\n1,vitamin c,1\n"),
	}

	pro, err := ledger.NewReconciler(domain.CategoryProfessional)
	require.NoError(t, err)
	gen, err := ledger.NewReconciler(domain.CategoryGeneral)
	require.NoError(t, err)
	o := pipeline.NewOrchestrator(
		pipeline.NewWorker(pro, pipeline.DefaultConfig()),
		pipeline.NewWorker(gen, pipeline.DefaultConfig()),
	)

	results, err := o.Run(context.Background(), files, pipeline.TriggerCLI)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Len(t, results[domain.CategoryProfessional].Ledger.Entries, 1)
	general := results[domain.CategoryGeneral].Ledger
	require.Len(t, general.Entries, 1)
	assert.Equal(t, 3.0, general.Entries[0].FinalQuantity)
}

func TestOrchestrator_MissingWorker(t *testing.T) {
	dir := t.TempDir()
	pro, err := ledger.NewReconciler(domain.CategoryProfessional)
	require.NoError(t, err)
	o := pipeline.NewOrchestrator(pipeline.NewWorker(pro, pipeline.DefaultConfig()))

	_, err = o.Run(context.Background(), []string{
		writeFile(t, dir, "일반약_재고.csv", "상품명,재고수량\n"),
	}, pipeline.TriggerCLI)
	assert.Error(t, err)
}
