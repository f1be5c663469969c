package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadKey(t *testing.T) {
	at := time.Date(2025, 1, 2, 23, 30, 0, 0, time.UTC)

	a := storage.UploadKey(domain.CategoryGeneral, domain.SourceOnHand, "재고.XLSX", at)
	b := storage.UploadKey(domain.CategoryGeneral, domain.SourceOnHand, "재고.XLSX", at)

	assert.True(t, strings.HasPrefix(a, "uploads/general/20250102/"))
	assert.True(t, strings.HasSuffix(a, "_on_hand.xlsx"))
	assert.NotEqual(t, a, b)
}

func TestArchiver_ArchiveAndDownload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("상품명,수량\nvitamin c,2\n"), 0o644))

	store := storage.NewMemoryStorage()
	keys, err := storage.NewArchiver(store).Archive(ctx, domain.CategoryGeneral, []domain.UploadedFile{
		{Kind: domain.SourceDispensed, Filename: "sales.csv", Path: path},
	})
	require.NoError(t, err)
	require.Len(t, keys, 1)

	objects, err := store.ListObjects(ctx, storage.UploadPrefix(domain.CategoryGeneral))
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, keys[0], objects[0].Key)

	dest := filepath.Join(dir, "restored", "sales.csv")
	require.NoError(t, store.DownloadObject(ctx, keys[0], dest))
	restored, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "상품명,수량\nvitamin c,2\n", string(restored))
}

func TestArchiver_MissingFile(t *testing.T) {
	_, err := storage.NewArchiver(nil).Archive(context.Background(), domain.CategoryGeneral, []domain.UploadedFile{
		{Kind: domain.SourceOnHand, Filename: "stock.csv", Path: filepath.Join(t.TempDir(), "missing.csv")},
	})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
