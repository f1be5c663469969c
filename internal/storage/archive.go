package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pharmacheck/inventory/backend-go/internal/domain"
)

const uploadsPrefix = "uploads"

// UploadKey builds a unique object key for a raw source upload,
// e.g. uploads/general/20250102/<uuid>_on_hand.xlsx.
func UploadKey(category domain.Category, kind domain.SourceKind, filename string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%s/%s/%s_%s%s",
		uploadsPrefix, category, at.UTC().Format("20060102"), uuid.NewString(), kind, ext)
}

// UploadPrefix lists archived uploads of one category.
func UploadPrefix(category domain.Category) string {
	return fmt.Sprintf("%s/%s/", uploadsPrefix, category)
}

// Archiver copies raw uploads into object storage.
type Archiver struct {
	store ObjectStorage
	now   func() time.Time
}

func NewArchiver(store ObjectStorage) *Archiver {
	if store == nil {
		store = NoopStorage{}
	}
	return &Archiver{store: store, now: time.Now}
}

// Archive uploads every file and returns the object keys in input order.
func (a *Archiver) Archive(ctx context.Context, category domain.Category, files []domain.UploadedFile) ([]string, error) {
	keys := make([]string, 0, len(files))
	at := a.now()
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return keys, fmt.Errorf("failed reading %s: %w", f.Filename, err)
		}
		key := UploadKey(category, f.Kind, f.Filename, at)
		if err := a.store.UploadObject(ctx, key, data); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
