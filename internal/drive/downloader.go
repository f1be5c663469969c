package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/ledger"
	"github.com/pharmacheck/inventory/backend-go/pkg/logger"
)

// DownloadOptions controls how exports are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader pulls pharmacy exports out of a Drive folder.
type Downloader struct {
	source FileSource
}

// NewDownloader creates a new Downloader.
func NewDownloader(source FileSource) *Downloader {
	return &Downloader{source: source}
}

type exportSlot struct {
	category domain.Category
	kind     domain.SourceKind
}

// Latest selects, for every category and source kind, the most recently
// modified supported export in files. Unrecognized names are skipped.
func Latest(files []*File) []*File {
	newest := make(map[exportSlot]*File)
	for _, f := range files {
		if !ledger.SupportedExtension(f.Name) {
			continue
		}
		category, kind, err := pipeline.ClassifyFilename(f.Name)
		if err != nil {
			logger.Log.Debug().Str("file", f.Name).Msg("skipping unrecognized export")
			continue
		}
		slot := exportSlot{category, kind}
		// RFC 3339 timestamps order lexically
		if cur, ok := newest[slot]; !ok || f.ModifiedTime > cur.ModifiedTime {
			newest[slot] = f
		}
	}

	out := make([]*File, 0, len(newest))
	for _, f := range newest {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DownloadExports downloads the latest export of every category and source kind
// into DownloadDir and returns the local paths.
func (d *Downloader) DownloadExports(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.source.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range Latest(files) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		localPath := filepath.Join(opts.DownloadDir, filepath.Base(f.Name))
		if err := d.download(ctx, f, localPath); err != nil {
			return nil, err
		}
		logger.Log.Info().Str("file", f.Name).Str("path", localPath).Msg("downloaded export")
		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}

func (d *Downloader) download(ctx context.Context, f *File, localPath string) error {
	tmp := localPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", tmp, err)
	}
	if err := d.source.DownloadFile(ctx, f.ID, out); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, localPath)
}

// Fingerprint identifies the current set of latest exports so that polling
// only triggers a run when something changed.
func Fingerprint(files []*File) string {
	parts := make([]string, 0, len(files))
	for _, f := range Latest(files) {
		parts = append(parts, f.ID+"@"+f.ModifiedTime)
	}
	return strings.Join(parts, ",")
}

// Watch polls the folder every interval and calls fn with freshly downloaded
// exports whenever the latest set changes. It returns when ctx is done.
func (d *Downloader) Watch(ctx context.Context, opts DownloadOptions, interval time.Duration, fn func(ctx context.Context, paths []string) error) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	var last string
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		files, err := d.source.ListFiles(ctx, opts.FolderID)
		if err != nil {
			logger.Log.Error().Err(err).Msg("drive poll failed")
		} else if fp := Fingerprint(files); fp != "" && fp != last {
			paths, err := d.DownloadExports(ctx, opts)
			if err != nil {
				logger.Log.Error().Err(err).Msg("drive download failed")
			} else if err := fn(ctx, paths); err != nil {
				logger.Log.Error().Err(err).Msg("reconciliation of drive exports failed")
			} else {
				last = fp
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
