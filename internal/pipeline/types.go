package pipeline

import (
	"context"
	"time"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
)

// LedgerCommitter persists the on-hand quantities of a reconciled ledger.
type LedgerCommitter interface {
	UpsertLedger(ctx context.Context, ledger *domain.StockLedger) error
}

// RunRecorder tracks reconciliation runs and their per-file jobs.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *ReconciliationRun) error
	UpdateRun(ctx context.Context, run *ReconciliationRun) error
	CreateFileJob(ctx context.Context, job *FileJob) error
	UpdateFileJob(ctx context.Context, job *FileJob) error
}

// RunHistory reads back recorded runs.
type RunHistory interface {
	GetRun(ctx context.Context, id int64) (*ReconciliationRun, error)
	ListRecentRuns(ctx context.Context, category domain.Category, limit int) ([]*ReconciliationRun, error)
	GetFileJobsByRunID(ctx context.Context, runID int64) ([]*FileJob, error)
}

// Observer receives the outcome of every run, e.g. for metrics.
type Observer interface {
	ObserveRun(run *ReconciliationRun, elapsed time.Duration)
}

// Config holds configuration for a reconciliation worker.
type Config struct {
	WorkerCount   int           // Number of files read concurrently
	OutputDir     string        // Directory for ledger CSV exports; empty disables export
	RetryAttempts int           // Attempts per file read before the run fails
	RetryBackoff  time.Duration // Backoff duration between read attempts
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:   3,
		OutputDir:     "",
		RetryAttempts: 2,
		RetryBackoff:  500 * time.Millisecond,
	}
}

// Trigger names what started a run.
type Trigger string

const (
	TriggerUpload Trigger = "upload"
	TriggerCLI    Trigger = "cli"
	TriggerDrive  Trigger = "drive"
)

// RunStatus represents the current state of a reconciliation run
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// FileJobStatus represents the state of a single source file
type FileJobStatus string

const (
	FileStatusQueued     FileJobStatus = "queued"
	FileStatusProcessing FileJobStatus = "processing"
	FileStatusCompleted  FileJobStatus = "completed"
	FileStatusFailed     FileJobStatus = "failed"
)

// ReconciliationRun tracks a single reconciliation of one category.
type ReconciliationRun struct {
	ID             int64           `db:"id" json:"id"`
	Category       domain.Category `db:"category" json:"category"`
	Trigger        Trigger         `db:"triggered_by" json:"trigger"`
	Status         RunStatus       `db:"status" json:"status"`
	TotalFiles     int             `db:"total_files" json:"total_files"`
	ProcessedFiles int             `db:"processed_files" json:"processed_files"`
	Entries        int             `db:"entries" json:"entries"`
	NewItems       int             `db:"new_items" json:"new_items"`
	Warnings       int             `db:"warnings" json:"warnings"`
	StartedAt      time.Time       `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	ErrorMessage   string          `db:"error_message" json:"error_message,omitempty"`
}

// FileJob tracks the reading of a single source file.
type FileJob struct {
	ID           int64             `db:"id" json:"id"`
	RunID        int64             `db:"run_id" json:"run_id"`
	Kind         domain.SourceKind `db:"source_kind" json:"kind"`
	FilePath     string            `db:"file_path" json:"file_path"`
	Status       FileJobStatus     `db:"status" json:"status"`
	Rows         int               `db:"row_count" json:"rows"`
	ErrorMessage string            `db:"error_message" json:"error_message,omitempty"`
	ProcessedAt  *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	RetryCount   int               `db:"retry_count" json:"retry_count"`
}

// Result is the outcome of a successful run.
type Result struct {
	Run        *ReconciliationRun
	Ledger     *domain.StockLedger
	ExportPath string
}

// Summary converts a result into the response shape returned to callers.
func (r *Result) Summary() domain.ReconcileResult {
	processedAt := r.Run.StartedAt
	if r.Run.CompletedAt != nil {
		processedAt = *r.Run.CompletedAt
	}
	return domain.ReconcileResult{
		RunID:       r.Run.ID,
		Category:    r.Ledger.Category,
		Entries:     len(r.Ledger.Entries),
		NewItems:    r.Ledger.NewItems(),
		Warnings:    r.Ledger.Warnings(),
		Diagnostics: r.Ledger.Diagnostics,
		ProcessedAt: processedAt,
	}
}
