package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pharmacheck/inventory/backend-go/internal/domain"
)

// Repository handles database operations for reconciliation run tracking
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new run repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun creates a new reconciliation run record
func (r *Repository) CreateRun(ctx context.Context, run *ReconciliationRun) error {
	query := `
		INSERT INTO reconciliation_runs (
			category, triggered_by, status, total_files,
			processed_files, entries, new_items, warnings, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	return r.db.QueryRowxContext(
		ctx, query,
		run.Category, run.Trigger, run.Status, run.TotalFiles,
		run.ProcessedFiles, run.Entries, run.NewItems, run.Warnings, run.StartedAt,
	).Scan(&run.ID)
}

// UpdateRun updates an existing reconciliation run
func (r *Repository) UpdateRun(ctx context.Context, run *ReconciliationRun) error {
	query := `
		UPDATE reconciliation_runs
		SET status = $1, processed_files = $2, entries = $3, new_items = $4,
		    warnings = $5, completed_at = $6, error_message = $7
		WHERE id = $8
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.ProcessedFiles, run.Entries, run.NewItems,
		run.Warnings, run.CompletedAt, run.ErrorMessage, run.ID,
	)
	return err
}

// GetRun retrieves a reconciliation run by ID
func (r *Repository) GetRun(ctx context.Context, id int64) (*ReconciliationRun, error) {
	query := `
		SELECT id, category, triggered_by, status, total_files, processed_files,
		       entries, new_items, warnings, started_at, completed_at, error_message
		FROM reconciliation_runs
		WHERE id = $1
	`

	run := &ReconciliationRun{}
	err := r.db.GetContext(ctx, run, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRecentRuns returns the latest runs of a category, newest first
func (r *Repository) ListRecentRuns(ctx context.Context, category domain.Category, limit int) ([]*ReconciliationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, category, triggered_by, status, total_files, processed_files,
		       entries, new_items, warnings, started_at, completed_at, error_message
		FROM reconciliation_runs
		WHERE category = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2
	`

	var runs []*ReconciliationRun
	if err := r.db.SelectContext(ctx, &runs, query, category, limit); err != nil {
		return nil, err
	}
	return runs, nil
}

// CreateFileJob creates a new file job record
func (r *Repository) CreateFileJob(ctx context.Context, job *FileJob) error {
	query := `
		INSERT INTO reconciliation_file_jobs (
			run_id, source_kind, file_path, status, error_message
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	return r.db.QueryRowxContext(
		ctx, query,
		job.RunID, job.Kind, job.FilePath, job.Status, job.ErrorMessage,
	).Scan(&job.ID)
}

// UpdateFileJob updates an existing file job
func (r *Repository) UpdateFileJob(ctx context.Context, job *FileJob) error {
	query := `
		UPDATE reconciliation_file_jobs
		SET status = $1, row_count = $2, error_message = $3, processed_at = $4, retry_count = $5
		WHERE id = $6
	`

	_, err := r.db.ExecContext(
		ctx, query,
		job.Status, job.Rows, job.ErrorMessage, job.ProcessedAt, job.RetryCount, job.ID,
	)
	return err
}

// GetFileJobsByRunID retrieves all file jobs for a run
func (r *Repository) GetFileJobsByRunID(ctx context.Context, runID int64) ([]*FileJob, error) {
	query := `
		SELECT id, run_id, source_kind, file_path, status, row_count,
		       error_message, processed_at, retry_count
		FROM reconciliation_file_jobs
		WHERE run_id = $1
		ORDER BY id
	`

	var jobs []*FileJob
	if err := r.db.SelectContext(ctx, &jobs, query, runID); err != nil {
		return nil, err
	}
	return jobs, nil
}

var (
	_ RunRecorder = (*Repository)(nil)
	_ RunHistory  = (*Repository)(nil)
	_ RunRecorder = (*MemoryRecorder)(nil)
	_ RunHistory  = (*MemoryRecorder)(nil)
)

// NoopRecorder discards run tracking.
type NoopRecorder struct{}

func (NoopRecorder) CreateRun(context.Context, *ReconciliationRun) error { return nil }
func (NoopRecorder) UpdateRun(context.Context, *ReconciliationRun) error { return nil }
func (NoopRecorder) CreateFileJob(context.Context, *FileJob) error       { return nil }
func (NoopRecorder) UpdateFileJob(context.Context, *FileJob) error       { return nil }

// MemoryRecorder keeps run tracking in process. Stored values are copies.
type MemoryRecorder struct {
	mu     sync.Mutex
	nextID int64
	runs   map[int64]ReconciliationRun
	jobs   map[int64]FileJob
}

// NewMemoryRecorder creates an empty in-process recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		runs: make(map[int64]ReconciliationRun),
		jobs: make(map[int64]FileJob),
	}
}

func (m *MemoryRecorder) CreateRun(_ context.Context, run *ReconciliationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	run.ID = m.nextID
	m.runs[run.ID] = *run
	return nil
}

func (m *MemoryRecorder) UpdateRun(_ context.Context, run *ReconciliationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return domain.ErrNotFound
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *MemoryRecorder) CreateFileJob(_ context.Context, job *FileJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	job.ID = m.nextID
	m.jobs[job.ID] = *job
	return nil
}

func (m *MemoryRecorder) UpdateFileJob(_ context.Context, job *FileJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *MemoryRecorder) GetRun(_ context.Context, id int64) (*ReconciliationRun, error) {
	run, ok := m.Run(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRecentRuns returns the latest runs of a category, newest first.
func (m *MemoryRecorder) ListRecentRuns(_ context.Context, category domain.Category, limit int) ([]*ReconciliationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ReconciliationRun
	for id := m.nextID; id >= 1 && len(out) < limit; id-- {
		if run, ok := m.runs[id]; ok && run.Category == category {
			out = append(out, &run)
		}
	}
	return out, nil
}

func (m *MemoryRecorder) GetFileJobsByRunID(_ context.Context, runID int64) ([]*FileJob, error) {
	jobs := m.Jobs(runID)
	out := make([]*FileJob, 0, len(jobs))
	for i := range jobs {
		out = append(out, &jobs[i])
	}
	return out, nil
}

// Run returns a stored run.
func (m *MemoryRecorder) Run(id int64) (ReconciliationRun, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	return run, ok
}

// Jobs returns the stored jobs of a run ordered by ID.
func (m *MemoryRecorder) Jobs(runID int64) []FileJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FileJob
	for id := int64(1); id <= m.nextID; id++ {
		if job, ok := m.jobs[id]; ok && job.RunID == runID {
			out = append(out, job)
		}
	}
	return out
}

// Since returns runs started at or after t, in ID order.
func (m *MemoryRecorder) Since(t time.Time) []ReconciliationRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ReconciliationRun
	for id := int64(1); id <= m.nextID; id++ {
		if run, ok := m.runs[id]; ok && !run.StartedAt.Before(t) {
			out = append(out, run)
		}
	}
	return out
}
