package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/ledger"
	"github.com/pharmacheck/inventory/backend-go/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Worker runs reconciliations for one category. Runs on the same worker are
// serialized, so the last run to commit wins.
type Worker struct {
	reconciler *ledger.Reconciler
	config     Config
	recorder   RunRecorder
	committer  LedgerCommitter
	observer   Observer
	mu         sync.Mutex
}

// WorkerOption configures optional collaborators of a Worker.
type WorkerOption func(*Worker)

// WithCommitter persists on-hand quantities after every successful run.
func WithCommitter(c LedgerCommitter) WorkerOption {
	return func(w *Worker) { w.committer = c }
}

// WithRecorder tracks runs and file jobs.
func WithRecorder(r RunRecorder) WorkerOption {
	return func(w *Worker) { w.recorder = r }
}

// WithObserver reports finished runs.
func WithObserver(o Observer) WorkerOption {
	return func(w *Worker) { w.observer = o }
}

// NewWorker creates a worker for the category of reconciler.
func NewWorker(reconciler *ledger.Reconciler, config Config, opts ...WorkerOption) *Worker {
	w := &Worker{
		reconciler: reconciler,
		config:     config,
		recorder:   NoopRecorder{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Category returns the category this worker reconciles.
func (w *Worker) Category() domain.Category {
	return w.reconciler.Category()
}

// Run reads the given source files, reconciles them and commits the ledger.
// The ledger is committed only when every file was read successfully.
func (w *Worker) Run(ctx context.Context, files map[domain.SourceKind]string, trigger Trigger) (*Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()
	category := w.Category()

	logger.Log.Info().
		Str("category", string(category)).
		Str("trigger", string(trigger)).
		Int("files", len(files)).
		Msg("starting reconciliation")

	run := &ReconciliationRun{
		Category:   category,
		Trigger:    trigger,
		Status:     StatusPending,
		TotalFiles: len(files),
		StartedAt:  startTime,
	}
	if err := w.recorder.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create reconciliation run: %w", err)
	}

	jobs := make([]*FileJob, 0, len(files))
	for _, kind := range domain.SourceKinds {
		path, ok := files[kind]
		if !ok {
			continue
		}
		job := &FileJob{
			RunID:    run.ID,
			Kind:     kind,
			FilePath: path,
			Status:   FileStatusQueued,
		}
		if err := w.recorder.CreateFileJob(ctx, job); err != nil {
			return nil, w.fail(ctx, run, startTime, fmt.Errorf("failed to create file job: %w", err))
		}
		jobs = append(jobs, job)
	}
	if len(jobs) != len(files) {
		return nil, w.fail(ctx, run, startTime, fmt.Errorf("unknown source kind in %v", files))
	}

	run.Status = StatusProcessing
	if err := w.recorder.UpdateRun(ctx, run); err != nil {
		return nil, w.fail(ctx, run, startTime, fmt.Errorf("failed to update reconciliation run: %w", err))
	}

	sources, err := w.readFilesParallel(ctx, run, jobs)
	if err != nil {
		return nil, w.fail(ctx, run, startTime, err)
	}

	out, err := w.reconciler.Reconcile(ctx, sources)
	if err != nil {
		return nil, w.fail(ctx, run, startTime, fmt.Errorf("reconciliation failed: %w", err))
	}
	for _, d := range out.Diagnostics {
		logger.Log.Warn().
			Str("category", string(category)).
			Str("kind", string(d.Kind)).
			Msg(d.String())
	}

	if w.committer != nil {
		if err := w.committer.UpsertLedger(ctx, out); err != nil {
			return nil, w.fail(ctx, run, startTime, fmt.Errorf("failed to commit ledger: %w", err))
		}
	}

	result := &Result{Run: run, Ledger: out}
	if w.config.OutputDir != "" {
		path, err := ExportLedger(w.config.OutputDir, out, startTime)
		if err != nil {
			// export failures do not fail a committed run
			logger.Log.Error().Err(err).Str("category", string(category)).Msg("failed to export ledger")
		} else {
			result.ExportPath = path
		}
	}

	now := time.Now()
	run.Status = StatusCompleted
	run.Entries = len(out.Entries)
	run.NewItems = out.NewItems()
	run.Warnings = out.Warnings()
	run.CompletedAt = &now
	if err := w.recorder.UpdateRun(ctx, run); err != nil {
		logger.Log.Error().Err(err).Int64("run_id", run.ID).Msg("failed to complete reconciliation run")
	}
	w.observe(run, startTime)

	logger.Log.Info().
		Str("category", string(category)).
		Int64("run_id", run.ID).
		Int("entries", run.Entries).
		Int("new_items", run.NewItems).
		Int("warnings", run.Warnings).
		Dur("elapsed", time.Since(startTime)).
		Msg("reconciliation completed")

	return result, nil
}

// readFilesParallel reads source files with a bounded pool. The first failure cancels the rest.
func (w *Worker) readFilesParallel(ctx context.Context, run *ReconciliationRun, jobs []*FileJob) ([]ledger.Source, error) {
	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	sources := make([]ledger.Source, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)
	var statsMu sync.Mutex
	for i, job := range jobs {
		g.Go(func() error {
			table, err := w.readFile(gctx, job)
			if err != nil {
				return err
			}
			sources[i] = ledger.Source{Kind: job.Kind, Table: table}

			statsMu.Lock()
			run.ProcessedFiles++
			statsMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

// readFile reads a single source, retrying transient I/O failures.
func (w *Worker) readFile(ctx context.Context, job *FileJob) (ledger.Table, error) {
	job.Status = FileStatusProcessing
	if err := w.recorder.UpdateFileJob(ctx, job); err != nil {
		return ledger.Table{}, err
	}

	var (
		table ledger.Table
		err   error
	)
	attempts := max(w.config.RetryAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			break
		}
		table, err = w.validateAndRead(job.FilePath)
		if err == nil || !isRetryable(err) {
			break
		}
		if attempt < attempts {
			job.RetryCount++
			logger.Log.Warn().Err(err).
				Str("file", job.FilePath).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Msg("retrying source file")
			select {
			case <-ctx.Done():
			case <-time.After(w.config.RetryBackoff):
			}
		}
	}
	if err != nil {
		return ledger.Table{}, w.markJobFailed(ctx, job, err)
	}

	now := time.Now()
	job.Status = FileStatusCompleted
	job.Rows = len(table.Rows)
	job.ProcessedAt = &now
	if err := w.recorder.UpdateFileJob(ctx, job); err != nil {
		return ledger.Table{}, err
	}
	logger.Log.Debug().
		Str("kind", string(job.Kind)).
		Str("file", job.FilePath).
		Int("rows", job.Rows).
		Msg("source file read")
	return table, nil
}

func (w *Worker) validateAndRead(path string) (ledger.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ledger.Table{}, fmt.Errorf("cannot stat source file %s: %w", path, err)
	}
	if info.IsDir() {
		return ledger.Table{}, &domain.FormatError{File: path, Reason: "path is a directory, expected file"}
	}
	return ledger.ReadFile(path)
}

// isRetryable reports whether a read failure may succeed on another attempt.
func isRetryable(err error) bool {
	var formatErr *domain.FormatError
	if errors.As(err, &formatErr) {
		return false
	}
	return !errors.Is(err, os.ErrNotExist) && !errors.Is(err, context.Canceled)
}

func (w *Worker) markJobFailed(ctx context.Context, job *FileJob, err error) error {
	job.Status = FileStatusFailed
	job.ErrorMessage = err.Error()
	if uerr := w.recorder.UpdateFileJob(context.WithoutCancel(ctx), job); uerr != nil {
		logger.Log.Error().Err(uerr).Int64("job_id", job.ID).Msg("failed to update file job status")
	}
	return err
}

// fail marks the run failed and returns err unchanged.
func (w *Worker) fail(ctx context.Context, run *ReconciliationRun, startTime time.Time, err error) error {
	now := time.Now()
	run.Status = StatusFailed
	run.ErrorMessage = err.Error()
	run.CompletedAt = &now
	// the caller's context may already be cancelled
	if uerr := w.recorder.UpdateRun(context.WithoutCancel(ctx), run); uerr != nil {
		logger.Log.Error().Err(uerr).Int64("run_id", run.ID).Msg("failed to mark reconciliation run failed")
	}
	w.observe(run, startTime)

	logger.Log.Error().Err(err).
		Str("category", string(run.Category)).
		Int64("run_id", run.ID).
		Msg("reconciliation failed")
	return err
}

func (w *Worker) observe(run *ReconciliationRun, startTime time.Time) {
	if w.observer != nil {
		w.observer.ObserveRun(run, time.Since(startTime))
	}
}
