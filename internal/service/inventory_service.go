package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pharmacheck/inventory/backend-go/internal/cache"
	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/ledger"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline/replenishment"
	"github.com/pharmacheck/inventory/backend-go/internal/repository"
	"github.com/pharmacheck/inventory/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

// searchAllKeyword returns the full listing when used as name or code.
const searchAllKeyword = "all"

type InventoryService struct {
	ledger       repository.LedgerStore
	needs        repository.NeedsProfileStore
	classifier   *replenishment.Classifier
	orchestrator *pipeline.Orchestrator
	cache        cache.InventoryCache
	recent       cache.RecentSearches
	archiver     *storage.Archiver
	runs         pipeline.RunHistory
}

type Option func(*InventoryService)

func WithCache(c cache.InventoryCache) Option {
	return func(s *InventoryService) { s.cache = c }
}

func WithRecentSearches(r cache.RecentSearches) Option {
	return func(s *InventoryService) { s.recent = r }
}

func WithArchiver(a *storage.Archiver) Option {
	return func(s *InventoryService) { s.archiver = a }
}

func WithRunHistory(h pipeline.RunHistory) Option {
	return func(s *InventoryService) { s.runs = h }
}

func NewInventoryService(
	ledgerStore repository.LedgerStore,
	needsStore repository.NeedsProfileStore,
	classifier *replenishment.Classifier,
	orchestrator *pipeline.Orchestrator,
	opts ...Option,
) *InventoryService {
	s := &InventoryService{
		ledger:       ledgerStore,
		needs:        needsStore,
		classifier:   classifier,
		orchestrator: orchestrator,
		cache:        cache.NewNoopInventoryCache(),
		recent:       cache.NewMemoryRecentSearches(cache.DefaultRecentSearchLimit),
		archiver:     storage.NewArchiver(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every product of a category with its replenishment view.
func (s *InventoryService) List(ctx context.Context, category domain.Category) ([]domain.ReplenishmentView, error) {
	return s.cached(ctx, cache.InventoryQuery{Category: category}, func() ([]domain.InventoryItem, error) {
		return s.ledger.List(ctx, category)
	})
}

// Search matches name first, then code, as case-insensitive substrings.
// The keyword "all" in either field returns the full listing; no keyword returns nothing.
func (s *InventoryService) Search(ctx context.Context, category domain.Category, name, code string) ([]domain.ReplenishmentView, error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)

	switch {
	case name == searchAllKeyword || code == searchAllKeyword:
		return s.List(ctx, category)
	case name != "":
		return s.cached(ctx, cache.InventoryQuery{Category: category, Name: name}, func() ([]domain.InventoryItem, error) {
			return s.ledger.SearchByName(ctx, category, name)
		})
	case code != "":
		return s.cached(ctx, cache.InventoryQuery{Category: category, Code: code}, func() ([]domain.InventoryItem, error) {
			return s.ledger.SearchByCode(ctx, category, code)
		})
	}
	return []domain.ReplenishmentView{}, nil
}

// Autocomplete returns distinct product names containing partial.
func (s *InventoryService) Autocomplete(ctx context.Context, category domain.Category, partial string, limit int) ([]string, error) {
	names, err := s.ledger.Names(ctx, category, strings.TrimSpace(partial), limit)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// LowStock returns only Critical and Warning products.
func (s *InventoryService) LowStock(ctx context.Context, category domain.Category) ([]domain.ReplenishmentView, error) {
	views, err := s.List(ctx, category)
	if err != nil {
		return nil, err
	}
	return replenishment.LowStock(views), nil
}

// Summary counts products per shortage tier.
func (s *InventoryService) Summary(ctx context.Context, category domain.Category) (domain.InventorySummary, error) {
	views, err := s.List(ctx, category)
	if err != nil {
		return domain.InventorySummary{}, err
	}
	return replenishment.Summarize(category, views), nil
}

// Item returns the view of a single product.
func (s *InventoryService) Item(ctx context.Context, category domain.Category, key domain.ProductKey) (domain.ReplenishmentView, error) {
	item, err := s.ledger.Get(ctx, category, key)
	if err != nil {
		return domain.ReplenishmentView{}, err
	}
	return s.classifier.ClassifyItem(item), nil
}

// UpdateInfo applies a partial needs update. Products without stock records may be configured ahead of their first upload.
func (s *InventoryService) UpdateInfo(ctx context.Context, category domain.Category, key domain.ProductKey, update domain.NeedsUpdate) (domain.NeedsProfile, error) {
	if key.Name == "" {
		return domain.NeedsProfile{}, fmt.Errorf("%w: name is required", domain.ErrInvalidNeeds)
	}
	if err := update.Validate(); err != nil {
		return domain.NeedsProfile{}, err
	}

	profile, err := s.needs.Put(ctx, category, key, update)
	if err != nil {
		return domain.NeedsProfile{}, err
	}
	s.invalidate(ctx, category)

	log.Info().
		Str("category", string(category)).
		Str("key", key.String()).
		Msg("inventory: needs profile updated")
	return profile, nil
}

// ImportNeeds loads needs profiles from a CSV or XLSX sheet.
func (s *InventoryService) ImportNeeds(ctx context.Context, category domain.Category, path string) (int, []domain.Diagnostic, error) {
	table, err := ledger.ReadFile(path)
	if err != nil {
		return 0, nil, err
	}
	records, diags, err := ledger.ParseNeeds(table)
	if err != nil {
		return 0, nil, err
	}
	if err := s.needs.PutMany(ctx, category, records); err != nil {
		return 0, diags, err
	}
	s.invalidate(ctx, category)

	for _, d := range diags {
		log.Warn().Str("category", string(category)).Msg(d.String())
	}
	return len(records), diags, nil
}

// Upload reconciles freshly uploaded exports of one category and commits the
// resulting on-hand quantities.
func (s *InventoryService) Upload(ctx context.Context, category domain.Category, files []domain.UploadedFile) (*domain.ReconcileResult, error) {
	if len(files) == 0 {
		return nil, domain.ErrNoSources
	}
	worker, ok := s.orchestrator.Worker(category)
	if !ok {
		return nil, fmt.Errorf("no worker configured for category %s", category)
	}

	byKind := make(map[domain.SourceKind]string, len(files))
	for _, f := range files {
		if _, dup := byKind[f.Kind]; dup {
			return nil, &domain.IngestionError{Source: f.Kind, File: f.Filename, Reason: "source uploaded twice"}
		}
		byKind[f.Kind] = f.Path
	}

	if keys, err := s.archiver.Archive(ctx, category, files); err != nil {
		log.Warn().Err(err).Str("category", string(category)).Msg("inventory: upload archive failed")
	} else if len(keys) > 0 {
		log.Debug().Strs("keys", keys).Msg("inventory: uploads archived")
	}

	res, err := worker.Run(ctx, byKind, pipeline.TriggerUpload)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, category)

	summary := res.Summary()
	diags := make([]domain.Diagnostic, 0, len(summary.Diagnostics))
	diags = append(diags, summary.Diagnostics...)
	summary.Diagnostics = append(diags, s.defaultDiagnostics(ctx, res.Ledger)...)
	return &summary, nil
}

// defaultDiagnostics reports the reconciled products that still run on default needs.
func (s *InventoryService) defaultDiagnostics(ctx context.Context, l *domain.StockLedger) []domain.Diagnostic {
	views, err := s.List(ctx, l.Category)
	if err != nil {
		log.Warn().Err(err).Msg("inventory: could not load views for default diagnostics")
		return nil
	}
	inLedger := make(map[domain.ProductKey]struct{}, len(l.Entries))
	for _, e := range l.Entries {
		inLedger[e.ProductKey] = struct{}{}
	}
	relevant := views[:0:0]
	for _, v := range views {
		if _, ok := inLedger[v.ProductKey]; ok {
			relevant = append(relevant, v)
		}
	}
	return replenishment.DefaultDiagnostics(relevant)
}

// Reconciled is called after a run committed outside of Upload, e.g. by the drive watcher.
func (s *InventoryService) Reconciled(ctx context.Context, category domain.Category) {
	s.invalidate(ctx, category)
}

func (s *InventoryService) AddRecentSearch(ctx context.Context, category domain.Category, keyword string) error {
	return s.recent.Add(ctx, category, keyword)
}

func (s *InventoryService) RecentSearches(ctx context.Context, category domain.Category) ([]string, error) {
	items, err := s.recent.List(ctx, category)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

// Runs lists recent reconciliation runs of a category.
func (s *InventoryService) Runs(ctx context.Context, category domain.Category, limit int) ([]*pipeline.ReconciliationRun, error) {
	if s.runs == nil {
		return []*pipeline.ReconciliationRun{}, nil
	}
	runs, err := s.runs.ListRecentRuns(ctx, category, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []*pipeline.ReconciliationRun{}
	}
	return runs, nil
}

// RunDetail is a run with its per-file jobs.
type RunDetail struct {
	*pipeline.ReconciliationRun
	Files []*pipeline.FileJob `json:"files"`
}

func (s *InventoryService) Run(ctx context.Context, id int64) (*RunDetail, error) {
	if s.runs == nil {
		return nil, domain.ErrNotFound
	}
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	jobs, err := s.runs.GetFileJobsByRunID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{ReconciliationRun: run, Files: jobs}, nil
}

func (s *InventoryService) cached(ctx context.Context, query cache.InventoryQuery, load func() ([]domain.InventoryItem, error)) ([]domain.ReplenishmentView, error) {
	if views, ok, err := s.cache.GetViews(ctx, query); err == nil && ok {
		return views, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("inventory: cache get failed")
	}

	items, err := load()
	if err != nil {
		return nil, err
	}
	views := s.classifier.ClassifyAll(items)

	if err := s.cache.SetViews(ctx, query, views); err != nil {
		log.Warn().Err(err).Msg("inventory: cache set failed")
	}
	return views, nil
}

func (s *InventoryService) invalidate(ctx context.Context, category domain.Category) {
	if err := s.cache.InvalidateCategory(ctx, category); err != nil {
		log.Warn().Err(err).Str("category", string(category)).Msg("inventory: cache invalidate failed")
	}
}
