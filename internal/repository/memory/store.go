// Package memory keeps inventory state in process. It is used when no database
// is configured and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/repository"
)

type stockRecord struct {
	onHand    float64
	updatedAt time.Time
}

type scopedKey struct {
	category domain.Category
	key      domain.ProductKey
}

// NeedsStore is an in-process NeedsProfileStore.
type NeedsStore struct {
	mu       sync.RWMutex
	defaults domain.NeedsDefaults
	profiles map[scopedKey]domain.NeedsUpdate
}

var _ repository.NeedsProfileStore = (*NeedsStore)(nil)

func NewNeedsStore(defaults domain.NeedsDefaults) *NeedsStore {
	return &NeedsStore{
		defaults: defaults,
		profiles: make(map[scopedKey]domain.NeedsUpdate),
	}
}

func (s *NeedsStore) Get(_ context.Context, category domain.Category, key domain.ProductKey) (domain.NeedsProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.profiles[scopedKey{category, key}]
	if !ok {
		return s.defaults.Profile(), false, nil
	}
	return s.resolve(stored), true, nil
}

func (s *NeedsStore) Put(_ context.Context, category domain.Category, key domain.ProductKey, update domain.NeedsUpdate) (domain.NeedsProfile, error) {
	if err := update.Validate(); err != nil {
		return domain.NeedsProfile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := s.merge(scopedKey{category, key}, update)
	return s.resolve(merged), nil
}

func (s *NeedsStore) PutMany(_ context.Context, category domain.Category, records []domain.NeedsRecord) error {
	for _, rec := range records {
		if err := rec.Update.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.merge(scopedKey{category, rec.Key}, rec.Update)
	}
	return nil
}

// merge must be called with s.mu held. Values are copied so callers may reuse their pointers.
func (s *NeedsStore) merge(k scopedKey, update domain.NeedsUpdate) domain.NeedsUpdate {
	stored := s.profiles[k]
	if update.RequiredQuantity != nil {
		v := *update.RequiredQuantity
		stored.RequiredQuantity = &v
	}
	if update.Location != nil {
		v := *update.Location
		stored.Location = &v
	}
	if update.UnitsPerPackage != nil {
		v := *update.UnitsPerPackage
		stored.UnitsPerPackage = &v
	}
	s.profiles[k] = stored
	return stored
}

func (s *NeedsStore) resolve(u domain.NeedsUpdate) domain.NeedsProfile {
	return s.defaults.Resolve(u.RequiredQuantity, u.Location, u.UnitsPerPackage)
}

func (s *NeedsStore) lookup(category domain.Category, key domain.ProductKey) domain.NeedsProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if stored, ok := s.profiles[scopedKey{category, key}]; ok {
		return s.resolve(stored)
	}
	return s.defaults.Profile()
}

// InventoryStore is an in-process LedgerStore joined with a NeedsStore.
type InventoryStore struct {
	mu    sync.RWMutex
	needs *NeedsStore
	stock map[scopedKey]stockRecord
	now   func() time.Time
}

var _ repository.LedgerStore = (*InventoryStore)(nil)

func NewInventoryStore(needs *NeedsStore) *InventoryStore {
	return &InventoryStore{
		needs: needs,
		stock: make(map[scopedKey]stockRecord),
		now:   time.Now,
	}
}

func (s *InventoryStore) Upsert(_ context.Context, category domain.Category, key domain.ProductKey, onHand float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[scopedKey{category, key}] = stockRecord{onHand: onHand, updatedAt: s.now()}
	return nil
}

func (s *InventoryStore) UpsertLedger(ctx context.Context, ledger *domain.StockLedger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, e := range ledger.Entries {
		s.stock[scopedKey{ledger.Category, e.ProductKey}] = stockRecord{onHand: e.FinalQuantity, updatedAt: now}
	}
	return nil
}

func (s *InventoryStore) List(_ context.Context, category domain.Category) ([]domain.InventoryItem, error) {
	return s.filter(category, func(domain.ProductKey) bool { return true }), nil
}

func (s *InventoryStore) SearchByName(_ context.Context, category domain.Category, substr string) ([]domain.InventoryItem, error) {
	return s.filter(category, func(k domain.ProductKey) bool {
		return repository.ContainsFold(k.Name, substr)
	}), nil
}

func (s *InventoryStore) SearchByCode(_ context.Context, category domain.Category, substr string) ([]domain.InventoryItem, error) {
	return s.filter(category, func(k domain.ProductKey) bool {
		return repository.ContainsFold(k.Code, substr)
	}), nil
}

func (s *InventoryStore) Get(_ context.Context, category domain.Category, key domain.ProductKey) (domain.InventoryItem, error) {
	s.mu.RLock()
	rec, ok := s.stock[scopedKey{category, key}]
	s.mu.RUnlock()
	if !ok {
		return domain.InventoryItem{}, domain.ErrNotFound
	}
	return s.item(category, key, rec), nil
}

func (s *InventoryStore) Names(_ context.Context, category domain.Category, partial string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = repository.DefaultNamesLimit
	}
	s.mu.RLock()
	seen := make(map[string]struct{})
	for k := range s.stock {
		if k.category == category && repository.ContainsFold(k.key.Name, partial) {
			seen[k.key.Name] = struct{}{}
		}
	}
	s.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func (s *InventoryStore) filter(category domain.Category, match func(domain.ProductKey) bool) []domain.InventoryItem {
	s.mu.RLock()
	type hit struct {
		key domain.ProductKey
		rec stockRecord
	}
	var hits []hit
	for k, rec := range s.stock {
		if k.category == category && match(k.key) {
			hits = append(hits, hit{k.key, rec})
		}
	}
	s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, s.item(category, h.key, h.rec))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Less(items[j].ProductKey) })
	return items
}

func (s *InventoryStore) item(category domain.Category, key domain.ProductKey, rec stockRecord) domain.InventoryItem {
	return domain.InventoryItem{
		ProductKey: key,
		OnHand:     rec.onHand,
		Needs:      s.needs.lookup(category, key),
		UpdatedAt:  rec.updatedAt,
	}
}
