package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	recentSearchesKeyPrefix  = "inventory:recent_searches"
	DefaultRecentSearchLimit = 10
)

// RecentSearches is a per-category most-recently-used keyword list.
// Repeated keywords move to the front; blank keywords are ignored.
type RecentSearches interface {
	Add(ctx context.Context, category domain.Category, keyword string) error
	List(ctx context.Context, category domain.Category) ([]string, error)
}

type redisRecentSearches struct {
	client *redis.Client
	limit  int
}

// NewRecentSearches stores the lists in redis, or in process when client is nil.
func NewRecentSearches(client *redis.Client, limit int) RecentSearches {
	if limit <= 0 {
		limit = DefaultRecentSearchLimit
	}
	if client == nil {
		return NewMemoryRecentSearches(limit)
	}
	return &redisRecentSearches{client: client, limit: limit}
}

func recentSearchesKey(category domain.Category) string {
	return recentSearchesKeyPrefix + ":" + string(category)
}

func (r *redisRecentSearches) Add(ctx context.Context, category domain.Category, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}

	key := recentSearchesKey(category)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, key, 0, keyword)
		pipe.LPush(ctx, key, keyword)
		pipe.LTrim(ctx, key, 0, int64(r.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis recent search update failed: %w", err)
	}
	return nil
}

func (r *redisRecentSearches) List(ctx context.Context, category domain.Category) ([]string, error) {
	items, err := r.client.LRange(ctx, recentSearchesKey(category), 0, int64(r.limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis recent search read failed: %w", err)
	}
	return items, nil
}

// MemoryRecentSearches keeps the lists in process.
type MemoryRecentSearches struct {
	mu    sync.Mutex
	limit int
	lists map[domain.Category][]string
}

func NewMemoryRecentSearches(limit int) *MemoryRecentSearches {
	if limit <= 0 {
		limit = DefaultRecentSearchLimit
	}
	return &MemoryRecentSearches{limit: limit, lists: make(map[domain.Category][]string)}
}

func (m *MemoryRecentSearches) Add(_ context.Context, category domain.Category, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]string, 0, m.limit)
	list = append(list, keyword)
	for _, k := range m.lists[category] {
		if k != keyword && len(list) < m.limit {
			list = append(list, k)
		}
	}
	m.lists[category] = list
	return nil
}

func (m *MemoryRecentSearches) List(_ context.Context, category domain.Category) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lists[category]...), nil
}
