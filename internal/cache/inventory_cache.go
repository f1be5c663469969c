package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/redis/go-redis/v9"
)

const inventoryItemsKeyPrefix = "inventory:items"

// InventoryQuery identifies one cached listing.
type InventoryQuery struct {
	Category domain.Category
	Name     string
	Code     string
}

// InventoryCache caches classified inventory listings between uploads.
type InventoryCache interface {
	GetViews(ctx context.Context, query InventoryQuery) ([]domain.ReplenishmentView, bool, error)
	SetViews(ctx context.Context, query InventoryQuery, views []domain.ReplenishmentView) error
	InvalidateCategory(ctx context.Context, category domain.Category) error
}

type redisInventoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopInventoryCache struct{}

// NewInventoryCache wraps client; a nil client yields a cache that never hits.
func NewInventoryCache(client *redis.Client, ttl time.Duration) InventoryCache {
	if client == nil {
		return &noopInventoryCache{}
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisInventoryCache{client: client, ttl: ttl}
}

func NewNoopInventoryCache() InventoryCache {
	return &noopInventoryCache{}
}

func (c *redisInventoryCache) GetViews(ctx context.Context, query InventoryQuery) ([]domain.ReplenishmentView, bool, error) {
	payload, err := c.client.Get(ctx, buildInventoryKey(query)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var views []domain.ReplenishmentView
	if err := json.Unmarshal(payload, &views); err != nil {
		return nil, false, fmt.Errorf("decode inventory cache: %w", err)
	}
	return views, true, nil
}

func (c *redisInventoryCache) SetViews(ctx context.Context, query InventoryQuery, views []domain.ReplenishmentView) error {
	payload, err := json.Marshal(views)
	if err != nil {
		return fmt.Errorf("encode inventory cache: %w", err)
	}
	if err := c.client.Set(ctx, buildInventoryKey(query), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisInventoryCache) InvalidateCategory(ctx context.Context, category domain.Category) error {
	return deleteKeysWithPrefix(ctx, c.client, categoryKeyPrefix(category), scanBatchSize)
}

func (n *noopInventoryCache) GetViews(context.Context, InventoryQuery) ([]domain.ReplenishmentView, bool, error) {
	return nil, false, nil
}

func (n *noopInventoryCache) SetViews(context.Context, InventoryQuery, []domain.ReplenishmentView) error {
	return nil
}

func (n *noopInventoryCache) InvalidateCategory(context.Context, domain.Category) error {
	return nil
}

func categoryKeyPrefix(category domain.Category) string {
	return fmt.Sprintf("%s:%s:", inventoryItemsKeyPrefix, category)
}

func buildInventoryKey(q InventoryQuery) string {
	var parts []string
	if q.Name != "" {
		parts = append(parts, "name="+strings.ToLower(q.Name))
	}
	if q.Code != "" {
		parts = append(parts, "code="+strings.ToLower(q.Code))
	}

	if len(parts) == 0 {
		return categoryKeyPrefix(q.Category) + "all"
	}

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return categoryKeyPrefix(q.Category) + hex.EncodeToString(hash[:])
}
