package main

import (
	"context"
	"errors"

	"github.com/pharmacheck/inventory/backend-go/internal/cache"
	"github.com/pharmacheck/inventory/backend-go/internal/config"
	"github.com/pharmacheck/inventory/backend-go/internal/domain"
	"github.com/pharmacheck/inventory/backend-go/internal/pipeline"
	"github.com/pharmacheck/inventory/backend-go/pkg/logger"
	"github.com/urfave/cli/v2"
)

func newRedisURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "redis-url",
		Usage:   "Redis URL of the server's listing cache, cleared after a committed run",
		EnvVars: []string{"REDIS_URL"},
	}
}

// invalidateViews drops the server's cached listings for every category
// committed by results. Without a database nothing was committed.
func invalidateViews(c *cli.Context, results []*pipeline.Result) {
	url := c.String("redis-url")
	if url == "" || dbFrom(c) == nil || len(results) == 0 {
		return
	}
	client, err := cache.NewRedisClient(config.CacheConfig{Enabled: true, RedisURL: url})
	if err != nil {
		logger.Log.Warn().Err(err).Msg("redis unavailable, cached listings expire with their TTL")
		return
	}
	defer client.Close()

	if err := invalidateCategories(c.Context, cache.NewInventoryCache(client, 0), results); err != nil {
		logger.Log.Warn().Err(err).Msg("failed to invalidate cached listings")
	}
}

func invalidateCategories(ctx context.Context, views cache.InventoryCache, results []*pipeline.Result) error {
	var errs []error
	seen := make(map[domain.Category]bool, len(results))
	for _, res := range results {
		category := res.Ledger.Category
		if seen[category] {
			continue
		}
		seen[category] = true
		if err := views.InvalidateCategory(ctx, category); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
