package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/lp-portfolio/internal/models"
	"github.com/lp-portfolio/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PortfolioCache stores load results in Redis as JSON
type PortfolioCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewPortfolioCache creates a portfolio cache with the given entry TTL
func NewPortfolioCache(redis *RedisCache, ttl time.Duration) *PortfolioCache {
	return &PortfolioCache{redis: redis, ttl: ttl}
}

// PortfolioKey generates the cache key for a wallet and chain set
// Format: portfolio:<address>:<chain1,chain2,...>
func PortfolioKey(address string, chains []types.ChainKey) string {
	parts := make([]string, len(chains))
	for i, c := range chains {
		parts[i] = string(c)
	}
	return fmt.Sprintf("portfolio:%s:%s", strings.ToLower(address), strings.Join(parts, ","))
}

// Get returns the cached result, nil on a miss
func (c *PortfolioCache) Get(ctx context.Context, address string, chains []types.ChainKey) (*models.PortfolioResult, error) {
	data, err := c.redis.Client().Get(ctx, PortfolioKey(address, chains)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached portfolio: %w", err)
	}

	var result models.PortfolioResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached portfolio: %w", err)
	}
	return &result, nil
}

// Set stores result under its address and chain set
func (c *PortfolioCache) Set(ctx context.Context, result *models.PortfolioResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio: %w", err)
	}
	key := PortfolioKey(result.Address, result.Chains)
	if err := c.redis.Client().Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache portfolio: %w", err)
	}
	return nil
}
