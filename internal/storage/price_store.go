package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CustomPricesKey is the Redis hash holding user price overrides
const CustomPricesKey = "prices:custom"

// RedisPriceStore keeps custom prices in a Redis hash, symbol -> price
type RedisPriceStore struct {
	redis *RedisCache
	key   string
}

// NewRedisPriceStore creates a Redis backed custom price store
func NewRedisPriceStore(redis *RedisCache) *RedisPriceStore {
	return &RedisPriceStore{redis: redis, key: CustomPricesKey}
}

// Get returns the override for symbol
func (s *RedisPriceStore) Get(ctx context.Context, symbol string) (float64, bool, error) {
	raw, err := s.redis.Client().HGet(ctx, s.key, strings.ToUpper(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read custom price: %w", err)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt custom price for %s: %w", symbol, err)
	}
	return price, true, nil
}

// Set stores an override
func (s *RedisPriceStore) Set(ctx context.Context, symbol string, price float64) error {
	value := strconv.FormatFloat(price, 'f', -1, 64)
	if err := s.redis.Client().HSet(ctx, s.key, strings.ToUpper(symbol), value).Err(); err != nil {
		return fmt.Errorf("failed to store custom price: %w", err)
	}
	return nil
}

// Delete removes an override
func (s *RedisPriceStore) Delete(ctx context.Context, symbol string) error {
	if err := s.redis.Client().HDel(ctx, s.key, strings.ToUpper(symbol)).Err(); err != nil {
		return fmt.Errorf("failed to delete custom price: %w", err)
	}
	return nil
}

// All returns every override. Unparseable entries are skipped.
func (s *RedisPriceStore) All(ctx context.Context) (map[string]float64, error) {
	raw, err := s.redis.Client().HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list custom prices: %w", err)
	}
	out := make(map[string]float64, len(raw))
	for symbol, v := range raw {
		if price, err := strconv.ParseFloat(v, 64); err == nil {
			out[symbol] = price
		}
	}
	return out, nil
}

// MemoryPriceStore keeps custom prices in process memory
type MemoryPriceStore struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewMemoryPriceStore creates an empty in-memory store
func NewMemoryPriceStore() *MemoryPriceStore {
	return &MemoryPriceStore{prices: make(map[string]float64)}
}

func (s *MemoryPriceStore) Get(_ context.Context, symbol string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[strings.ToUpper(symbol)]
	return p, ok, nil
}

func (s *MemoryPriceStore) Set(_ context.Context, symbol string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[strings.ToUpper(symbol)] = price
	return nil
}

func (s *MemoryPriceStore) Delete(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, strings.ToUpper(symbol))
	return nil
}

func (s *MemoryPriceStore) All(context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out, nil
}
