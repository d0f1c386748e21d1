package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/invoice-overlay/internal/records"
)

const rowsVersionKey = "overlay:rows:version"

// RowCache serves invoice rows from a versioned Redis key and falls back
// to the wrapped fetcher on a miss. A nil client passes every call through.
type RowCache struct {
	client *redis.Client
	next   records.Fetcher
	scope  string
	ttl    time.Duration
}

var _ records.Fetcher = (*RowCache)(nil)

// NewRowCache wraps next. scope separates hosts sharing one Redis.
func NewRowCache(client *redis.Client, next records.Fetcher, scope string, ttl time.Duration) *RowCache {
	return &RowCache{client: client, next: next, scope: scope, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *RowCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, rowsVersionKey).Int64()
	if errors.Is(err, redis.Nil) || (err == nil && ver <= 0) {
		if err := c.client.Set(ctx, rowsVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Key composes the rows key for the current version.
func (c *RowCache) Key(ctx context.Context) (string, error) {
	parts := []string{"overlay", "rows", c.scope}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", strings.Join(parts, ":"), ver), nil
}

// FetchRecords implements records.Fetcher.
func (c *RowCache) FetchRecords(ctx context.Context) ([]records.Row, error) {
	if c.next == nil {
		return nil, errors.New("cache: fetcher required")
	}
	if c.client == nil {
		return c.next.FetchRecords(ctx)
	}
	key, err := c.Key(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache: rows key: %w", err)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var rows []records.Row
		if err := json.Unmarshal(payload, &rows); err != nil {
			return nil, fmt.Errorf("cache: decode rows: %w", err)
		}
		return rows, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("cache: get rows: %w", err)
	}
	rows, err := c.next.FetchRecords(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("cache: encode rows: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, fmt.Errorf("cache: set rows: %w", err)
	}
	return rows, nil
}

// Bump invalidates every cached row set by incrementing the version.
func (c *RowCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, rowsVersionKey).Err()
}
