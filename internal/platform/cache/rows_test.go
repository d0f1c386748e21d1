package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-overlay/internal/records"
)

type countingFetcher struct {
	calls int
	rows  []records.Row
	err   error
}

func (f *countingFetcher) FetchRecords(context.Context) ([]records.Row, error) {
	f.calls++
	return f.rows, f.err
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleRows() []records.Row {
	return []records.Row{
		{State: records.StatePosted, AmountTotal: decimal.RequireFromString("1160.00"), AmountResidual: decimal.RequireFromString("1160.00"), DueDate: records.NewDate(2026, time.March, 3), PaymentState: "not_paid"},
		{State: records.StateDraft, AmountTotal: decimal.RequireFromString("250.50")},
	}
}

func TestRowCacheServesFromRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	next := &countingFetcher{rows: sampleRows()}
	c := NewRowCache(client, next, "odoo.local", time.Minute)

	first, err := c.FetchRecords(ctx)
	require.NoError(t, err)
	second, err := c.FetchRecords(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	require.Len(t, second, 2)
	assert.True(t, first[0].AmountTotal.Equal(second[0].AmountTotal))
	assert.Equal(t, first[0].DueDate, second[0].DueDate)
	assert.False(t, second[1].DueDate.Valid)
	assert.True(t, mr.Exists("overlay:rows:odoo.local:1"))

	mr.FastForward(2 * time.Minute)
	_, err = c.FetchRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestRowCacheBumpInvalidates(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	next := &countingFetcher{rows: sampleRows()}
	c := NewRowCache(client, next, "odoo.local", time.Hour)

	_, err := c.FetchRecords(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx))

	key, err := c.Key(ctx)
	require.NoError(t, err)
	assert.Equal(t, "overlay:rows:odoo.local:2", key)

	_, err = c.FetchRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestRowCacheErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	next := &countingFetcher{err: errors.New("offline")}
	c := NewRowCache(client, next, "odoo.local", time.Hour)

	_, err := c.FetchRecords(ctx)
	require.Error(t, err)
	assert.False(t, mr.Exists("overlay:rows:odoo.local:1"))
}

func TestRowCacheWithoutRedisPassesThrough(t *testing.T) {
	next := &countingFetcher{rows: sampleRows()}
	c := NewRowCache(nil, next, "odoo.local", time.Hour)

	for i := 0; i < 3; i++ {
		_, err := c.FetchRecords(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, next.calls)
	assert.NoError(t, c.Bump(context.Background()))
}

func TestNewWithoutAddress(t *testing.T) {
	client, err := New(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = New(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NotNil(t, client)
	_ = client.Close()
}
