package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garagebook/internal/models"
)

func newTestCache(t *testing.T) *SlotCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := zerolog.Nop()
	return New(client, time.Minute, &logger)
}

func sampleSlots() []models.TimeSlot {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return []models.TimeSlot{
		{ID: 1, GarageID: 1, StartTime: start, EndTime: start.Add(time.Hour), Available: true},
		{ID: 2, GarageID: 1, StartTime: start.Add(time.Hour), EndTime: start.Add(2 * time.Hour), Available: true},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	_, ok := c.Get(ctx, 1, from, to)
	assert.False(t, ok, "empty cache misses")

	c.Set(ctx, 1, from, to, sampleSlots())

	got, ok := c.Get(ctx, 1, from, to)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.True(t, got[0].StartTime.Equal(sampleSlots()[0].StartTime))
}

func TestCacheInvalidateGarage(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	c.Set(ctx, 1, from, from.AddDate(0, 0, 7), sampleSlots())
	c.Set(ctx, 1, from, from.AddDate(0, 0, 14), sampleSlots())
	c.Set(ctx, 2, from, from.AddDate(0, 0, 7), sampleSlots())

	c.InvalidateGarage(ctx, 1)

	_, ok := c.Get(ctx, 1, from, from.AddDate(0, 0, 7))
	assert.False(t, ok)
	_, ok = c.Get(ctx, 1, from, from.AddDate(0, 0, 14))
	assert.False(t, ok)

	// Other garages keep their entries.
	_, ok = c.Get(ctx, 2, from, from.AddDate(0, 0, 7))
	assert.True(t, ok)
}

func TestCacheNilSafe(t *testing.T) {
	var c *SlotCache
	ctx := context.Background()
	from := time.Now()

	_, ok := c.Get(ctx, 1, from, from)
	assert.False(t, ok)
	c.Set(ctx, 1, from, from, sampleSlots())
	c.InvalidateGarage(ctx, 1)
}
