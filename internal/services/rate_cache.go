package services

import (
	"context"
	"sync"
	"time"

	"github.com/hotelpms/server/internal/repository"
)

// RoomRateCache is a RoomRepo that keeps room rates in memory for a TTL.
// Auto-resolution prices many bookings of the same rooms in one batch.
type RoomRateCache struct {
	repository.RoomRepo

	mu    sync.RWMutex
	items map[string]*rateItem
	ttl   time.Duration
	now   func() time.Time
}

type rateItem struct {
	rate      float64
	expiresAt time.Time
}

// NewRoomRateCache wraps a RoomRepo with the specified TTL
func NewRoomRateCache(repo repository.RoomRepo, ttl time.Duration) *RoomRateCache {
	return &RoomRateCache{
		RoomRepo: repo,
		items:    make(map[string]*rateItem),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetRoomRate returns the cached rate, loading it on a miss. Lookup errors
// are not cached.
func (c *RoomRateCache) GetRoomRate(ctx context.Context, propertyID, roomNo string) (float64, error) {
	key := propertyID + "/" + roomNo

	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()
	if exists && c.now().Before(item.expiresAt) {
		return item.rate, nil
	}

	rate, err := c.RoomRepo.GetRoomRate(ctx, propertyID, roomNo)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.items[key] = &rateItem{rate: rate, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return rate, nil
}

// Clear removes all cached rates
func (c *RoomRateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*rateItem)
}

// Size returns the number of cached rates
func (c *RoomRateCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}
