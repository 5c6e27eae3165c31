// Package selection remembers which payment a chat is currently looking at.
// Entries live in memory only and expire after a TTL.
package selection

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	paymentID int64
	touchedAt time.Time
}

// Cache maps a chat id to the selected payment id.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[int64]entry
}

// New creates an empty cache whose entries expire ttl after the last Touch.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]entry),
	}
}

// Touch selects paymentID for the chat and refreshes the entry's timestamp.
func (c *Cache) Touch(chatID, paymentID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[chatID] = entry{paymentID: paymentID, touchedAt: c.now()}
}

// Get returns the selected payment for the chat.
func (c *Cache) Get(chatID int64) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[chatID]
	return e.paymentID, ok
}

// Clear drops the chat's selection.
func (c *Cache) Clear(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, chatID)
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes entries not touched within the TTL and returns how many
// were removed.
func (c *Cache) Sweep() int {
	cutoff := c.now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, e := range c.entries {
		if e.touchedAt.Before(cutoff) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is canceled.
func (c *Cache) Run(ctx context.Context, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("selection sweeper stopping")
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				log.Debug("selection entries expired", zap.Int("removed", n))
			}
		}
	}
}
