package ledgerclient

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	defaultNonceCapacity = 8192
	prunePersistentEvery = time.Minute
)

// NoncePersistence records consumed nonces durably so replays are caught
// across restarts and after the in-memory window overflows.
type NoncePersistence interface {
	// EnsureNonce stores nonce and reports whether it was already present.
	EnsureNonce(ctx context.Context, nonce string, observedAt time.Time) (bool, error)
	PruneNonces(ctx context.Context, cutoff time.Time) error
}

// NonceCache remembers nonces for the verification window. A signed timestamp
// may drift by the skew in either direction, so entries live for twice the
// skew.
type NonceCache struct {
	ttl         time.Duration
	capacity    int
	persistence NoncePersistence

	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	lastPruned time.Time
}

type nonceEntry struct {
	nonce string
	seen  time.Time
}

// NewNonceCache builds a cache for the given skew. A nil persistence keeps
// nonces in memory only.
func NewNonceCache(skew time.Duration, capacity int, persistence NoncePersistence) *NonceCache {
	if skew <= 0 {
		skew = DefaultSkew
	}
	if capacity <= 0 {
		capacity = defaultNonceCapacity
	}
	return &NonceCache{
		ttl:         2 * skew,
		capacity:    capacity,
		persistence: persistence,
		entries:     make(map[string]*list.Element),
		order:       list.New(),
	}
}

// Register consumes nonce. It returns false when the nonce was seen within the
// window.
func (c *NonceCache) Register(ctx context.Context, nonce string, now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired(now.Add(-c.ttl))
	if _, ok := c.entries[nonce]; ok {
		return false, nil
	}
	if c.persistence != nil {
		if now.Sub(c.lastPruned) >= prunePersistentEvery {
			if err := c.persistence.PruneNonces(ctx, now.Add(-c.ttl)); err != nil {
				return false, err
			}
			c.lastPruned = now
		}
		existed, err := c.persistence.EnsureNonce(ctx, nonce, now)
		if err != nil {
			return false, err
		}
		if existed {
			c.insert(nonce, now)
			return false, nil
		}
	}
	c.insert(nonce, now)
	return true, nil
}

// Len reports the number of nonces held in memory.
func (c *NonceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *NonceCache) insert(nonce string, now time.Time) {
	c.entries[nonce] = c.order.PushBack(&nonceEntry{nonce: nonce, seen: now})
	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*nonceEntry).nonce)
	}
}

func (c *NonceCache) evictExpired(cutoff time.Time) {
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		entry := front.Value.(*nonceEntry)
		if entry.seen.After(cutoff) {
			return
		}
		c.order.Remove(front)
		delete(c.entries, entry.nonce)
	}
}
