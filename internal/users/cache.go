package users

import (
	"context"
	"sync"
	"time"
)

// Directory resolves profiles by id.
type Directory interface {
	GetProfiles(ctx context.Context, ids []string) (map[string]Profile, error)
}

// Cache is a read-through TTL cache in front of a Directory. Entries are
// display hints only; nothing reads them for authorization.
type Cache struct {
	next Directory
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	profile Profile
	expires time.Time
}

func NewCache(next Directory, ttl time.Duration) *Cache {
	return &Cache{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) GetProfiles(ctx context.Context, ids []string) (map[string]Profile, error) {
	ids = dedupe(ids)
	out := make(map[string]Profile, len(ids))
	missing := make([]string, 0, len(ids))

	now := c.now()
	c.mu.Lock()
	for _, id := range ids {
		if e, ok := c.entries[id]; ok && now.Before(e.expires) {
			out[id] = e.profile
			continue
		}
		missing = append(missing, id)
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.next.GetProfiles(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range fetched {
		c.entries[id] = cacheEntry{profile: p, expires: now.Add(c.ttl)}
		out[id] = p
	}
	return out, nil
}

// Purge removes expired entries and returns how many were dropped.
func (c *Cache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}
