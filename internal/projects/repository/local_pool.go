package repository

import (
	"context"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/projects/domain"
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// LocalPool hands out one LocalStore per device, each backed by its own
// SQLite file under dir. Stores are opened lazily and closed when idle.
type LocalPool struct {
	dir string
	now func() time.Time

	mu     sync.Mutex
	stores map[string]*localEntry
}

type localEntry struct {
	store    *LocalStore
	lastUsed time.Time
}

// NewLocalPool creates a pool rooted at dir.
func NewLocalPool(dir string) *LocalPool {
	return &LocalPool{
		dir:    dir,
		now:    time.Now,
		stores: make(map[string]*localEntry),
	}
}

// For returns the shadow store of deviceID, opening it on first use.
func (p *LocalPool) For(ctx context.Context, deviceID string) (*LocalStore, error) {
	if !deviceIDPattern.MatchString(deviceID) {
		return nil, domain.Invalid("device id %q", deviceID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.stores[deviceID]; ok {
		e.lastUsed = p.now()
		return e.store, nil
	}

	s, err := OpenLocalStore(ctx, filepath.Join(p.dir, deviceID+".db"))
	if err != nil {
		return nil, err
	}
	p.stores[deviceID] = &localEntry{store: s, lastUsed: p.now()}
	return s, nil
}

// CloseIdle closes stores not used for maxIdle and returns how many were closed.
// A closed store is reopened transparently by the next For call.
func (p *LocalPool) CloseIdle(maxIdle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-maxIdle)
	closed := 0
	for id, e := range p.stores {
		if e.lastUsed.Before(cutoff) {
			_ = e.store.Close()
			delete(p.stores, id)
			closed++
		}
	}
	return closed
}

// Open reports how many device stores are currently open.
func (p *LocalPool) Open() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stores)
}

// Close closes every open store.
func (p *LocalPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for id, e := range p.stores {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.stores, id)
	}
	return firstErr
}
