package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/confscout/provider"
	"github.com/mohammad-safakhou/confscout/session"
)

// Cache is the default in-process session cache. Expired entries are
// dropped lazily on read.
type Cache struct {
	mu      sync.RWMutex
	entries map[session.Key]provider.FileHandle
	clock   session.Clock
}

// New returns an empty cache. A nil clock means time.Now.
func New(clock session.Clock) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{entries: make(map[session.Key]provider.FileHandle), clock: clock}
}

func (c *Cache) Get(_ context.Context, key session.Key) (provider.FileHandle, bool, error) {
	c.mu.RLock()
	handle, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return provider.FileHandle{}, false, nil
	}
	if !handle.ExpiresAt.After(c.clock()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return provider.FileHandle{}, false, nil
	}
	return handle, true, nil
}

func (c *Cache) Put(_ context.Context, key session.Key, handle provider.FileHandle) error {
	c.mu.Lock()
	c.entries[key] = handle
	c.mu.Unlock()
	return nil
}

func (c *Cache) ClearSession(_ context.Context, identity string, client provider.Client) error {
	c.mu.Lock()
	for k := range c.entries {
		if k.Identity == identity && k.Provider == client {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	return nil
}
