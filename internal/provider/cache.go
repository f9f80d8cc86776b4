package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/shineum/emailer/internal/config"
	"github.com/shineum/emailer/internal/email"
)

type cacheKey struct {
	provider string
	account  string
}

// Cache memoizes one Client per (provider, account) pair. Clients are built
// lazily on first use and kept for the lifetime of the Cache. A failed build
// is not cached, so the next call tries again.
type Cache struct {
	mu      sync.Mutex
	clients map[cacheKey]Client
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{clients: make(map[cacheKey]Client)}
}

// Get returns the cached Client for the pair, building it with factory on a
// miss. An empty account means "default". Construction runs under the cache
// lock, so a pair is never built twice.
func (c *Cache) Get(ctx context.Context, name, account string, cfg *config.Config, factory Factory) (Client, error) {
	if account == "" {
		account = email.DefaultAccount
	}
	key := cacheKey{provider: name, account: account}

	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	client, err := factory(ctx, cfg, account)
	if err != nil {
		return nil, fmt.Errorf("%s account %q: %w", name, account, err)
	}
	c.clients[key] = client
	return client, nil
}

// Len returns the number of cached clients.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
