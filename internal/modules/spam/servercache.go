package spam

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const serverCacheKey = "MOLLOM_SERVER_CACHE"

// ServerLister discovers reputation servers and verifies credentials
// against a given server list.
type ServerLister interface {
	DiscoverServers(ctx context.Context) ([]string, error)
	VerifyKeyOn(ctx context.Context, servers []string) (bool, error)
}

// ServerListCache avoids a discovery round-trip on every check.
//
// Reads never fail: a broken or empty entry reads as a miss. A discovered
// list is written back only while the credentials are valid, and write
// failures are logged and dropped. One mutex covers read-then-maybe-write;
// the Store itself may be shared with other processes (last writer wins).
type ServerListCache struct {
	mu     sync.Mutex
	store  Store
	lister ServerLister
	log    *zap.Logger
}

func NewServerListCache(store Store, lister ServerLister, log *zap.Logger) *ServerListCache {
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ServerListCache{store: store, lister: lister, log: log}
}

// ServerList returns the cached list or discovers a fresh one.
func (c *ServerListCache) ServerList(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if servers := c.read(ctx); len(servers) > 0 {
		return servers, nil
	}

	servers, err := c.lister.DiscoverServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover servers: %w", err)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("discover servers: empty server list")
	}
	c.write(ctx, servers)
	return servers, nil
}

// Invalidate drops the cached list so the next call rediscovers.
func (c *ServerListCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Del(ctx, serverCacheKey); err != nil {
		c.log.Warn("server list cache invalidate failed", zap.Error(err))
	}
}

func (c *ServerListCache) read(ctx context.Context) []string {
	raw, err := c.store.Get(ctx, serverCacheKey)
	if err != nil {
		c.log.Warn("server list cache read failed", zap.Error(err))
		return nil
	}
	if raw == "" {
		return nil
	}
	var servers []string
	if err := yaml.Unmarshal([]byte(raw), &servers); err != nil {
		c.log.Warn("server list cache entry is corrupt", zap.Error(err))
		return nil
	}
	return servers
}

func (c *ServerListCache) write(ctx context.Context, servers []string) {
	ok, err := c.lister.VerifyKeyOn(ctx, servers)
	if err != nil {
		c.log.Warn("server list not cached: key check failed", zap.Error(err))
		return
	}
	if !ok {
		c.log.Debug("server list not cached: key rejected")
		return
	}
	raw, err := yaml.Marshal(servers)
	if err != nil {
		c.log.Warn("server list cache encode failed", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, serverCacheKey, string(raw)); err != nil {
		c.log.Warn("server list cache write failed", zap.Error(err))
	}
}
