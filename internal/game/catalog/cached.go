package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedCatalog memoizes definitions from a slower catalog. Concurrent misses for
// the same card share one backend lookup.
type CachedCatalog struct {
	backend Catalog
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string]*CardDefinition
	group singleflight.Group
}

// NewCachedCatalog wraps backend.
func NewCachedCatalog(backend Catalog, logger *zap.Logger) *CachedCatalog {
	return &CachedCatalog{
		backend: backend,
		logger:  logger,
		cache:   make(map[string]*CardDefinition),
	}
}

// GetDefinition implements Catalog. Failures are not cached.
func (c *CachedCatalog) GetDefinition(ctx context.Context, cardID string) (*CardDefinition, error) {
	c.mu.RLock()
	def, ok := c.cache[cardID]
	c.mu.RUnlock()
	if ok {
		return def, nil
	}

	v, err, shared := c.group.Do(cardID, func() (interface{}, error) {
		def, err := c.backend.GetDefinition(ctx, cardID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[cardID] = def
		c.mu.Unlock()
		return def, nil
	})
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("card lookup failed",
				zap.String("card_id", cardID),
				zap.Bool("shared", shared),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return v.(*CardDefinition), nil
}

// Invalidate drops a cached definition.
func (c *CachedCatalog) Invalidate(cardID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, cardID)
}

// Size returns the number of cached definitions.
func (c *CachedCatalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
