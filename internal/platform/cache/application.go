// Package cache holds short-lived in-process lookups.
package cache

import (
	"sync"
	"time"

	"keyauth/internal/platform/models"
)

type cachedApplication struct {
	app      *models.Application
	cachedAt time.Time
}

// ApplicationCache maps API key digests to applications for a fixed TTL.
type ApplicationCache struct {
	store sync.Map // map[api_key_hash]*cachedApplication
	ttl   time.Duration
	now   func() time.Time
}

func NewApplicationCache(ttl time.Duration) *ApplicationCache {
	return &ApplicationCache{ttl: ttl, now: time.Now}
}

func (c *ApplicationCache) Get(keyHash string) (*models.Application, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	val, ok := c.store.Load(keyHash)
	if !ok {
		return nil, false
	}

	entry := val.(*cachedApplication)
	if c.now().Sub(entry.cachedAt) > c.ttl {
		c.store.Delete(keyHash)
		return nil, false
	}

	// Callers get a copy so they can't mutate the cached value.
	app := *entry.app
	return &app, true
}

func (c *ApplicationCache) Set(keyHash string, app *models.Application) {
	if c.ttl <= 0 {
		return
	}
	cp := *app
	c.store.Store(keyHash, &cachedApplication{app: &cp, cachedAt: c.now()})
}

// Invalidate drops every entry for the application, whatever key it was
// cached under.
func (c *ApplicationCache) Invalidate(appID string) {
	c.store.Range(func(key, val interface{}) bool {
		if val.(*cachedApplication).app.ID == appID {
			c.store.Delete(key)
		}
		return true
	})
}
