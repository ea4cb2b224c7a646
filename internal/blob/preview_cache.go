package blob

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PreviewCache memoizes signed URLs for less than their lifetime so a
// cached URL is never handed out close to expiry.
type PreviewCache struct {
	lru *expirable.LRU[string, SignedURL]
}

func NewPreviewCache(size int, expiry time.Duration) *PreviewCache {
	return &PreviewCache{lru: expirable.NewLRU[string, SignedURL](size, nil, expiry/2)}
}

func (c *PreviewCache) Get(key string) (SignedURL, bool) {
	return c.lru.Get(key)
}

func (c *PreviewCache) Add(key string, u SignedURL) {
	c.lru.Add(key, u)
}

func (c *PreviewCache) Remove(key string) {
	c.lru.Remove(key)
}
