package biz

import (
	"fmt"
	"sync"
	"time"
)

// listCacheTTL 列表缓存有效期
const listCacheTTL = 30 * time.Second

type cacheEntry struct {
	items   []*File
	total   int64
	expires time.Time
}

// ListCache 进程内列表缓存，任何写操作后整体失效
type ListCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewListCache 创建列表缓存
func NewListCache() *ListCache {
	return &ListCache{entries: make(map[string]cacheEntry)}
}

func cacheKey(req *ListFilesRequest) string {
	return fmt.Sprintf("%d|%d|%s|%s|%s", req.Page, req.PageSize, req.Query, req.SortBy, req.SortOrder)
}

// Lookup 查询缓存，过期视为未命中
func (c *ListCache) Lookup(req *ListFilesRequest) ([]*File, int64, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(req)]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return nil, 0, false
	}
	return entry.items, entry.total, true
}

// Store 写入缓存
func (c *ListCache) Store(req *ListFilesRequest, items []*File, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(req)] = cacheEntry{
		items:   items,
		total:   total,
		expires: time.Now().Add(listCacheTTL),
	}
}

// Invalidate 整体失效
func (c *ListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
