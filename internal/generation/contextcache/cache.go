// Package contextcache 提供大上下文复用缓存。
// 以「内容哈希 + 模型标识」为键，命中时可以复用此前上传的上下文，
// 未命中则正常发起完整请求，纯属建议性优化。
package contextcache

import (
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"inkwell-ai-api/pkg/metrics"
)

// Entry 缓存条目
type Entry struct {
	Value     string
	ExpiresAt time.Time
}

// Cache 有界 TTL 缓存。时间源注入便于测试，
// 进程启动时构造一次并按引用传递，不做全局查找。
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// Option 缓存构造选项
type Option func(*Cache)

// WithClock 注入时间源
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New 创建缓存，capacity 和 ttl 非正时取默认值
func New(capacity int, ttl time.Duration, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = 128
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := &Cache{
		entries:  make(map[string]Entry, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key 由内容哈希和模型标识构造缓存键
func Key(content, model string) string {
	return model + ":" + strconv.FormatUint(xxhash.Sum64String(content), 16)
}

// Get 查询缓存，过期条目按未命中处理并顺手删除
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		metrics.ContextCacheHits.WithLabelValues("miss").Inc()
		return "", false
	}
	if c.now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		metrics.ContextCacheHits.WithLabelValues("expired").Inc()
		return "", false
	}
	metrics.ContextCacheHits.WithLabelValues("hit").Inc()
	return entry.Value, true
}

// Set 写入缓存。容量已满时先清过期条目，仍满则淘汰最早过期的条目。
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictLocked(now)
	}
	c.entries[key] = Entry{
		Value:     value,
		ExpiresAt: now.Add(c.ttl),
	}
}

// Len 返回当前条目数
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictLocked(now time.Time) {
	var oldestKey string
	var oldestExpiry time.Time
	for k, e := range c.entries {
		if now.After(e.ExpiresAt) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || e.ExpiresAt.Before(oldestExpiry) {
			oldestKey = k
			oldestExpiry = e.ExpiresAt
		}
	}
	if len(c.entries) >= c.capacity && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
