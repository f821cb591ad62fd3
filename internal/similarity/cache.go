package similarity

import (
	"sync"
	"time"

	"github.com/icewall905/tuneforge/internal/domain"
)

// statsCache holds one FeatureStats value with the time it was computed.
type statsCache struct {
	computedAt time.Time
	stats      domain.FeatureStats
	ttl        time.Duration
	mu         sync.RWMutex
	loaded     bool
}

func (c *statsCache) get(now time.Time) (domain.FeatureStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || now.Sub(c.computedAt) > c.ttl {
		return domain.FeatureStats{}, false
	}
	return c.stats, true
}

func (c *statsCache) set(stats domain.FeatureStats, now time.Time) {
	c.mu.Lock()
	c.stats = stats
	c.computedAt = now
	c.loaded = true
	c.mu.Unlock()
}

func (c *statsCache) clear() {
	c.mu.Lock()
	c.loaded = false
	c.stats = domain.FeatureStats{}
	c.mu.Unlock()
}

// vectorKey identifies a normalization by content: the raw values and the
// stats they were scaled against. The track id is deliberately left out so
// tracks with identical features share an entry.
type vectorKey struct {
	values [domain.NumFeatures]nullable
	stats  domain.FeatureStats
}

type nullable struct {
	v     float64
	valid bool
}

func newVectorKey(row domain.FeatureRow, stats domain.FeatureStats) vectorKey {
	k := vectorKey{stats: stats}
	for i, v := range row.Values {
		if v.Valid {
			k.values[i] = nullable{v: v.Float64, valid: true}
		}
	}
	return k
}

// vectorCache is a bounded memo of normalized vectors. When full, the oldest
// evictBatch entries are dropped at once.
type vectorCache struct {
	entries    map[vectorKey]domain.Vector
	order      []vectorKey
	capacity   int
	evictBatch int
	mu         sync.Mutex
}

func newVectorCache(capacity, evictBatch int) *vectorCache {
	if evictBatch <= 0 || evictBatch > capacity {
		evictBatch = capacity
	}
	return &vectorCache{
		entries:    make(map[vectorKey]domain.Vector, capacity),
		capacity:   capacity,
		evictBatch: evictBatch,
	}
}

func (c *vectorCache) get(k vectorKey) (domain.Vector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[k]
	return v, ok
}

func (c *vectorCache) put(k vectorKey, v domain.Vector) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[k]; ok {
		return
	}
	if len(c.entries) >= c.capacity {
		for _, old := range c.order[:c.evictBatch] {
			delete(c.entries, old)
		}
		c.order = append(c.order[:0:0], c.order[c.evictBatch:]...)
	}
	c.entries[k] = v
	c.order = append(c.order, k)
}

func (c *vectorCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *vectorCache) clear() {
	c.mu.Lock()
	c.entries = make(map[vectorKey]domain.Vector, c.capacity)
	c.order = nil
	c.mu.Unlock()
}
