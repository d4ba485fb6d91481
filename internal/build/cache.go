// Package build runs partner asset sets through the transformer and
// aggregates the outcome.
//
// TransformCache keeps encoded variants and source hashes in a size-bounded
// LRU with TTL so watch and serve mode skip re-encoding unchanged sources.
package build

import (
	"sync"
	"sync/atomic"
	"time"
)

// TransformCache caches encoded variants with LRU eviction and TTL.
type TransformCache struct {
	entries     map[string]*CacheEntry
	mutex       sync.RWMutex
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	// LRU list with dummy head and tail
	head *CacheEntry
	tail *CacheEntry

	hits      int64
	misses    int64
	sets      int64
	evictions int64
}

// CacheEntry is one cached value.
type CacheEntry struct {
	Key        string
	Value      []byte
	Hash       string
	CreatedAt  time.Time
	AccessedAt time.Time
	Size       int64

	prev *CacheEntry
	next *CacheEntry
}

// CacheStats is a point-in-time view of cache counters.
type CacheStats struct {
	Entries   int     `json:"entries"`
	Size      int64   `json:"size"`
	MaxSize   int64   `json:"maxSize"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
}

// NewTransformCache creates a cache bounded to maxSize bytes.
func NewTransformCache(maxSize int64, ttl time.Duration) *TransformCache {
	cache := &TransformCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}

	cache.head = &CacheEntry{}
	cache.tail = &CacheEntry{}
	cache.head.next = cache.tail
	cache.tail.prev = cache.head

	return cache
}

// lookup returns a live entry and marks it recently used. Expired entries
// are dropped. Callers hold the write lock.
func (tc *TransformCache) lookup(key string) (*CacheEntry, bool) {
	entry, exists := tc.entries[key]
	if !exists {
		return nil, false
	}

	if tc.ttl > 0 && time.Since(entry.CreatedAt) > tc.ttl {
		tc.remove(entry)
		return nil, false
	}

	tc.moveToFront(entry)
	entry.AccessedAt = time.Now()
	return entry, true
}

// Get retrieves a value from the cache.
func (tc *TransformCache) Get(key string) ([]byte, bool) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	entry, ok := tc.lookup(key)
	if !ok || entry.Value == nil {
		atomic.AddInt64(&tc.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&tc.hits, 1)
	return entry.Value, true
}

// Set stores a value in the cache. Values larger than the cache are ignored.
func (tc *TransformCache) Set(key string, value []byte) {
	tc.put(key, value, key, int64(len(value)))
}

// GetHash retrieves a hash cached under a file metadata key.
func (tc *TransformCache) GetHash(key string) (string, bool) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	entry, ok := tc.lookup(key)
	if !ok {
		return "", false
	}
	return entry.Hash, true
}

// SetHash stores a hash under a file metadata key.
func (tc *TransformCache) SetHash(key, hash string) {
	tc.put(key, nil, hash, int64(len(key)+len(hash)))
}

func (tc *TransformCache) put(key string, value []byte, hash string, size int64) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if size > tc.maxSize {
		return
	}

	if existing, exists := tc.entries[key]; exists {
		tc.currentSize += size - existing.Size
		existing.Value = value
		existing.Hash = hash
		existing.Size = size
		existing.CreatedAt = time.Now()
		existing.AccessedAt = existing.CreatedAt
		tc.moveToFront(existing)
		tc.evictIfNeeded(0)
		atomic.AddInt64(&tc.sets, 1)
		return
	}

	tc.evictIfNeeded(size)

	now := time.Now()
	entry := &CacheEntry{
		Key:        key,
		Value:      value,
		Hash:       hash,
		CreatedAt:  now,
		AccessedAt: now,
		Size:       size,
	}
	tc.entries[key] = entry
	tc.currentSize += size
	tc.addToFront(entry)
	atomic.AddInt64(&tc.sets, 1)
}

// evictIfNeeded drops least recently used entries until newSize fits.
func (tc *TransformCache) evictIfNeeded(newSize int64) {
	for tc.currentSize+newSize > tc.maxSize && tc.tail.prev != tc.head {
		tc.remove(tc.tail.prev)
		atomic.AddInt64(&tc.evictions, 1)
	}
}

func (tc *TransformCache) remove(entry *CacheEntry) {
	tc.removeFromList(entry)
	delete(tc.entries, entry.Key)
	tc.currentSize -= entry.Size
}

// Clear drops every entry and resets the counters.
func (tc *TransformCache) Clear() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	tc.entries = make(map[string]*CacheEntry)
	tc.currentSize = 0
	tc.head.next = tc.tail
	tc.tail.prev = tc.head

	atomic.StoreInt64(&tc.hits, 0)
	atomic.StoreInt64(&tc.misses, 0)
	atomic.StoreInt64(&tc.sets, 0)
	atomic.StoreInt64(&tc.evictions, 0)
}

// Stats returns the current counters.
func (tc *TransformCache) Stats() CacheStats {
	tc.mutex.RLock()
	entries, size := len(tc.entries), tc.currentSize
	tc.mutex.RUnlock()

	hits := atomic.LoadInt64(&tc.hits)
	misses := atomic.LoadInt64(&tc.misses)
	rate := 0.0
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}

	return CacheStats{
		Entries:   entries,
		Size:      size,
		MaxSize:   tc.maxSize,
		Hits:      hits,
		Misses:    misses,
		Evictions: atomic.LoadInt64(&tc.evictions),
		HitRate:   rate,
	}
}

func (tc *TransformCache) addToFront(entry *CacheEntry) {
	entry.prev = tc.head
	entry.next = tc.head.next
	tc.head.next.prev = entry
	tc.head.next = entry
}

func (tc *TransformCache) removeFromList(entry *CacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (tc *TransformCache) moveToFront(entry *CacheEntry) {
	tc.removeFromList(entry)
	tc.addToFront(entry)
}
