package engine

import (
	"sync"
	"time"
)

// CachedResult is one finished conversion held in memory for download
type CachedResult struct {
	Filename string
	Data     []byte
	Preview  []byte // PNG preview of the first page, may be nil
	MIME     string
	StoredAt time.Time
}

// ResultCache keeps finished conversions available for download until the
// retention window lapses. Everything lives in memory so a restart simply
// drops pending downloads, the job history in the database survives.
type ResultCache struct {
	mu      sync.Mutex
	results map[string]*CachedResult
	ttl     time.Duration
}

func NewResultCache(ttl time.Duration) *ResultCache {
	return &ResultCache{
		results: make(map[string]*CachedResult),
		ttl:     ttl,
	}
}

func (rc *ResultCache) Put(id string, result *CachedResult) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	result.StoredAt = time.Now()
	rc.results[id] = result
}

// Get returns the cached result or nil once it has expired or never existed
func (rc *ResultCache) Get(id string) *CachedResult {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	result, ok := rc.results[id]
	if !ok {
		return nil
	}
	if time.Since(result.StoredAt) > rc.ttl {
		delete(rc.results, id)
		return nil
	}
	return result
}

// Sweep drops expired entries and reports how many were removed
func (rc *ResultCache) Sweep() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	removed := 0
	for id, result := range rc.results {
		if time.Since(result.StoredAt) > rc.ttl {
			delete(rc.results, id)
			removed++
		}
	}
	return removed
}

func (rc *ResultCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.results)
}
