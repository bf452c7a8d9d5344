package file

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "droplink_record_cache_hits_total",
		Help: "Record cache hits on the retrieval path.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "droplink_record_cache_misses_total",
		Help: "Record cache misses on the retrieval path.",
	})
)

// RecordCache is an in-process LRU of records keyed by short identifier.
// Records are immutable, so a cached entry can only go stale by eviction,
// never by mutation.
type RecordCache struct {
	lru *expirable.LRU[string, *Record]
}

// NewRecordCache creates a cache holding at most size records for at most ttl.
func NewRecordCache(size int, ttl time.Duration) *RecordCache {
	return &RecordCache{lru: expirable.NewLRU[string, *Record](size, nil, ttl)}
}

// Get returns the cached record for shortID, if present.
func (c *RecordCache) Get(shortID string) (*Record, bool) {
	rec, ok := c.lru.Get(shortID)
	if ok {
		cacheHitsTotal.Inc()
		return rec, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set stores a record under its short identifier.
func (c *RecordCache) Set(shortID string, rec *Record) {
	c.lru.Add(shortID, rec)
}
