// Package store caches query result sets under stable identifiers so the
// full JSON stays addressable after a tool call returned only a preview.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// ErrNotFound indicates the identifier was never issued by this process, or
// its entry has expired.
var ErrNotFound = errors.New("no result set with that ID")

// Entry is one stored result set.
type Entry struct {
	Rows      []map[string]any
	CreatedAt time.Time
}

// ResultStore is a process-lifetime cache of result sets. Identifiers are
// fresh UUIDs per Put, never reused for different content. Safe for
// concurrent use.
type ResultStore struct {
	cache *ttlcache.Cache[string, Entry]
}

// NewResultStore creates a result store. With ttl <= 0 entries are kept for
// the lifetime of the process; with a positive ttl they expire after it.
func NewResultStore(ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	cache := ttlcache.New(ttlcache.WithTTL[string, Entry](ttl))
	go cache.Start()
	return &ResultStore{cache: cache}
}

// Put stores the rows under a freshly generated identifier and returns it.
func (s *ResultStore) Put(rows []map[string]any) string {
	id := uuid.NewString()
	s.cache.Set(id, Entry{Rows: rows, CreatedAt: time.Now()}, ttlcache.DefaultTTL)
	return id
}

// Get returns the rows stored under the identifier.
func (s *ResultStore) Get(id string) ([]map[string]any, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrNotFound
	}
	return item.Value().Rows, nil
}

// Len returns the number of stored result sets.
func (s *ResultStore) Len() int {
	return s.cache.Len()
}

// Stop shuts down the cache's expiration loop.
func (s *ResultStore) Stop() {
	s.cache.Stop()
}
