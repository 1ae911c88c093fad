package catalog

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store owns the live catalog. Readers get an immutable snapshot without locking;
// a refresh builds a new catalog and swaps it in atomically.
type Store struct {
	catalog atomic.Pointer[Catalog]
	mu      sync.Mutex // serializes refreshes
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the live catalog, or nil if none has been loaded.
func (s *Store) Get() *Catalog {
	return s.catalog.Load()
}

// Swap installs c as the live catalog and returns the previous one.
func (s *Store) Swap(c *Catalog) *Catalog {
	return s.catalog.Swap(c)
}

// AgeSeconds returns the age of the live catalog's source data in seconds, or -1
// if no catalog is loaded.
func (s *Store) AgeSeconds() float64 {
	c := s.catalog.Load()
	if c == nil {
		return -1
	}
	return time.Since(c.fetchedAt).Seconds()
}

// Lock acquires the refresh mutex.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the refresh mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
