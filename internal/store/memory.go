package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/bom-weather/internal/weather"
)

var (
	// ErrNotFound is returned when nothing is remembered for a location.
	ErrNotFound = errors.New("no temperatures remembered for location")
)

type memoryEntry struct {
	temps   weather.TodayTemps
	savedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory weather.TempStore.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key
	data map[string]memoryEntry

	// maxAge drops entries older than this; zero keeps them forever.
	maxAge time.Duration
	now    func() time.Time
}

// NewMemoryStore creates a MemoryStore whose entries expire after maxAge.
func NewMemoryStore(maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]memoryEntry),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// SaveTodayTemps replaces the remembered temperatures for loc and evicts
// expired entries.
func (s *MemoryStore) SaveTodayTemps(_ context.Context, loc weather.Location, temps weather.TodayTemps) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[loc.Key()] = memoryEntry{temps: temps, savedAt: now}

	if s.maxAge > 0 {
		cutoff := now.Add(-s.maxAge)
		for key, e := range s.data {
			if e.savedAt.Before(cutoff) {
				delete(s.data, key)
			}
		}
	}
	return nil
}

// GetTodayTemps returns the remembered temperatures for loc.
func (s *MemoryStore) GetTodayTemps(_ context.Context, loc weather.Location) (weather.TodayTemps, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[loc.Key()]
	if !ok {
		return weather.TodayTemps{}, ErrNotFound
	}
	if s.maxAge > 0 && s.now().Sub(e.savedAt) > s.maxAge {
		return weather.TodayTemps{}, ErrNotFound
	}
	return e.temps, nil
}
