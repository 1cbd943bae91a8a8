package weather

import (
	"fmt"
	"sort"
	"sync"

	"github.com/i474232898/bom-weather/internal/common"
)

// Tracker is the registry of tracked locations, keyed by slugged name.
type Tracker struct {
	mu           sync.RWMutex
	coordinators map[string]*Coordinator
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{coordinators: make(map[string]*Coordinator)}
}

// Add registers c under name. Names are case and separator insensitive.
func (t *Tracker) Add(name string, c *Coordinator) error {
	key := common.Slug(name)
	if key == "" {
		return fmt.Errorf("empty location name")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.coordinators[key]; ok {
		return fmt.Errorf("location %q already tracked", key)
	}
	t.coordinators[key] = c
	return nil
}

// Get returns the coordinator registered under name.
func (t *Tracker) Get(name string) (*Coordinator, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.coordinators[common.Slug(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, name)
	}
	return c, nil
}

// Names returns the registered keys in sorted order.
func (t *Tracker) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.coordinators))
	for name := range t.coordinators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of tracked locations.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.coordinators)
}
