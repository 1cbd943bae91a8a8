package weather

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAllCategoriesFailed is matched by errors.Is when every enabled data
	// category failed in one aggregation.
	ErrAllCategoriesFailed = errors.New("all requested categories failed")
	// ErrNoSnapshotAvailable is matched by errors.Is when a refresh failed and
	// there is no earlier snapshot to fall back to.
	ErrNoSnapshotAvailable = errors.New("no snapshot available")
	// ErrUnknownLocation is returned by the Tracker for names it does not track.
	ErrUnknownLocation = errors.New("unknown location")
)

// AggregationError reports that no enabled category produced data. Causes is
// keyed by category name.
type AggregationError struct {
	Causes map[string]error
}

func (e *AggregationError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for _, category := range categoryOrder {
		if err, ok := e.Causes[category]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", category, err))
		}
	}
	return fmt.Sprintf("%s (%s)", ErrAllCategoriesFailed, strings.Join(parts, "; "))
}

func (e *AggregationError) Is(target error) bool {
	return target == ErrAllCategoriesFailed
}

// CoordinatorError is returned by GetSnapshot when a refresh could not produce
// a snapshot and none is cached.
type CoordinatorError struct {
	Location string
	Err      error
}

func (e *CoordinatorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Location, ErrNoSnapshotAvailable)
	}
	return fmt.Sprintf("%s: %s: %v", e.Location, ErrNoSnapshotAvailable, e.Err)
}

func (e *CoordinatorError) Unwrap() error {
	return e.Err
}

func (e *CoordinatorError) Is(target error) bool {
	return target == ErrNoSnapshotAvailable
}
