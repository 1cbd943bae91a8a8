package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/bom-weather/internal/weather"
)

type countingSource struct {
	calls int32
}

func (s *countingSource) Aggregate(ctx context.Context, loc weather.Location, opts weather.Options) (weather.WeatherSnapshot, error) {
	atomic.AddInt32(&s.calls, 1)
	return weather.WeatherSnapshot{ID: uuid.New(), Location: loc, FetchedAt: time.Now().UTC()}, nil
}

func TestRunOnceRefreshesEveryLocation(t *testing.T) {
	tracker := weather.NewTracker()
	cfg := weather.DefaultCoordinatorConfig()

	sources := map[string]*countingSource{"Melbourne": {}, "Sydney": {}}
	for name, src := range sources {
		c := weather.NewCoordinator(weather.Location{Name: name, Geohash: "r1r0fs"}, src, nil, cfg)
		if err := tracker.Add(name, c); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	s := New(tracker, time.Minute, time.Second)
	s.RunOnce(context.Background())
	s.RunOnce(context.Background())

	for name, src := range sources {
		if n := atomic.LoadInt32(&src.calls); n != 1 {
			t.Fatalf("%s: expected one refresh within the minimum interval, got %d", name, n)
		}
	}
}

func TestStartWithoutLocations(t *testing.T) {
	s := New(weather.NewTracker(), time.Minute, time.Second)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}
