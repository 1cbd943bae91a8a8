package weather

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// BackoffConfig controls exponential backoff between refresh attempts.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// delay returns the wait before retry number attempt (zero based).
func (b BackoffConfig) delay(attempt int) time.Duration {
	d := b.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
	if b.MaxInterval > 0 && d > b.MaxInterval {
		d = b.MaxInterval
	}
	return d
}

// CoordinatorConfig tunes a Coordinator.
type CoordinatorConfig struct {
	// MinRefreshInterval is the minimum time between remote refresh attempts
	// for non-forced calls.
	MinRefreshInterval time.Duration
	// RefreshTimeout bounds one refresh cycle including retries.
	RefreshTimeout time.Duration
	Backoff        BackoffConfig
	Options        Options
}

// DefaultCoordinatorConfig returns the production defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MinRefreshInterval: 5 * time.Minute,
		RefreshTimeout:     60 * time.Second,
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 2 * time.Second,
			MaxInterval:     8 * time.Second,
		},
		Options: AllCategories(),
	}
}

// Source produces snapshots. *Aggregator satisfies it.
type Source interface {
	Aggregate(ctx context.Context, loc Location, opts Options) (WeatherSnapshot, error)
}

// refreshCall is one in-flight refresh that concurrent callers share.
type refreshCall struct {
	done    chan struct{}
	snap    WeatherSnapshot
	err     error
	waiters int
}

// Coordinator owns the current snapshot for one location and decides when to
// refresh it. It is safe for concurrent use.
type Coordinator struct {
	loc    Location
	source Source
	temps  TempStore
	cfg    CoordinatorConfig
	now    func() time.Time

	mu       sync.Mutex
	snapshot *WeatherSnapshot
	meta     RefreshMetadata
	inflight *refreshCall
}

// NewCoordinator creates a Coordinator for loc. temps may be nil, in which
// case today's temperatures are not remembered across refreshes.
func NewCoordinator(loc Location, source Source, temps TempStore, cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		loc:    loc,
		source: source,
		temps:  temps,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Location returns the location this coordinator serves.
func (c *Coordinator) Location() Location {
	return c.loc
}

// Metadata returns a copy of the refresh bookkeeping.
func (c *Coordinator) Metadata() RefreshMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// GetSnapshot returns the current snapshot, refreshing it first when the
// minimum refresh interval has elapsed since the last attempt or force is set.
// Concurrent callers share a single refresh. When a refresh fails the previous
// snapshot is returned unchanged; with no previous snapshot the error matches
// ErrNoSnapshotAvailable.
func (c *Coordinator) GetSnapshot(ctx context.Context, force bool) (WeatherSnapshot, error) {
	c.mu.Lock()
	if call := c.inflight; call != nil {
		call.waiters++
		c.mu.Unlock()
		return c.wait(ctx, call)
	}

	now := c.now()
	if !force && !c.meta.LastAttempt.IsZero() && now.Sub(c.meta.LastAttempt) < c.cfg.MinRefreshInterval {
		defer c.mu.Unlock()
		if c.snapshot != nil {
			return *c.snapshot, nil
		}
		cerr := &CoordinatorError{Location: c.loc.Name}
		if c.meta.LastError != "" {
			cerr.Err = errors.New(c.meta.LastError)
		}
		return WeatherSnapshot{}, cerr
	}

	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.meta.LastAttempt = now
	c.mu.Unlock()

	go c.refresh(context.WithoutCancel(ctx), call)
	return c.wait(ctx, call)
}

func (c *Coordinator) wait(ctx context.Context, call *refreshCall) (WeatherSnapshot, error) {
	select {
	case <-call.done:
		return call.snap, call.err
	case <-ctx.Done():
		return WeatherSnapshot{}, ctx.Err()
	}
}

// waiting reports how many callers joined the in-flight refresh.
func (c *Coordinator) waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return 0
	}
	return c.inflight.waiters
}

func (c *Coordinator) refresh(parent context.Context, call *refreshCall) {
	ctx, cancel := context.WithTimeout(parent, c.cfg.RefreshTimeout)
	defer cancel()

	logger := log.WithFields(log.Fields{"location": c.loc.Name, "geohash": c.loc.Geohash})
	snap, err := c.aggregate(ctx, logger)
	if err == nil {
		c.preserveTodayTemps(ctx, &snap, logger)
	}

	c.mu.Lock()
	if err != nil {
		c.meta.ConsecutiveFailures++
		c.meta.LastError = err.Error()
		if c.snapshot != nil {
			call.snap = *c.snapshot
			logger.WithFields(log.Fields{"error": err, "failures": c.meta.ConsecutiveFailures}).Warn("refresh failed; serving stale snapshot")
		} else {
			call.err = &CoordinatorError{Location: c.loc.Name, Err: err}
			logger.WithFields(log.Fields{"error": err}).Error("refresh failed; no snapshot available")
		}
	} else {
		c.snapshot = &snap
		c.meta.LastSuccessfulFetch = snap.FetchedAt
		c.meta.ConsecutiveFailures = 0
		c.meta.LastError = ""
		call.snap = snap
		logger.WithFields(log.Fields{"snapshot": snap.ID}).Info("snapshot refreshed")
	}
	c.inflight = nil
	c.mu.Unlock()

	close(call.done)
}

// aggregate runs the source, retrying with backoff only when every category failed.
func (c *Coordinator) aggregate(ctx context.Context, logger *log.Entry) (WeatherSnapshot, error) {
	for attempt := 0; ; attempt++ {
		snap, err := c.source.Aggregate(ctx, c.loc, c.cfg.Options)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, ErrAllCategoriesFailed) || attempt >= c.cfg.Backoff.MaxRetries {
			return WeatherSnapshot{}, err
		}

		delay := c.cfg.Backoff.delay(attempt)
		logger.WithFields(log.Fields{"attempt": attempt + 1, "delay": delay, "error": err}).Info("retrying refresh")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return WeatherSnapshot{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// preserveTodayTemps records today's min/max and, when upstream has dropped
// either, exposes the remembered value as LastKnownTempMin/Max.
func (c *Coordinator) preserveTodayTemps(ctx context.Context, snap *WeatherSnapshot, logger *log.Entry) {
	if c.temps == nil || snap.Daily.Status != StatusOK || len(snap.Daily.Data) == 0 {
		return
	}
	tz := loadTimezone(c.loc.Timezone)
	today := &snap.Daily.Data[0]
	if !today.Date.Equal(localDay(snap.FetchedAt, tz)) {
		return
	}
	date := today.Date.Format("2006-01-02")

	stored, err := c.temps.GetTodayTemps(ctx, c.loc)
	if err != nil || stored.Date != date {
		stored = TodayTemps{Date: date}
	}

	changed := false
	if today.TempMin != nil {
		changed = changed || stored.Min == nil || *stored.Min != *today.TempMin
		v := *today.TempMin
		stored.Min = &v
	} else if stored.Min != nil {
		v := *stored.Min
		today.LastKnownTempMin = &v
	}
	if today.TempMax != nil {
		changed = changed || stored.Max == nil || *stored.Max != *today.TempMax
		v := *today.TempMax
		stored.Max = &v
	} else if stored.Max != nil {
		v := *stored.Max
		today.LastKnownTempMax = &v
	}

	if !changed {
		return
	}
	if err := c.temps.SaveTodayTemps(ctx, c.loc, stored); err != nil {
		logger.WithFields(log.Fields{"error": err}).Warn("failed to save today's temperatures")
	}
}
