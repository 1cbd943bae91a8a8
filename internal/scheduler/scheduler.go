package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/bom-weather/internal/weather"

	log "github.com/sirupsen/logrus"
)

// Scheduler periodically refreshes every tracked location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	tracker   *weather.Tracker
	interval  time.Duration
	timeout   time.Duration
}

// New creates a Scheduler. Intervals below one minute run every minute.
func New(tracker *weather.Tracker, interval, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		tracker:   tracker,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if s.tracker.Len() == 0 {
		log.Info("scheduler: no locations configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 1
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce asks every coordinator for its snapshot concurrently. Coordinators
// decide themselves whether that needs a remote refresh.
func (s *Scheduler) RunOnce(ctx context.Context) {
	log.Debug("scheduler: running refresh job")

	var wg sync.WaitGroup
	for _, name := range s.tracker.Names() {
		c, err := s.tracker.Get(name)
		if err != nil {
			continue
		}
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			if _, err := c.GetSnapshot(ctx, false); err != nil {
				log.WithFields(log.Fields{"location": name, "error": err}).Warn("scheduler: refresh failed")
			}
		}()
	}
	wg.Wait()
	log.Debug("scheduler: completed refresh job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
