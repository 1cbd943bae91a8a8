package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/bom-weather/internal/api/http"
	"github.com/i474232898/bom-weather/internal/bom"
	"github.com/i474232898/bom-weather/internal/config"
	"github.com/i474232898/bom-weather/internal/resolver"
	"github.com/i474232898/bom-weather/internal/scheduler"
	"github.com/i474232898/bom-weather/internal/store"
	"github.com/i474232898/bom-weather/internal/weather"

	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
}

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("failed to load config")
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Shared HTTP client for outbound BoM calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	gateway := bom.NewClient(httpClient, bom.WithBaseURL(cfg.BaseURL), bom.WithUserAgent(cfg.UserAgent))
	res := resolver.New(gateway)
	aggregator := weather.NewAggregator(gateway)

	temps, closeTemps := newTempStore(cfg)
	defer closeTemps()

	// Resolve configured locations once; ambiguous ones are logged and skipped.
	tracker := weather.NewTracker()
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	for _, lc := range cfg.Locations {
		loc, err := resolveLocation(startupCtx, res, lc)
		if err != nil {
			continue
		}
		coord := weather.NewCoordinator(loc, aggregator, temps, cfg.CoordinatorConfig())
		if err := tracker.Add(lc.Name, coord); err != nil {
			log.WithFields(log.Fields{"location": lc.Name, "error": err}).Error("failed to track location")
		}
	}
	cancelStartup()

	// Scheduler that periodically refreshes snapshots.
	sched := scheduler.New(tracker, cfg.FetchInterval, cfg.RefreshTimeout)
	if err := sched.Start(); err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("failed to start scheduler")
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "bom-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.RefreshTimeout + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "bom-weather",
			"locations": tracker.Len(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{Tracker: tracker, Resolver: res, Warnings: gateway})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithFields(log.Fields{"error": err}).Info("fiber server stopped")
		}
	}()
	log.WithFields(log.Fields{"port": cfg.Port, "locations": tracker.Names()}).Info("bom-weather started")

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithFields(log.Fields{"error": err}).Error("error during shutdown")
	}
}

// resolveLocation turns one configured location into a described BoM location.
func resolveLocation(ctx context.Context, res *resolver.Resolver, lc config.LocationConfig) (weather.Location, error) {
	fields := log.Fields{"location": lc.Name, "postcode": lc.PostalCode}
	q := resolver.Query{Latitude: lc.Latitude, Longitude: lc.Longitude, PostalCode: lc.PostalCode}

	loc, err := res.ResolveUnique(ctx, q, lc.SelectID)
	if err != nil {
		var rerr *resolver.ResolutionError
		if errors.As(err, &rerr) && rerr.Kind == resolver.AmbiguousPostalCode {
			for _, c := range rerr.Candidates {
				log.WithFields(fields).WithFields(log.Fields{"id": c.ID, "candidate": c.Label()}).Warn("candidate location")
			}
			log.WithFields(fields).Error("postal code is ambiguous; set WEATHER_LOCATION_ID to one of the candidate ids")
			return weather.Location{}, err
		}
		log.WithFields(fields).WithFields(log.Fields{"error": err}).Error("failed to resolve location")
		return weather.Location{}, err
	}

	described, err := res.Describe(ctx, loc)
	if err != nil {
		// Timezone falls back to UTC; the location is still usable.
		log.WithFields(fields).WithFields(log.Fields{"error": err}).Warn("failed to describe location")
		return loc, nil
	}
	log.WithFields(fields).WithFields(log.Fields{"geohash": described.Geohash, "timezone": described.Timezone}).Info("tracking location")
	return described, nil
}

func newTempStore(cfg *config.AppConfig) (weather.TempStore, func()) {
	if cfg.RedisURL == "" {
		return store.NewMemoryStore(weather.TempStoreTTL), func() {}
	}
	rs, err := store.NewRedisStore(cfg.RedisURL, weather.TempStoreTTL)
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("failed to configure redis")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rs.Ping(ctx); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("redis unreachable; falling back to in-memory temperature store")
		rs.Close()
		return store.NewMemoryStore(weather.TempStoreTTL), func() {}
	}
	return rs, func() { rs.Close() }
}
