package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/bom-weather/internal/bom"
	"github.com/i474232898/bom-weather/internal/weather"

	log "github.com/sirupsen/logrus"
)

// LocationConfig is one tracked location as configured. It is resolved to a
// BoM location at startup.
type LocationConfig struct {
	Name       string   `validate:"required"`
	PostalCode string   `validate:"omitempty,numeric,len=4"`
	Latitude   *float64 `validate:"omitempty,latitude"`
	Longitude  *float64 `validate:"omitempty,longitude"`
	// SelectID picks one candidate when a postal code matches several.
	SelectID string
}

type AppConfig struct {
	BaseURL     string        `validate:"required,url"`
	UserAgent   string        `validate:"required"`
	HTTPTimeout time.Duration `validate:"gt=0"`

	// FetchInterval controls how often the scheduler refreshes each location.
	FetchInterval time.Duration
	// MinRefreshInterval is the coordinator's minimum gap between refreshes.
	MinRefreshInterval time.Duration `validate:"gt=0"`
	RefreshTimeout     time.Duration `validate:"gt=0"`
	Backoff            weather.BackoffConfig

	Options weather.Options

	// Locations to track.
	Locations []LocationConfig `validate:"dive"`

	// RedisURL enables the Redis temperature store; empty keeps it in memory.
	RedisURL string `validate:"omitempty,url"`
	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	Port     string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.WithFields(log.Fields{"error": err}).Info("no .env file loaded")
	}
	cfg := &AppConfig{}

	cfg.BaseURL = getenvDefault("BOM_BASE_URL", bom.DefaultBaseURL)
	cfg.UserAgent = getenvDefault("BOM_USER_AGENT", bom.DefaultUserAgent)

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "10m"); err != nil {
		return nil, err
	}
	if cfg.MinRefreshInterval, err = getenvDuration("MIN_REFRESH_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	if cfg.RefreshTimeout, err = getenvDuration("REFRESH_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	// Scheduled runs never come faster than the coordinator would refresh.
	if cfg.FetchInterval < cfg.MinRefreshInterval {
		cfg.FetchInterval = cfg.MinRefreshInterval
	}

	cfg.Backoff.MaxRetries = getenvInt("REFRESH_MAX_RETRIES", 2)
	if cfg.Backoff.InitialInterval, err = getenvDuration("REFRESH_BACKOFF_INITIAL", "2s"); err != nil {
		return nil, err
	}
	if cfg.Backoff.MaxInterval, err = getenvDuration("REFRESH_BACKOFF_MAX", "8s"); err != nil {
		return nil, err
	}

	cfg.Options = weather.Options{
		IncludeObservations: getenvBool("INCLUDE_OBSERVATIONS", true),
		IncludeDaily:        getenvBool("INCLUDE_DAILY", true),
		IncludeHourly:       getenvBool("INCLUDE_HOURLY", true),
		IncludeWarnings:     getenvBool("INCLUDE_WARNINGS", true),
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.Port = getenvDefault("PORT", "8080")

	locs, err := loadLocations()
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// CoordinatorConfig returns the per-location refresh settings.
func (c *AppConfig) CoordinatorConfig() weather.CoordinatorConfig {
	return weather.CoordinatorConfig{
		MinRefreshInterval: c.MinRefreshInterval,
		RefreshTimeout:     c.RefreshTimeout,
		Backoff:            c.Backoff,
		Options:            c.Options,
	}
}

// loadLocations reads the parallel comma-separated location lists. Every
// non-empty list must have one entry per name; entries may be blank.
func loadLocations() ([]LocationConfig, error) {
	names := splitList(os.Getenv("WEATHER_LOCATION_NAME"))
	if len(names) == 0 {
		return nil, nil
	}

	lists := map[string][]string{}
	for _, key := range []string{"WEATHER_LOCATION_POSTCODE", "WEATHER_LOCATION_LAT", "WEATHER_LOCATION_LON", "WEATHER_LOCATION_ID"} {
		values := splitList(os.Getenv(key))
		if len(values) != 0 && len(values) != len(names) {
			return nil, fmt.Errorf("%s has %d entries, want %d (one per WEATHER_LOCATION_NAME)", key, len(values), len(names))
		}
		lists[key] = values
	}
	at := func(key string, i int) string {
		if v := lists[key]; len(v) > i {
			return v[i]
		}
		return ""
	}

	var locs []LocationConfig
	for i, name := range names {
		lat, err := parseOptionalFloat("WEATHER_LOCATION_LAT", at("WEATHER_LOCATION_LAT", i))
		if err != nil {
			return nil, err
		}
		lon, err := parseOptionalFloat("WEATHER_LOCATION_LON", at("WEATHER_LOCATION_LON", i))
		if err != nil {
			return nil, err
		}
		loc := LocationConfig{
			Name:       name,
			PostalCode: at("WEATHER_LOCATION_POSTCODE", i),
			Latitude:   lat,
			Longitude:  lon,
			SelectID:   at("WEATHER_LOCATION_ID", i),
		}
		if loc.PostalCode == "" && (loc.Latitude == nil || loc.Longitude == nil) {
			return nil, fmt.Errorf("location %q: provide coordinates or a postal code", name)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseOptionalFloat(key, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s entry %q: %w", key, s, err)
	}
	return &v, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
