package weather

import (
	"context"
	"time"

	"github.com/i474232898/bom-weather/internal/bom"
)

// Gateway abstracts the BoM endpoints the aggregator reads. *bom.Client
// satisfies it.
type Gateway interface {
	Observations(ctx context.Context, geohash string) (bom.ObservationsResult, error)
	DailyForecast(ctx context.Context, geohash string) (bom.DailyForecastResponse, error)
	HourlyForecast(ctx context.Context, geohash string) (bom.HourlyForecastResponse, error)
	Warnings(ctx context.Context, geohash string) ([]bom.Warning, error)
}

// TodayTemps is the last valid min/max seen for a location on one local date.
type TodayTemps struct {
	Date string   `json:"date"` // YYYY-MM-DD in the location's timezone
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
}

// TempStore remembers today's temperatures so they survive upstream dropping
// them later in the day. Implementations must be safe for concurrent use.
type TempStore interface {
	SaveTodayTemps(ctx context.Context, loc Location, temps TodayTemps) error
	GetTodayTemps(ctx context.Context, loc Location) (TodayTemps, error)
}

// TempStoreTTL bounds how long remembered temperatures are kept.
const TempStoreTTL = 48 * time.Hour
