package weather

import (
	"time"

	"github.com/google/uuid"
)

// Condition represents a normalized high-level weather condition derived from
// the BoM icon descriptor.
type Condition string

const (
	ConditionUnknown      Condition = "unknown"
	ConditionClear        Condition = "clear"
	ConditionSunny        Condition = "sunny"
	ConditionPartlyCloudy Condition = "partly_cloudy"
	ConditionCloudy       Condition = "cloudy"
	ConditionRain         Condition = "rain"
	ConditionSnow         Condition = "snow"
	ConditionStorm        Condition = "storm"
	ConditionFog          Condition = "fog"
	ConditionWindy        Condition = "windy"
	ConditionHaze         Condition = "haze"
	ConditionCyclone      Condition = "cyclone"
)

// Station is the observation station nearest a location.
type Station struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	DistanceM *float64 `json:"distanceM,omitempty"`
}

// Location is a resolved forecast point. It is a value: once resolved it is
// never mutated, only replaced.
type Location struct {
	ID         string `json:"id,omitempty"`
	Geohash    string `json:"geohash"`
	Name       string `json:"name"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode,omitempty"`
	Timezone   string `json:"timezone,omitempty"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	MarineAreaID *string  `json:"marineAreaId,omitempty"`
	TidalPointID *string  `json:"tidalPointId,omitempty"`
	Station      *Station `json:"station,omitempty"`
}

// ShortGeohash returns the geohash truncated to the 6 characters that the
// observation and hourly endpoints require. Shorter geohashes are returned
// unchanged; they are never padded.
func (l Location) ShortGeohash() string {
	if len(l.Geohash) > 6 {
		return l.Geohash[:6]
	}
	return l.Geohash
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.ShortGeohash()
}

// Label is the human-facing "Name (STATE)" form used when listing candidates.
func (l Location) Label() string {
	if l.State == "" {
		return l.Name
	}
	return l.Name + " (" + l.State + ")"
}

// SectionStatus records why a snapshot section holds what it holds.
type SectionStatus string

const (
	// StatusNotRequested means the category was disabled for this aggregation.
	StatusNotRequested SectionStatus = "not_requested"
	// StatusOK means the category was fetched and merged.
	StatusOK SectionStatus = "ok"
	// StatusUnavailable means the fetch succeeded but upstream has no data,
	// e.g. a location without an observation station.
	StatusUnavailable SectionStatus = "unavailable"
	// StatusFailed means the fetch failed; Error describes why.
	StatusFailed SectionStatus = "failed"
)

// Section is one independently fetched part of a snapshot. Data is only
// meaningful when Status is StatusOK.
type Section[T any] struct {
	Status SectionStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
	Data   T             `json:"data"`
}

// Failed reports whether the section's fetch failed.
func (s Section[T]) Failed() bool {
	return s.Status == StatusFailed
}

// WeatherSnapshot is the merged point-in-time view of one location.
// Snapshots are immutable once built; consumers must treat slices and
// pointers inside as read-only.
type WeatherSnapshot struct {
	ID        uuid.UUID `json:"id"`
	Location  Location  `json:"location"`
	FetchedAt time.Time `json:"fetchedAt"` // always UTC

	Observation Section[*Observation]          `json:"observation"`
	Daily       Section[[]DailyForecastDay]    `json:"daily"`
	Hourly      Section[[]HourlyForecastPoint] `json:"hourly"`
	Warnings    Section[*WarningSummary]       `json:"warnings"`
}

// Observation is the current-conditions block. Every measurement is optional;
// nil means upstream did not report it.
type Observation struct {
	ObservedAt *time.Time `json:"observedAt,omitempty"`
	Station    *Station   `json:"station,omitempty"`

	Temperature         *float64 `json:"temperatureC"`
	ApparentTemperature *float64 `json:"apparentTemperatureC"`
	Humidity            *float64 `json:"humidityPercent"`

	WindSpeedKmh  *float64 `json:"windSpeedKmh"`
	WindSpeedKnot *float64 `json:"windSpeedKnot"`
	WindDirection string   `json:"windDirection,omitempty"`
	WindBearing   *float64 `json:"windBearingDeg"`
	GustSpeedKmh  *float64 `json:"gustSpeedKmh"`
	GustSpeedKnot *float64 `json:"gustSpeedKnot"`

	PressureHpa  *float64 `json:"pressureHpa"`
	VisibilityKm *float64 `json:"visibilityKm"`
	CloudOktas   *float64 `json:"cloudOktas"`
	RainSince9am *float64 `json:"rainSince9amMm"`

	MaxTemperature *float64 `json:"maxTemperatureC"`
	MinTemperature *float64 `json:"minTemperatureC"`

	// DewPoint and DeltaT are derived; nil when temperature or humidity is missing.
	DewPoint *float64 `json:"dewPointC"`
	DeltaT   *float64 `json:"deltaT"`
}

// NowBlock is the "now/later" summary only today's forecast carries.
type NowBlock struct {
	IsNight    bool     `json:"isNight"`
	NowLabel   string   `json:"nowLabel"`
	TempNow    *float64 `json:"tempNowC"`
	LaterLabel string   `json:"laterLabel"`
	TempLater  *float64 `json:"tempLaterC"`
}

// DailyForecastDay is one day of the daily forecast.
type DailyForecastDay struct {
	Date time.Time `json:"date"` // midnight in the location's timezone

	TempMax *float64 `json:"tempMaxC"`
	// TempMin is nil once today's overnight minimum has passed upstream.
	TempMin *float64 `json:"tempMinC"`

	// LastKnownTempMax/Min hold the last valid value seen for the same date
	// when upstream has dropped it. They never replace TempMax/TempMin.
	LastKnownTempMax *float64 `json:"lastKnownTempMaxC,omitempty"`
	LastKnownTempMin *float64 `json:"lastKnownTempMinC,omitempty"`

	RainChance    *float64 `json:"rainChancePercent"`
	RainAmountMin *float64 `json:"rainAmountMinMm"`
	RainAmountMax *float64 `json:"rainAmountMaxMm"`
	RainRange     string   `json:"rainRange,omitempty"`

	UVCategory  string     `json:"uvCategory,omitempty"`
	UVMaxIndex  *float64   `json:"uvMaxIndex"`
	UVStartTime *time.Time `json:"uvStartTime,omitempty"`
	UVEndTime   *time.Time `json:"uvEndTime,omitempty"`
	UVForecast  string     `json:"uvForecast,omitempty"`

	Sunrise *time.Time `json:"sunrise,omitempty"`
	Sunset  *time.Time `json:"sunset,omitempty"`

	IconDescriptor string    `json:"iconDescriptor"`
	Condition      Condition `json:"condition"`
	ShortText      string    `json:"shortText,omitempty"`
	ExtendedText   string    `json:"extendedText,omitempty"`

	FireDanger       string `json:"fireDanger,omitempty"`
	FireDangerColour string `json:"fireDangerColour,omitempty"`

	Now *NowBlock `json:"now,omitempty"`
}

// TempMinAvailable reports whether upstream supplied a minimum for this day.
func (d DailyForecastDay) TempMinAvailable() bool {
	return d.TempMin != nil
}

// HourlyForecastPoint is one 3-hourly forecast entry.
type HourlyForecastPoint struct {
	Time time.Time `json:"time"`

	Temperature         *float64 `json:"temperatureC"`
	ApparentTemperature *float64 `json:"apparentTemperatureC"`
	DewPoint            *float64 `json:"dewPointC"`
	Humidity            *float64 `json:"humidityPercent"`
	UV                  *float64 `json:"uv"`

	WindSpeedKmh  *float64 `json:"windSpeedKmh"`
	WindSpeedKnot *float64 `json:"windSpeedKnot"`
	WindDirection string   `json:"windDirection,omitempty"`
	WindBearing   *float64 `json:"windBearingDeg"`
	GustSpeedKmh  *float64 `json:"gustSpeedKmh"`
	GustSpeedKnot *float64 `json:"gustSpeedKnot"`

	RainChance    *float64 `json:"rainChancePercent"`
	RainAmountMin *float64 `json:"rainAmountMinMm"`
	RainAmountMax *float64 `json:"rainAmountMaxMm"`
	RainRange     string   `json:"rainRange,omitempty"`

	IconDescriptor     string    `json:"iconDescriptor"`
	Condition          Condition `json:"condition"`
	IsNight            bool      `json:"isNight"`
	NextForecastPeriod string    `json:"nextForecastPeriod,omitempty"`
}

// RefreshMetadata describes the freshness of a Coordinator's snapshot.
type RefreshMetadata struct {
	LastSuccessfulFetch time.Time `json:"lastSuccessfulFetch"`
	LastAttempt         time.Time `json:"lastAttempt"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`
}

// Stale reports whether the most recent refresh attempt failed.
func (m RefreshMetadata) Stale() bool {
	return m.ConsecutiveFailures > 0
}
