package bom

// Wire types for the BoM JSON endpoints. Every nullable upstream field is a
// pointer so that "missing" never decodes as zero.

type envelope[T any] struct {
	Data     T        `json:"data"`
	Metadata Metadata `json:"metadata"`
}

// Metadata is the metadata block attached to most responses.
type Metadata struct {
	ResponseTimestamp string `json:"response_timestamp"`
	IssueTime         string `json:"issue_time"`
	ObservationTime   string `json:"observation_time"`
	NextIssueTime     string `json:"next_issue_time"`
	ForecastRegion    string `json:"forecast_region"`
}

// SearchResult is one candidate returned by the location search.
type SearchResult struct {
	Geohash  string `json:"geohash"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Postcode string `json:"postcode"`
	State    string `json:"state"`
}

// Station is the nearest observation station for a location.
type Station struct {
	BomID    string   `json:"bom_id"`
	Name     string   `json:"name"`
	Distance *float64 `json:"distance"`
}

// LocationInfo is the payload of /locations/{geohash}.
type LocationInfo struct {
	Geohash      string   `json:"geohash"`
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	State        string   `json:"state"`
	Timezone     string   `json:"timezone"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	MarineAreaID *string  `json:"marine_area_id"`
	TidalPoint   *string  `json:"tidal_point"`
	HasWave      bool     `json:"has_wave"`
	Station      *Station `json:"station"`
}

// Wind is a speed/direction pair as reported by observations.
type Wind struct {
	SpeedKilometre *float64 `json:"speed_kilometre"`
	SpeedKnot      *float64 `json:"speed_knot"`
	Direction      string   `json:"direction"`
}

// TimedValue is a value with the time it was recorded.
type TimedValue struct {
	Value *float64 `json:"value"`
	Time  string   `json:"time"`
}

// Observation is the payload of /locations/{geohash}/observations.
type Observation struct {
	Temp          *float64    `json:"temp"`
	TempFeelsLike *float64    `json:"temp_feels_like"`
	Humidity      *float64    `json:"humidity"`
	Wind          *Wind       `json:"wind"`
	Gust          *Wind       `json:"gust"`
	MaxGust       *Wind       `json:"max_gust"`
	Pressure      *float64    `json:"pressure"`
	VisibilityKm  *float64    `json:"visibility_km"`
	CloudOktas    *float64    `json:"cloud_oktas"`
	RainSince9am  *float64    `json:"rain_since_9am"`
	MaxTemp       *TimedValue `json:"max_temp"`
	MinTemp       *TimedValue `json:"min_temp"`
	Station       *Station    `json:"station"`
}

// ObservationsResult distinguishes "no observation station" from a failed call.
type ObservationsResult struct {
	Available bool
	Data      Observation
	Metadata  Metadata
}

// RainAmount is a forecast rainfall range; Max is null for single-valued amounts.
type RainAmount struct {
	Min        *float64 `json:"min"`
	Max        *float64 `json:"max"`
	LowerRange *float64 `json:"lower_range"`
	UpperRange *float64 `json:"upper_range"`
	Units      string   `json:"units"`
}

// Rain is the rain block of daily and hourly forecasts.
type Rain struct {
	Amount RainAmount `json:"amount"`
	Chance *float64   `json:"chance"`
}

// UV is the UV block of a daily forecast.
type UV struct {
	Category  *string  `json:"category"`
	MaxIndex  *float64 `json:"max_index"`
	StartTime *string  `json:"start_time"`
	EndTime   *string  `json:"end_time"`
}

// Astronomical holds sunrise and sunset.
type Astronomical struct {
	SunriseTime *string `json:"sunrise_time"`
	SunsetTime  *string `json:"sunset_time"`
}

// FireDangerCategory is the rated fire danger for a day.
type FireDangerCategory struct {
	Text          *string `json:"text"`
	DefaultColour *string `json:"default_colour"`
}

// Now is the "now/later" block that only the first daily entry carries.
type Now struct {
	IsNight    bool     `json:"is_night"`
	NowLabel   string   `json:"now_label"`
	LaterLabel string   `json:"later_label"`
	TempNow    *float64 `json:"temp_now"`
	TempLater  *float64 `json:"temp_later"`
}

// DailyForecast is one day of /forecasts/daily.
type DailyForecast struct {
	Date               string              `json:"date"`
	TempMax            *float64            `json:"temp_max"`
	TempMin            *float64            `json:"temp_min"`
	Rain               Rain                `json:"rain"`
	UV                 UV                  `json:"uv"`
	Astronomical       Astronomical        `json:"astronomical"`
	IconDescriptor     string              `json:"icon_descriptor"`
	ShortText          *string             `json:"short_text"`
	ExtendedText       *string             `json:"extended_text"`
	FireDanger         *string             `json:"fire_danger"`
	FireDangerCategory *FireDangerCategory `json:"fire_danger_category"`
	Now                *Now                `json:"now"`
}

// DailyForecastResponse is the full /forecasts/daily payload.
type DailyForecastResponse struct {
	Data     []DailyForecast
	Metadata Metadata
}

// HourlyWind is the wind block of an hourly forecast.
type HourlyWind struct {
	SpeedKilometre     *float64 `json:"speed_kilometre"`
	SpeedKnot          *float64 `json:"speed_knot"`
	Direction          string   `json:"direction"`
	GustSpeedKilometre *float64 `json:"gust_speed_kilometre"`
	GustSpeedKnot      *float64 `json:"gust_speed_knot"`
}

// HourlyForecast is one point of /forecasts/hourly.
type HourlyForecast struct {
	Time               string     `json:"time"`
	Temp               *float64   `json:"temp"`
	TempFeelsLike      *float64   `json:"temp_feels_like"`
	DewPoint           *float64   `json:"dew_point"`
	RelativeHumidity   *float64   `json:"relative_humidity"`
	UV                 *float64   `json:"uv"`
	Rain               Rain       `json:"rain"`
	Wind               HourlyWind `json:"wind"`
	IconDescriptor     string     `json:"icon_descriptor"`
	IsNight            bool       `json:"is_night"`
	NextForecastPeriod string     `json:"next_forecast_period"`
}

// HourlyForecastResponse is the full /forecasts/hourly payload.
type HourlyForecastResponse struct {
	Data     []HourlyForecast
	Metadata Metadata
}

// Warning is one entry of /locations/{geohash}/warnings.
type Warning struct {
	ID               string `json:"id"`
	AreaID           string `json:"area_id"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	ShortTitle       string `json:"short_title"`
	State            string `json:"state"`
	WarningGroupType string `json:"warning_group_type"`
	IssueTime        string `json:"issue_time"`
	ExpiryTime       string `json:"expiry_time"`
	Phase            string `json:"phase"`
}

// WarningDetail is the payload of /warnings/{id}. Message is the HTML body as
// served; Text is the same content reduced to plain text.
type WarningDetail struct {
	Warning
	Message string `json:"message"`
	Text    string `json:"text"`
}
