package weather

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Magnus-Tetens coefficients.
const (
	magnusA = 17.27
	magnusB = 237.7
)

// DewPoint estimates the dew point in °C from temperature (°C) and relative
// humidity (%). It returns nil when either input is missing or humidity is
// not positive.
func DewPoint(temp, humidity *float64) *float64 {
	if temp == nil || humidity == nil || *humidity <= 0 {
		return nil
	}
	t, rh := *temp, *humidity
	gamma := magnusA*t/(magnusB+t) + math.Log(rh/100)
	if gamma == magnusA {
		return nil
	}
	dp := round1(magnusB * gamma / (magnusA - gamma))
	if math.IsNaN(dp) || math.IsInf(dp, 0) {
		return nil
	}
	return &dp
}

// DeltaT is the temperature minus the dew point, used as a spraying-conditions
// indicator. It returns nil when either input is missing.
func DeltaT(temp, dewPoint *float64) *float64 {
	if temp == nil || dewPoint == nil {
		return nil
	}
	dt := round1(*temp - *dewPoint)
	return &dt
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

var compassPoints = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Bearing converts a 16-point compass direction to degrees. Calm, variable or
// unknown directions yield nil.
func Bearing(direction string) *float64 {
	d := strings.ToUpper(strings.TrimSpace(direction))
	for i, p := range compassPoints {
		if p == d {
			deg := float64(i) * 22.5
			return &deg
		}
	}
	return nil
}

// NormalizeIcon reconciles the icon descriptor with day/night: sunny skies at
// night are clear, and clear skies by day are sunny.
func NormalizeIcon(descriptor string, isNight bool) string {
	switch {
	case isNight && (descriptor == "sunny" || descriptor == "mostly_sunny"):
		return "clear"
	case !isNight && descriptor == "clear":
		return "sunny"
	default:
		return descriptor
	}
}

var iconConditions = map[string]Condition{
	"sunny":         ConditionSunny,
	"clear":         ConditionClear,
	"mostly_sunny":  ConditionPartlyCloudy,
	"partly_cloudy": ConditionPartlyCloudy,
	"cloudy":        ConditionCloudy,
	"hazy":          ConditionHaze,
	"dusty":         ConditionHaze,
	"fog":           ConditionFog,
	"windy":         ConditionWindy,
	"light_rain":    ConditionRain,
	"light_shower":  ConditionRain,
	"shower":        ConditionRain,
	"heavy_shower":  ConditionRain,
	"rain":          ConditionRain,
	"frost":         ConditionSnow,
	"snow":          ConditionSnow,
	"storm":         ConditionStorm,
	"cyclone":       ConditionCyclone,
}

// ConditionFor maps a BoM icon descriptor to a Condition.
func ConditionFor(descriptor string) Condition {
	if c, ok := iconConditions[strings.ToLower(descriptor)]; ok {
		return c
	}
	return ConditionUnknown
}

// rainRange fills in a missing maximum with the minimum and renders the
// amount as a label, joining distinct bounds with sep.
func rainRange(lo, hi *float64, sep string) (*float64, string) {
	if lo == nil {
		return hi, ""
	}
	if hi == nil {
		return lo, formatNumber(*lo)
	}
	return hi, formatNumber(*lo) + sep + formatNumber(*hi)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var titleCaser = cases.Title(language.English)

// UVCategoryLabel renders a BoM UV category such as "veryhigh" as "Very High".
func UVCategoryLabel(category string) string {
	if category == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(strings.ToLower(category), "veryhigh", "very high"))
}

// uvForecast builds the sun-protection sentence for a day, with times shown
// in the location's timezone.
func uvForecast(category string, maxIndex *float64, start, end *time.Time, tz *time.Location) string {
	if category == "" || maxIndex == nil {
		return ""
	}
	reach := fmt.Sprintf("UV Index predicted to reach %s [%s]", formatNumber(*maxIndex), UVCategoryLabel(category))
	if start == nil || end == nil {
		return "Sun protection not required, " + reach
	}
	return fmt.Sprintf("Sun protection recommended from %s to %s, %s",
		clockLabel(start.In(tz)), clockLabel(end.In(tz)), reach)
}

func clockLabel(t time.Time) string {
	return strings.ToLower(t.Format("3:04PM"))
}

func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// loadTimezone returns the named zone, falling back to UTC when the name is
// empty or unknown.
func loadTimezone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return tz
}

// localDay returns midnight of t's calendar date in tz.
func localDay(t time.Time, tz *time.Location) time.Time {
	lt := t.In(tz)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, tz)
}
