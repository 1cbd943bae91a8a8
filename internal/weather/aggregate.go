package weather

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/bom-weather/internal/bom"

	log "github.com/sirupsen/logrus"
)

const (
	categoryObservations = "observations"
	categoryDaily        = "daily"
	categoryHourly       = "hourly"
	categoryWarnings     = "warnings"
)

var categoryOrder = []string{categoryObservations, categoryDaily, categoryHourly, categoryWarnings}

// Options selects which data categories an aggregation fetches.
type Options struct {
	IncludeObservations bool
	IncludeDaily        bool
	IncludeHourly       bool
	IncludeWarnings     bool
}

// AllCategories enables every category.
func AllCategories() Options {
	return Options{IncludeObservations: true, IncludeDaily: true, IncludeHourly: true, IncludeWarnings: true}
}

func (o Options) enabled() int {
	n := 0
	for _, on := range []bool{o.IncludeObservations, o.IncludeDaily, o.IncludeHourly, o.IncludeWarnings} {
		if on {
			n++
		}
	}
	return n
}

// Aggregator fetches the enabled categories for a location concurrently and
// merges them into one snapshot.
type Aggregator struct {
	gateway Gateway
	now     func() time.Time
}

// NewAggregator creates an Aggregator reading from gateway.
func NewAggregator(gateway Gateway) *Aggregator {
	return &Aggregator{gateway: gateway, now: time.Now}
}

// Aggregate builds a snapshot for loc. A failed category is recorded on its
// section; the error is non-nil only when every enabled category failed, in
// which case the partially filled snapshot is still returned.
func (a *Aggregator) Aggregate(ctx context.Context, loc Location, opts Options) (WeatherSnapshot, error) {
	now := a.now()
	snap := WeatherSnapshot{
		ID:          uuid.New(),
		Location:    loc,
		FetchedAt:   now.UTC(),
		Observation: Section[*Observation]{Status: StatusNotRequested},
		Daily:       Section[[]DailyForecastDay]{Status: StatusNotRequested},
		Hourly:      Section[[]HourlyForecastPoint]{Status: StatusNotRequested},
		Warnings:    Section[*WarningSummary]{Status: StatusNotRequested},
	}

	if opts.enabled() == 0 {
		return snap, nil
	}

	tz := loadTimezone(loc.Timezone)
	logger := log.WithFields(log.Fields{"location": loc.Name, "geohash": loc.Geohash})

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		causes = make(map[string]error)
	)
	fail := func(category string, err error) {
		mu.Lock()
		causes[category] = err
		mu.Unlock()
		logger.WithFields(log.Fields{"category": category, "error": err}).Warn("category fetch failed")
	}

	if opts.IncludeObservations {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.gateway.Observations(ctx, loc.ShortGeohash())
			if err != nil {
				snap.Observation = failedSection[*Observation](err)
				fail(categoryObservations, err)
				return
			}
			if !res.Available {
				snap.Observation = Section[*Observation]{Status: StatusUnavailable}
				return
			}
			snap.Observation = Section[*Observation]{Status: StatusOK, Data: newObservation(res)}
		}()
	}

	if opts.IncludeDaily {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := a.gateway.DailyForecast(ctx, loc.Geohash)
			if err != nil {
				snap.Daily = failedSection[[]DailyForecastDay](err)
				fail(categoryDaily, err)
				return
			}
			snap.Daily = Section[[]DailyForecastDay]{Status: StatusOK, Data: newDailyForecast(resp.Data, tz, now)}
		}()
	}

	if opts.IncludeHourly {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := a.gateway.HourlyForecast(ctx, loc.ShortGeohash())
			if err != nil {
				snap.Hourly = failedSection[[]HourlyForecastPoint](err)
				fail(categoryHourly, err)
				return
			}
			snap.Hourly = Section[[]HourlyForecastPoint]{Status: StatusOK, Data: newHourlyForecast(resp.Data)}
		}()
	}

	if opts.IncludeWarnings {
		wg.Add(1)
		go func() {
			defer wg.Done()
			warnings, err := a.gateway.Warnings(ctx, loc.Geohash)
			if err != nil {
				snap.Warnings = failedSection[*WarningSummary](err)
				fail(categoryWarnings, err)
				return
			}
			records := make([]WarningRecord, 0, len(warnings))
			for _, w := range warnings {
				records = append(records, NewWarningRecord(w))
			}
			snap.Warnings = Section[*WarningSummary]{Status: StatusOK, Data: Classify(records)}
		}()
	}

	wg.Wait()

	if obs := snap.Observation.Data; obs != nil && snap.Location.Station == nil {
		snap.Location.Station = obs.Station
	}

	if len(causes) == opts.enabled() {
		return snap, &AggregationError{Causes: causes}
	}
	logger.WithFields(log.Fields{"failed": len(causes), "snapshot": snap.ID}).Debug("aggregation complete")
	return snap, nil
}

func failedSection[T any](err error) Section[T] {
	return Section[T]{Status: StatusFailed, Error: err.Error()}
}

func newStation(s *bom.Station) *Station {
	if s == nil {
		return nil
	}
	return &Station{ID: s.BomID, Name: s.Name, DistanceM: s.Distance}
}

func newObservation(res bom.ObservationsResult) *Observation {
	d := res.Data
	obs := &Observation{
		ObservedAt:          parseTime(&res.Metadata.ObservationTime),
		Station:             newStation(d.Station),
		Temperature:         d.Temp,
		ApparentTemperature: d.TempFeelsLike,
		Humidity:            d.Humidity,
		PressureHpa:         d.Pressure,
		VisibilityKm:        d.VisibilityKm,
		CloudOktas:          d.CloudOktas,
		RainSince9am:        d.RainSince9am,
	}
	if d.Wind != nil {
		obs.WindSpeedKmh = d.Wind.SpeedKilometre
		obs.WindSpeedKnot = d.Wind.SpeedKnot
		obs.WindDirection = d.Wind.Direction
		obs.WindBearing = Bearing(d.Wind.Direction)
	}
	if d.Gust != nil {
		obs.GustSpeedKmh = d.Gust.SpeedKilometre
		obs.GustSpeedKnot = d.Gust.SpeedKnot
	}
	if d.MaxTemp != nil {
		obs.MaxTemperature = d.MaxTemp.Value
	}
	if d.MinTemp != nil {
		obs.MinTemperature = d.MinTemp.Value
	}
	obs.DewPoint = DewPoint(obs.Temperature, obs.Humidity)
	obs.DeltaT = DeltaT(obs.Temperature, obs.DewPoint)
	return obs
}

// newDailyForecast converts the daily entries, sorted ascending, dropping days
// before today in tz. Only the first remaining day may carry a Now block.
func newDailyForecast(entries []bom.DailyForecast, tz *time.Location, now time.Time) []DailyForecastDay {
	today := localDay(now, tz)
	days := make([]DailyForecastDay, 0, len(entries))

	for _, e := range entries {
		date := parseTime(&e.Date)
		if date == nil {
			continue
		}
		day := localDay(*date, tz)
		if day.Before(today) {
			continue
		}

		d := DailyForecastDay{
			Date:           day,
			TempMax:        e.TempMax,
			TempMin:        e.TempMin,
			RainChance:     e.Rain.Chance,
			RainAmountMin:  e.Rain.Amount.Min,
			UVCategory:     stringValue(e.UV.Category),
			UVMaxIndex:     e.UV.MaxIndex,
			UVStartTime:    parseTime(e.UV.StartTime),
			UVEndTime:      parseTime(e.UV.EndTime),
			Sunrise:        parseTime(e.Astronomical.SunriseTime),
			Sunset:         parseTime(e.Astronomical.SunsetTime),
			IconDescriptor: e.IconDescriptor,
			ShortText:      stringValue(e.ShortText),
			ExtendedText:   stringValue(e.ExtendedText),
			FireDanger:     stringValue(e.FireDanger),
		}
		d.RainAmountMax, d.RainRange = rainRange(e.Rain.Amount.Min, e.Rain.Amount.Max, "–")
		d.UVForecast = uvForecast(d.UVCategory, d.UVMaxIndex, d.UVStartTime, d.UVEndTime, tz)
		if fd := e.FireDangerCategory; fd != nil {
			if d.FireDanger == "" {
				d.FireDanger = stringValue(fd.Text)
			}
			d.FireDangerColour = stringValue(fd.DefaultColour)
		}
		if e.Now != nil {
			d.Now = &NowBlock{
				IsNight:    e.Now.IsNight,
				NowLabel:   e.Now.NowLabel,
				TempNow:    e.Now.TempNow,
				LaterLabel: e.Now.LaterLabel,
				TempLater:  e.Now.TempLater,
			}
		}
		days = append(days, d)
	}

	sort.SliceStable(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	for i := range days {
		if i > 0 {
			days[i].Now = nil
			days[i].Condition = ConditionFor(days[i].IconDescriptor)
			continue
		}
		night := days[0].Now != nil && days[0].Now.IsNight
		days[0].IconDescriptor = NormalizeIcon(days[0].IconDescriptor, night)
		days[0].Condition = ConditionFor(days[0].IconDescriptor)
	}
	return days
}

// newHourlyForecast converts the hourly points, sorted ascending by time.
func newHourlyForecast(entries []bom.HourlyForecast) []HourlyForecastPoint {
	points := make([]HourlyForecastPoint, 0, len(entries))
	for _, e := range entries {
		ts := parseTime(&e.Time)
		if ts == nil {
			continue
		}
		icon := NormalizeIcon(e.IconDescriptor, e.IsNight)
		p := HourlyForecastPoint{
			Time:                *ts,
			Temperature:         e.Temp,
			ApparentTemperature: e.TempFeelsLike,
			DewPoint:            e.DewPoint,
			Humidity:            e.RelativeHumidity,
			UV:                  e.UV,
			WindSpeedKmh:        e.Wind.SpeedKilometre,
			WindSpeedKnot:       e.Wind.SpeedKnot,
			WindDirection:       e.Wind.Direction,
			WindBearing:         Bearing(e.Wind.Direction),
			GustSpeedKmh:        e.Wind.GustSpeedKilometre,
			GustSpeedKnot:       e.Wind.GustSpeedKnot,
			RainChance:          e.Rain.Chance,
			RainAmountMin:       e.Rain.Amount.Min,
			IconDescriptor:      icon,
			Condition:           ConditionFor(icon),
			IsNight:             e.IsNight,
			NextForecastPeriod:  e.NextForecastPeriod,
		}
		p.RainAmountMax, p.RainRange = rainRange(e.Rain.Amount.Min, e.Rain.Amount.Max, " to ")
		points = append(points, p)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points
}
