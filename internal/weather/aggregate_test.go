package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/bom-weather/internal/bom"
)

func f64(v float64) *float64 { return &v }

func str(s string) *string { return &s }

// fakeGateway records calls per endpoint and serves canned responses. When
// block is set every call waits for it to close.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string][]string
	block chan struct{}

	obs       bom.ObservationsResult
	obsErr    error
	daily     bom.DailyForecastResponse
	dailyErr  error
	hourly    bom.HourlyForecastResponse
	hourlyErr error
	warnings  []bom.Warning
	warnErr   error
}

func (g *fakeGateway) record(endpoint, hash string) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string][]string)
	}
	g.calls[endpoint] = append(g.calls[endpoint], hash)
	block := g.block
	g.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (g *fakeGateway) callCount(endpoint string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls[endpoint])
}

func (g *fakeGateway) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += len(c)
	}
	return n
}

func (g *fakeGateway) failAll(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.obsErr, g.dailyErr, g.hourlyErr, g.warnErr = err, err, err, err
}

func (g *fakeGateway) Observations(ctx context.Context, hash string) (bom.ObservationsResult, error) {
	g.record("observations", hash)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.obs, g.obsErr
}

func (g *fakeGateway) DailyForecast(ctx context.Context, hash string) (bom.DailyForecastResponse, error) {
	g.record("daily", hash)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.daily, g.dailyErr
}

func (g *fakeGateway) HourlyForecast(ctx context.Context, hash string) (bom.HourlyForecastResponse, error) {
	g.record("hourly", hash)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hourly, g.hourlyErr
}

func (g *fakeGateway) Warnings(ctx context.Context, hash string) ([]bom.Warning, error) {
	g.record("warnings", hash)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.warnings, g.warnErr
}

var melbourne = Location{
	Geohash:  "r1r0fsn",
	Name:     "Melbourne",
	State:    "VIC",
	Timezone: "Australia/Melbourne",
}

// noon on 1 June 2024 in Melbourne (UTC+10).
var fixedNow = time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)

func newFixedAggregator(g Gateway) *Aggregator {
	a := NewAggregator(g)
	a.now = func() time.Time { return fixedNow }
	return a
}

func TestAggregateUsesTruncatedGeohashWhereRequired(t *testing.T) {
	g := &fakeGateway{obs: bom.ObservationsResult{Available: false}}
	a := newFixedAggregator(g)

	if _, err := a.Aggregate(context.Background(), melbourne, AllCategories()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"observations": "r1r0fs",
		"hourly":       "r1r0fs",
		"daily":        "r1r0fsn",
		"warnings":     "r1r0fsn",
	}
	for endpoint, hash := range want {
		calls := g.calls[endpoint]
		if len(calls) != 1 || calls[0] != hash {
			t.Fatalf("%s: expected one call with %s, got %v", endpoint, hash, calls)
		}
	}
}

func TestAggregateNoCategoriesMakesNoCalls(t *testing.T) {
	g := &fakeGateway{}
	a := newFixedAggregator(g)

	snap, err := a.Aggregate(context.Background(), melbourne, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.totalCalls() != 0 {
		t.Fatalf("expected no remote calls, got %d", g.totalCalls())
	}
	if snap.Observation.Status != StatusNotRequested || snap.Daily.Status != StatusNotRequested ||
		snap.Hourly.Status != StatusNotRequested || snap.Warnings.Status != StatusNotRequested {
		t.Fatalf("expected every section not requested, got %+v", snap)
	}
}

func TestAggregatePartialFailureKeepsOtherSections(t *testing.T) {
	rejected := &bom.GatewayError{Kind: bom.RemoteRejected, Endpoint: "daily", Status: 500}
	g := &fakeGateway{
		obs:      bom.ObservationsResult{Available: true, Data: bom.Observation{Temp: f64(14)}},
		dailyErr: rejected,
		warnings: []bom.Warning{{ID: "w1", Type: "frost_warning", Phase: "new"}},
	}
	a := newFixedAggregator(g)

	snap, err := a.Aggregate(context.Background(), melbourne, AllCategories())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.Daily.Failed() || snap.Daily.Error == "" {
		t.Fatalf("expected daily section failed with message, got %+v", snap.Daily)
	}
	if snap.Observation.Status != StatusOK || *snap.Observation.Data.Temperature != 14 {
		t.Fatalf("expected observation ok, got %+v", snap.Observation)
	}
	if snap.Hourly.Status != StatusOK {
		t.Fatalf("expected hourly ok, got %+v", snap.Hourly)
	}
	if !snap.Warnings.Data.State(Frost).Active {
		t.Fatalf("expected frost warning active")
	}
}

func TestAggregateAllEnabledFailed(t *testing.T) {
	unreachable := &bom.GatewayError{Kind: bom.Unreachable, Endpoint: "x"}
	g := &fakeGateway{obsErr: unreachable, hourlyErr: unreachable}
	a := newFixedAggregator(g)

	snap, err := a.Aggregate(context.Background(), melbourne, Options{IncludeObservations: true, IncludeHourly: true})
	if !errors.Is(err, ErrAllCategoriesFailed) {
		t.Fatalf("expected ErrAllCategoriesFailed, got %v", err)
	}
	var aerr *AggregationError
	if !errors.As(err, &aerr) || len(aerr.Causes) != 2 {
		t.Fatalf("expected two causes, got %v", err)
	}
	if snap.Daily.Status != StatusNotRequested {
		t.Fatalf("expected daily not requested, got %s", snap.Daily.Status)
	}
	if g.callCount("daily") != 0 || g.callCount("warnings") != 0 {
		t.Fatalf("disabled categories must not be fetched")
	}
}

func TestAggregateObservationUnavailableIsNotFailure(t *testing.T) {
	g := &fakeGateway{obs: bom.ObservationsResult{Available: false}}
	a := newFixedAggregator(g)

	snap, err := a.Aggregate(context.Background(), melbourne, Options{IncludeObservations: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Observation.Status != StatusUnavailable || snap.Observation.Data != nil {
		t.Fatalf("expected unavailable observation, got %+v", snap.Observation)
	}
}

func TestAggregateObservationDerivedFields(t *testing.T) {
	g := &fakeGateway{obs: bom.ObservationsResult{
		Available: true,
		Data: bom.Observation{
			Temp:     f64(20),
			Humidity: f64(50),
			Wind:     &bom.Wind{SpeedKilometre: f64(19), SpeedKnot: f64(10), Direction: "SW"},
			MinTemp:  &bom.TimedValue{Value: f64(7.2)},
			Station:  &bom.Station{BomID: "086338", Name: "Melbourne (Olympic Park)"},
		},
		Metadata: bom.Metadata{ObservationTime: "2024-06-01T01:50:00Z"},
	}}
	a := newFixedAggregator(g)

	snap, err := a.Aggregate(context.Background(), melbourne, Options{IncludeObservations: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obs := snap.Observation.Data
	if obs.DewPoint == nil || *obs.DewPoint != 9.3 {
		t.Fatalf("expected dew point 9.3, got %v", obs.DewPoint)
	}
	if obs.DeltaT == nil || *obs.DeltaT != 10.7 {
		t.Fatalf("expected delta-T 10.7, got %v", obs.DeltaT)
	}
	if obs.WindBearing == nil || *obs.WindBearing != 225 {
		t.Fatalf("expected SW bearing 225, got %v", obs.WindBearing)
	}
	if obs.GustSpeedKmh != nil {
		t.Fatalf("expected missing gust to stay nil")
	}
	if obs.MinTemperature == nil || *obs.MinTemperature != 7.2 {
		t.Fatalf("unexpected min temperature %v", obs.MinTemperature)
	}
	if snap.Location.Station == nil || snap.Location.Station.ID != "086338" {
		t.Fatalf("expected station surfaced on location, got %+v", snap.Location.Station)
	}
	if melbourne.Station != nil {
		t.Fatalf("input location must not be mutated")
	}
}

func TestAggregateDailyStartsAtTodayWithNullMin(t *testing.T) {
	g := &fakeGateway{daily: bom.DailyForecastResponse{Data: []bom.DailyForecast{
		{Date: "2024-06-01T14:00:00Z", TempMax: f64(15), TempMin: f64(6), IconDescriptor: "clear",
			Rain: bom.Rain{Chance: f64(30), Amount: bom.RainAmount{Min: f64(1), Max: f64(5)}}},
		{Date: "2024-05-30T14:00:00Z", TempMax: f64(12), TempMin: f64(4), IconDescriptor: "cloudy"},
		{Date: "2024-05-31T14:00:00Z", TempMax: f64(14), TempMin: nil, IconDescriptor: "mostly_sunny",
			Now: &bom.Now{IsNight: true, NowLabel: "Overnight min", TempNow: f64(8)},
			UV:  bom.UV{Category: str("veryhigh"), MaxIndex: f64(9)}},
	}}}
	a := newFixedAggregator(g)

	snap, err := a.Aggregate(context.Background(), melbourne, Options{IncludeDaily: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	days := snap.Daily.Data
	if len(days) != 2 {
		t.Fatalf("expected past day dropped leaving 2 days, got %d", len(days))
	}

	tz, _ := time.LoadLocation("Australia/Melbourne")
	if want := time.Date(2024, 6, 1, 0, 0, 0, 0, tz); !days[0].Date.Equal(want) {
		t.Fatalf("expected first day %v, got %v", want, days[0].Date)
	}
	if days[0].TempMin != nil || days[0].TempMinAvailable() {
		t.Fatalf("expected today's min unavailable, got %v", *days[0].TempMin)
	}
	if days[0].Now == nil || days[1].Now != nil {
		t.Fatalf("expected now block only on the first day")
	}
	if days[0].IconDescriptor != "clear" || days[0].Condition != ConditionClear {
		t.Fatalf("expected night icon normalized to clear, got %s/%s", days[0].IconDescriptor, days[0].Condition)
	}
	if days[0].UVForecast != "Sun protection not required, UV Index predicted to reach 9 [Very High]" {
		t.Fatalf("unexpected uv forecast %q", days[0].UVForecast)
	}
	if days[1].RainRange != "1–5" || *days[1].RainChance != 30 {
		t.Fatalf("unexpected rain for second day: %q", days[1].RainRange)
	}
	if days[1].IconDescriptor != "clear" {
		t.Fatalf("later days keep their descriptor, got %s", days[1].IconDescriptor)
	}
}

func TestAggregateHourlyPassThrough(t *testing.T) {
	g := &fakeGateway{hourly: bom.HourlyForecastResponse{Data: []bom.HourlyForecast{
		{Time: "2024-06-01T06:00:00Z", Temp: f64(11), IconDescriptor: "sunny", IsNight: true, NextForecastPeriod: "2024-06-01T09:00:00Z",
			Rain: bom.Rain{Amount: bom.RainAmount{Min: f64(0)}}},
		{Time: "2024-06-01T03:00:00Z", Temp: f64(13), IconDescriptor: "clear", IsNight: false,
			Rain: bom.Rain{Amount: bom.RainAmount{Min: f64(1), Max: f64(3)}}},
	}}}
	a := newFixedAggregator(g)

	snap, err := a.Aggregate(context.Background(), melbourne, Options{IncludeHourly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	points := snap.Hourly.Data
	if len(points) != 2 || !points[0].Time.Before(points[1].Time) {
		t.Fatalf("expected two points in ascending order, got %+v", points)
	}
	if points[0].IconDescriptor != "sunny" || points[0].RainRange != "1 to 3" {
		t.Fatalf("unexpected first point %+v", points[0])
	}
	night := points[1]
	if !night.IsNight || night.IconDescriptor != "clear" || night.NextForecastPeriod != "2024-06-01T09:00:00Z" {
		t.Fatalf("unexpected night point %+v", night)
	}
	if night.RainAmountMax == nil || *night.RainAmountMax != 0 || night.RainRange != "0" {
		t.Fatalf("expected missing max filled from min, got %v %q", night.RainAmountMax, night.RainRange)
	}
}
