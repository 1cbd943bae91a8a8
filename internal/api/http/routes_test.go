package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/i474232898/bom-weather/internal/bom"
	"github.com/i474232898/bom-weather/internal/resolver"
	"github.com/i474232898/bom-weather/internal/weather"
)

type stubSource struct {
	calls int32
	err   error
}

func (s *stubSource) Aggregate(ctx context.Context, loc weather.Location, opts weather.Options) (weather.WeatherSnapshot, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return weather.WeatherSnapshot{}, s.err
	}
	summary := weather.Classify([]weather.WarningRecord{
		{ID: "w1", Type: "heatwave_warning", Phase: weather.PhaseNew, IssueTime: time.Now()},
	})
	return weather.WeatherSnapshot{
		ID:        uuid.New(),
		Location:  loc,
		FetchedAt: time.Now().UTC(),
		Warnings:  weather.Section[*weather.WarningSummary]{Status: weather.StatusOK, Data: summary},
	}, nil
}

type stubLocator struct{}

func (stubLocator) Resolve(ctx context.Context, q resolver.Query) ([]weather.Location, error) {
	if q.PostalCode == "9999" {
		return nil, &resolver.ResolutionError{Kind: resolver.NotFound}
	}
	if q.PostalCode == "" && q.Latitude == nil {
		return nil, &resolver.ResolutionError{Kind: resolver.InvalidInput, Field: "Latitude"}
	}
	return []weather.Location{
		{ID: "Melbourne-r1r0fsn", Geohash: "r1r0fsn", Name: "Melbourne", State: "VIC"},
		{ID: "Carlton-r1r0fu2", Geohash: "r1r0fu2", Name: "Carlton", State: "VIC"},
	}, nil
}

type stubWarnings struct{}

func (stubWarnings) WarningDetail(ctx context.Context, id string) (bom.WarningDetail, error) {
	if id != "VIC_W1" {
		return bom.WarningDetail{}, &bom.GatewayError{Kind: bom.RemoteRejected, Endpoint: "warning", Status: 404}
	}
	return bom.WarningDetail{Warning: bom.Warning{ID: id, Type: "heatwave_warning"}, Text: "Heatwave continuing."}, nil
}

func newTestApp(t *testing.T, sources map[string]*stubSource) *fiber.App {
	t.Helper()
	tracker := weather.NewTracker()
	cfg := weather.DefaultCoordinatorConfig()
	cfg.Backoff.MaxRetries = 0
	for name, src := range sources {
		c := weather.NewCoordinator(weather.Location{Name: name, Geohash: "r1r0fsn"}, src, nil, cfg)
		if err := tracker.Add(name, c); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	app := fiber.New()
	RegisterRoutes(app, Deps{Tracker: tracker, Resolver: stubLocator{}, Warnings: stubWarnings{}})
	return app
}

func doGet(t *testing.T, app *fiber.App, target string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func TestSnapshotEndpoint(t *testing.T) {
	src := &stubSource{}
	app := newTestApp(t, map[string]*stubSource{"Melbourne": src})

	status, body := doGet(t, app, "/api/v1/locations/melbourne/snapshot")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, status, body)
	}
	var resp struct {
		Snapshot weather.WeatherSnapshot `json:"snapshot"`
		Metadata weather.RefreshMetadata `json:"metadata"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Snapshot.ID == uuid.Nil || resp.Metadata.LastAttempt.IsZero() {
		t.Fatalf("unexpected response %s", body)
	}

	doGet(t, app, "/api/v1/locations/melbourne/snapshot")
	if n := atomic.LoadInt32(&src.calls); n != 1 {
		t.Fatalf("expected cached snapshot on second call, got %d refreshes", n)
	}
	doGet(t, app, "/api/v1/locations/melbourne/snapshot?force=true")
	if n := atomic.LoadInt32(&src.calls); n != 2 {
		t.Fatalf("expected forced refresh, got %d refreshes", n)
	}
}

func TestSnapshotEndpointErrors(t *testing.T) {
	failing := &stubSource{err: &weather.AggregationError{}}
	app := newTestApp(t, map[string]*stubSource{"Melbourne": {}, "Perth": failing})

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "unknown location", target: "/api/v1/locations/hobart/snapshot", status: http.StatusNotFound},
		{name: "bad force flag", target: "/api/v1/locations/melbourne/snapshot?force=maybe", status: http.StatusBadRequest},
		{name: "no snapshot yet", target: "/api/v1/locations/perth/snapshot", status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doGet(t, app, tt.target)
			if status != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, status, body)
			}
		})
	}
}

func TestWarningsEndpointListsActive(t *testing.T) {
	app := newTestApp(t, map[string]*stubSource{"Melbourne": {}})

	status, body := doGet(t, app, "/api/v1/locations/melbourne/warnings")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, status, body)
	}
	var resp struct {
		Status string                 `json:"status"`
		Active []weather.WarningState `json:"active"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || len(resp.Active) != 1 || resp.Active[0].Kind != weather.Heatwave {
		t.Fatalf("unexpected warnings response %s", body)
	}
}

func TestLocationsEndpoint(t *testing.T) {
	app := newTestApp(t, map[string]*stubSource{"Melbourne": {}, "Sydney": {}})

	status, body := doGet(t, app, "/api/v1/locations")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	var resp []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 || resp[0].Name != "melbourne" || resp[1].Name != "sydney" {
		t.Fatalf("unexpected locations %s", body)
	}
}

func TestSearchValidation(t *testing.T) {
	app := newTestApp(t, nil)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "postcode", target: "/api/v1/search?postcode=3000", status: http.StatusOK},
		{name: "coordinates", target: "/api/v1/search?lat=-37.81&lon=144.96", status: http.StatusOK},
		{name: "postcode too long", target: "/api/v1/search?postcode=30000", status: http.StatusBadRequest},
		{name: "latitude out of range", target: "/api/v1/search?lat=-97&lon=144.96", status: http.StatusBadRequest},
		{name: "missing input", target: "/api/v1/search", status: http.StatusBadRequest},
		{name: "unknown postcode", target: "/api/v1/search?postcode=9999", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doGet(t, app, tt.target)
			if status != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, status, body)
			}
		})
	}
}

func TestWarningDetailEndpoint(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := doGet(t, app, "/api/v1/warnings/VIC_W1")
	if status != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, status)
	}
	var detail bom.WarningDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Text != "Heatwave continuing." {
		t.Fatalf("unexpected detail %s", body)
	}

	if status, _ := doGet(t, app, "/api/v1/warnings/VIC_W2"); status != http.StatusNotFound {
		t.Fatalf("expected upstream 404 to map to 404, got %d", status)
	}
}
