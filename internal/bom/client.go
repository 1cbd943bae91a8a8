package bom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcloughlin/geohash"
	"github.com/sony/gobreaker"

	"github.com/i474232898/bom-weather/internal/common"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL   = "https://api.weather.bom.gov.au/v1"
	DefaultUserAgent = "MakeThisAPIOpenSource/1.0.0"

	// ShortGeohashLen is the only length observations and hourly forecasts accept.
	ShortGeohashLen = 6
	// FullGeohashLen is the length location search returns.
	FullGeohashLen = 7
)

// Client is the gateway to the BoM API. It performs one request per call and
// never retries; retry policy belongs to the caller.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a gateway using httpClient for transport. The client's
// Timeout is the per-request timeout.
func NewClient(httpClient *http.Client, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		httpClient: httpClient,
		circuit:    newCircuitBreaker("bom"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchLocations runs the location search with a free-text query, either a
// postal code or "lat,lon".
func (c *Client) SearchLocations(ctx context.Context, query string) ([]SearchResult, error) {
	var env envelope[[]SearchResult]
	values := url.Values{}
	values.Set("search", query)
	if err := c.getJSON(ctx, "search", "/locations", values, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// LocationInfo fetches timezone, marine and station details for a 6 or 7
// character geohash.
func (c *Client) LocationInfo(ctx context.Context, hash string) (LocationInfo, error) {
	const endpoint = "location"
	if err := checkGeohash(endpoint, hash, ShortGeohashLen, FullGeohashLen); err != nil {
		return LocationInfo{}, err
	}
	var env envelope[LocationInfo]
	if err := c.getJSON(ctx, endpoint, "/locations/"+hash, nil, &env); err != nil {
		return LocationInfo{}, err
	}
	return env.Data, nil
}

// Observations fetches the latest observation for an exactly 6 character
// geohash. A location without an observation station yields Available=false
// and no error.
func (c *Client) Observations(ctx context.Context, hash string) (ObservationsResult, error) {
	const endpoint = "observations"
	if err := checkGeohash(endpoint, hash, ShortGeohashLen); err != nil {
		return ObservationsResult{}, err
	}
	var env envelope[*Observation]
	if err := c.getJSON(ctx, endpoint, "/locations/"+hash+"/observations", nil, &env); err != nil {
		return ObservationsResult{}, err
	}
	if env.Data == nil || env.Data.Station == nil {
		log.WithFields(log.Fields{"geohash": hash}).Debug("no observation station for location")
		return ObservationsResult{Available: false, Metadata: env.Metadata}, nil
	}
	return ObservationsResult{Available: true, Data: *env.Data, Metadata: env.Metadata}, nil
}

// DailyForecast fetches the daily forecast for a 6 or 7 character geohash.
func (c *Client) DailyForecast(ctx context.Context, hash string) (DailyForecastResponse, error) {
	const endpoint = "daily"
	if err := checkGeohash(endpoint, hash, ShortGeohashLen, FullGeohashLen); err != nil {
		return DailyForecastResponse{}, err
	}
	var env envelope[[]DailyForecast]
	if err := c.getJSON(ctx, endpoint, "/locations/"+hash+"/forecasts/daily", nil, &env); err != nil {
		return DailyForecastResponse{}, err
	}
	return DailyForecastResponse{Data: env.Data, Metadata: env.Metadata}, nil
}

// HourlyForecast fetches the 3-hourly forecast for an exactly 6 character geohash.
func (c *Client) HourlyForecast(ctx context.Context, hash string) (HourlyForecastResponse, error) {
	const endpoint = "hourly"
	if err := checkGeohash(endpoint, hash, ShortGeohashLen); err != nil {
		return HourlyForecastResponse{}, err
	}
	var env envelope[[]HourlyForecast]
	if err := c.getJSON(ctx, endpoint, "/locations/"+hash+"/forecasts/hourly", nil, &env); err != nil {
		return HourlyForecastResponse{}, err
	}
	return HourlyForecastResponse{Data: env.Data, Metadata: env.Metadata}, nil
}

// Warnings lists the current warnings for a 6 or 7 character geohash.
func (c *Client) Warnings(ctx context.Context, hash string) ([]Warning, error) {
	const endpoint = "warnings"
	if err := checkGeohash(endpoint, hash, ShortGeohashLen, FullGeohashLen); err != nil {
		return nil, err
	}
	var env envelope[[]Warning]
	if err := c.getJSON(ctx, endpoint, "/locations/"+hash+"/warnings", nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// WarningDetail fetches a single warning and reduces its HTML message to text.
func (c *Client) WarningDetail(ctx context.Context, id string) (WarningDetail, error) {
	const endpoint = "warning"
	if strings.TrimSpace(id) == "" {
		return WarningDetail{}, &GatewayError{Kind: RemoteRejected, Endpoint: endpoint, Err: fmt.Errorf("empty warning id")}
	}
	var env envelope[WarningDetail]
	if err := c.getJSON(ctx, endpoint, "/warnings/"+url.PathEscape(id), nil, &env); err != nil {
		return WarningDetail{}, err
	}
	detail := env.Data
	text, err := messageText(detail.Message)
	if err != nil {
		return WarningDetail{}, &GatewayError{Kind: RemoteRejected, Endpoint: endpoint, Status: http.StatusOK, Err: err}
	}
	detail.Text = text
	return detail, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	buildRequest := func() (*http.Request, error) {
		u := c.baseURL + path
		if len(query) > 0 {
			u = fmt.Sprintf("%s?%s", u, query.Encode())
		}
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequest(ctx, c.httpClient, c.circuit, buildRequest)
	if err != nil {
		gerr := classify(endpoint, err)
		log.WithFields(log.Fields{"endpoint": endpoint, "path": path, "error": err}).Warn("bom request failed")
		return gerr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		log.WithFields(log.Fields{"endpoint": endpoint, "path": path, "status": resp.StatusCode}).Warn("bom request rejected")
		return &GatewayError{Kind: RemoteRejected, Endpoint: endpoint, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GatewayError{Kind: RemoteRejected, Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	log.WithFields(log.Fields{"endpoint": endpoint, "path": path}).Debug("bom request ok")
	return nil
}

func checkGeohash(endpoint, hash string, lengths ...int) error {
	valid := false
	for _, n := range lengths {
		if len(hash) == n {
			valid = true
			break
		}
	}
	if !valid {
		return &GatewayError{
			Kind:     InvalidGeohash,
			Endpoint: endpoint,
			Err:      fmt.Errorf("geohash %q has length %d, want %v", hash, len(hash), lengths),
		}
	}
	if err := geohash.Validate(hash); err != nil {
		return &GatewayError{Kind: InvalidGeohash, Endpoint: endpoint, Err: err}
	}
	return nil
}

// messageText flattens a warning message to plain text, one block per line.
func messageText(message string) (string, error) {
	if !common.HasAny(message, "<p", "<div", "<br", "<h", "<ul", "<li", "<table") {
		return strings.TrimSpace(message), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(message))
	if err != nil {
		return "", fmt.Errorf("parse warning message: %w", err)
	}

	var lines []string
	doc.Find("h1, h2, h3, h4, p, li").Each(func(_ int, s *goquery.Selection) {
		if line := strings.Join(strings.Fields(s.Text()), " "); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) == 0 {
		return strings.Join(strings.Fields(doc.Text()), " "), nil
	}
	return strings.Join(lines, "\n"), nil
}
