package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmcloughlin/geohash"

	"github.com/i474232898/bom-weather/internal/bom"
	"github.com/i474232898/bom-weather/internal/weather"

	log "github.com/sirupsen/logrus"
)

// ErrorKind classifies a failed resolution.
type ErrorKind int

const (
	InvalidInput ErrorKind = iota + 1
	NotFound
	AmbiguousPostalCode
)

var (
	ErrInvalidInput        = errors.New("invalid location query")
	ErrNotFound            = errors.New("no matching location")
	ErrAmbiguousPostalCode = errors.New("postal code matches several locations")
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case AmbiguousPostalCode:
		return "ambiguous_postal_code"
	default:
		return "unknown"
	}
}

// ResolutionError is returned by the Resolver. Field names the query field an
// InvalidInput error targets; Candidates is set for AmbiguousPostalCode.
type ResolutionError struct {
	Kind       ErrorKind
	Field      string
	Message    string
	Candidates []weather.Location
	Err        error
}

func (e *ResolutionError) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Kind == AmbiguousPostalCode {
		msg = fmt.Sprintf("%s (%d candidates)", msg, len(e.Candidates))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (e *ResolutionError) Is(target error) bool {
	switch e.Kind {
	case InvalidInput:
		return target == ErrInvalidInput
	case NotFound:
		return target == ErrNotFound
	case AmbiguousPostalCode:
		return target == ErrAmbiguousPostalCode
	}
	return false
}

// Query identifies a place by coordinates or by a 4-digit Australian postal
// code. When both are given the postal code is used.
type Query struct {
	Latitude   *float64 `validate:"omitempty,latitude"`
	Longitude  *float64 `validate:"omitempty,longitude"`
	PostalCode string   `validate:"omitempty,numeric,len=4"`
}

// Gateway is the subset of the BoM client the resolver needs.
type Gateway interface {
	SearchLocations(ctx context.Context, query string) ([]bom.SearchResult, error)
	LocationInfo(ctx context.Context, geohash string) (bom.LocationInfo, error)
}

// Resolver turns user-supplied place identifiers into BoM locations.
type Resolver struct {
	gateway  Gateway
	validate *validator.Validate
}

// New creates a Resolver.
func New(gateway Gateway) *Resolver {
	return &Resolver{gateway: gateway, validate: validator.New()}
}

const missingInputMessage = "provide coordinates or a postal code"

// Resolve returns the candidate locations for q in upstream relevance order.
// A coordinate query yields at most one candidate.
func (r *Resolver) Resolve(ctx context.Context, q Query) ([]weather.Location, error) {
	q.PostalCode = strings.TrimSpace(q.PostalCode)
	if err := r.check(q); err != nil {
		return nil, err
	}

	var search string
	byPostcode := q.PostalCode != ""
	if byPostcode {
		search = q.PostalCode
	} else {
		search = strconv.FormatFloat(*q.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(*q.Longitude, 'f', -1, 64)
	}

	results, err := r.gateway.SearchLocations(ctx, search)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, &ResolutionError{Kind: NotFound, Message: fmt.Sprintf("no location matches %q", search)}
	}
	if !byPostcode {
		results = results[:1]
	}

	candidates := make([]weather.Location, 0, len(results))
	for _, res := range results {
		candidates = append(candidates, toLocation(res))
	}
	log.WithFields(log.Fields{"query": search, "candidates": len(candidates)}).Debug("resolved location query")
	return candidates, nil
}

// ResolveUnique resolves q to exactly one location. When several candidates
// match, selectID picks one by ID; without a match the call fails with
// AmbiguousPostalCode carrying every candidate.
func (r *Resolver) ResolveUnique(ctx context.Context, q Query, selectID string) (weather.Location, error) {
	candidates, err := r.Resolve(ctx, q)
	if err != nil {
		return weather.Location{}, err
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	for _, c := range candidates {
		if selectID != "" && c.ID == selectID {
			return c, nil
		}
	}
	return weather.Location{}, &ResolutionError{
		Kind:       AmbiguousPostalCode,
		Field:      "PostalCode",
		Message:    fmt.Sprintf("postal code %s matches several locations", q.PostalCode),
		Candidates: candidates,
	}
}

// Describe enriches loc with its timezone, marine and tidal identifiers,
// coordinates and nearest observation station.
func (r *Resolver) Describe(ctx context.Context, loc weather.Location) (weather.Location, error) {
	info, err := r.gateway.LocationInfo(ctx, loc.Geohash)
	if err != nil {
		return loc, err
	}
	if info.Timezone != "" {
		loc.Timezone = info.Timezone
	}
	if info.Name != "" && loc.Name == "" {
		loc.Name = info.Name
	}
	if info.State != "" && loc.State == "" {
		loc.State = info.State
	}
	if info.Latitude != nil && info.Longitude != nil {
		loc.Latitude, loc.Longitude = *info.Latitude, *info.Longitude
	}
	loc.MarineAreaID = info.MarineAreaID
	loc.TidalPointID = info.TidalPoint
	if s := info.Station; s != nil {
		loc.Station = &weather.Station{ID: s.BomID, Name: s.Name, DistanceM: s.Distance}
	}
	return loc, nil
}

func (r *Resolver) check(q Query) error {
	if q.PostalCode == "" && (q.Latitude == nil || q.Longitude == nil) {
		field := "Latitude"
		if q.Latitude != nil {
			field = "Longitude"
		}
		return &ResolutionError{Kind: InvalidInput, Field: field, Message: missingInputMessage}
	}
	if q.PostalCode != "" {
		// Coordinates are ignored when a postal code is present.
		q.Latitude, q.Longitude = nil, nil
	}
	if err := r.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ResolutionError{
				Kind:    InvalidInput,
				Field:   fe.Field(),
				Message: fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()),
				Err:     err,
			}
		}
		return &ResolutionError{Kind: InvalidInput, Message: err.Error(), Err: err}
	}
	return nil
}

func toLocation(res bom.SearchResult) weather.Location {
	loc := weather.Location{
		ID:         res.ID,
		Geohash:    res.Geohash,
		Name:       res.Name,
		State:      res.State,
		PostalCode: res.Postcode,
	}
	if geohash.Validate(res.Geohash) == nil {
		loc.Latitude, loc.Longitude = geohash.DecodeCenter(res.Geohash)
	}
	return loc
}
