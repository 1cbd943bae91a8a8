package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/bom-weather/internal/bom"
	"github.com/i474232898/bom-weather/internal/resolver"
	"github.com/i474232898/bom-weather/internal/weather"
)

var validate = validator.New()

// Locator resolves place queries. *resolver.Resolver satisfies it.
type Locator interface {
	Resolve(ctx context.Context, q resolver.Query) ([]weather.Location, error)
}

// WarningSource fetches full warning text. *bom.Client satisfies it.
type WarningSource interface {
	WarningDetail(ctx context.Context, id string) (bom.WarningDetail, error)
}

// Deps are the services the routes read from.
type Deps struct {
	Tracker  *weather.Tracker
	Resolver Locator
	Warnings WarningSource
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		out := make([]locationStatus, 0, deps.Tracker.Len())
		for _, name := range deps.Tracker.Names() {
			coord, err := deps.Tracker.Get(name)
			if err != nil {
				continue
			}
			out = append(out, locationStatus{Name: name, Location: coord.Location(), Metadata: coord.Metadata()})
		}
		return c.JSON(out)
	})

	v1.Get("/locations/:name/snapshot", func(c *fiber.Ctx) error {
		force, err := parseForce(c)
		if err != nil {
			return err
		}
		coord, err := deps.Tracker.Get(c.Params("name"))
		if err != nil {
			return toFiberError(err)
		}

		snap, err := coord.GetSnapshot(c.UserContext(), force)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"snapshot": snap,
			"metadata": coord.Metadata(),
		})
	})

	v1.Get("/locations/:name/warnings", func(c *fiber.Ctx) error {
		coord, err := deps.Tracker.Get(c.Params("name"))
		if err != nil {
			return toFiberError(err)
		}

		snap, err := coord.GetSnapshot(c.UserContext(), false)
		if err != nil {
			return toFiberError(err)
		}
		section := snap.Warnings
		resp := fiber.Map{
			"status":   section.Status,
			"error":    section.Error,
			"metadata": coord.Metadata(),
		}
		if section.Data != nil {
			resp["active"] = section.Data.ActiveStates()
			resp["unrecognized"] = section.Data.Unrecognized
		}
		return c.JSON(resp)
	})

	v1.Get("/search", func(c *fiber.Ctx) error {
		var req searchQuery
		req.bind(c)
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		q, err := req.toQuery()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		candidates, err := deps.Resolver.Resolve(c.UserContext(), q)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"count":      len(candidates),
			"candidates": candidates,
		})
	})

	v1.Get("/warnings/:id", func(c *fiber.Ctx) error {
		detail, err := deps.Warnings.WarningDetail(c.UserContext(), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(detail)
	})
}

type locationStatus struct {
	Name     string                  `json:"name"`
	Location weather.Location        `json:"location"`
	Metadata weather.RefreshMetadata `json:"metadata"`
}

// searchQuery holds query parameters for the search endpoint.
type searchQuery struct {
	Postcode string `validate:"omitempty,numeric,len=4"`
	Lat      string `validate:"omitempty,latitude"`
	Lon      string `validate:"omitempty,longitude"`
}

func (s *searchQuery) bind(c *fiber.Ctx) {
	s.Postcode = c.Query("postcode")
	s.Lat = c.Query("lat")
	s.Lon = c.Query("lon")
}

func (s searchQuery) toQuery() (resolver.Query, error) {
	q := resolver.Query{PostalCode: s.Postcode}
	if s.Lat != "" && s.Lon != "" {
		lat, err := strconv.ParseFloat(s.Lat, 64)
		if err != nil {
			return q, errors.New("invalid lat")
		}
		lon, err := strconv.ParseFloat(s.Lon, 64)
		if err != nil {
			return q, errors.New("invalid lon")
		}
		q.Latitude, q.Longitude = &lat, &lon
	}
	return q, nil
}

func parseForce(c *fiber.Ctx) (bool, error) {
	raw := c.Query("force")
	if raw == "" {
		return false, nil
	}
	force, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fiber.NewError(fiber.StatusBadRequest, "force must be a boolean")
	}
	return force, nil
}

// toFiberError maps domain errors to HTTP statuses.
func toFiberError(err error) error {
	switch {
	case errors.Is(err, weather.ErrUnknownLocation):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, resolver.ErrInvalidInput), errors.Is(err, bom.ErrInvalidGeohash):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, resolver.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, resolver.ErrAmbiguousPostalCode):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, weather.ErrNoSnapshotAvailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, bom.ErrRemoteRejected):
		if bom.StatusCode(err) == http.StatusNotFound {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, bom.ErrUnreachable), errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
