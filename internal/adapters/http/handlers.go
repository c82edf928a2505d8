package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/whereitwent/whereitwent/internal/core/domain"
	"github.com/whereitwent/whereitwent/internal/geosync"
)

// NearbyPlacesHandler resolves the places inside a circular region in one
// shot. Clients that want partial results as they arrive use the WebSocket
// endpoint instead.
func NearbyPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 0)
		zoom := c.QueryFloat("zoom", 0)

		if lat == 0 && lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if radius <= 0 && zoom > 0 {
			radius = geosync.RadiusForZoom(zoom)
		}
		if radius <= 0 || radius > geosync.MaxRadiusMeters {
			return errBadRequest(c, "radius or zoom must describe a region up to 156km across")
		}

		region := domain.NewSearchRegion(lat, lon, radius)
		var places []domain.Place
		total, err := deps.Nearby.Search(c.Context(), region, func(batch []domain.Place) error {
			places = append(places, batch...)
			return nil
		})
		if err != nil {
			return errInternal(c, err.Error())
		}

		return c.JSON(fiber.Map{
			"places": places,
			"total":  total,
			"region": region,
		})
	}
}

// SearchPlacesHandler performs free-text search, biased to a point when one
// is given. Falls back to the archive when the upstream is unavailable.
func SearchPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		limit := c.QueryInt("limit", 20)
		if limit <= 0 || limit > 20 {
			limit = 20
		}

		var near *domain.GeoPoint
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		if lat != 0 || lon != 0 {
			near = &domain.GeoPoint{Lat: lat, Lon: lon}
		}

		places, err := deps.Places.SearchText(c.Context(), query, near, limit)
		if err != nil && deps.Archive != nil {
			archived, archiveErr := deps.Archive.Search(c.Context(), query, limit)
			if archiveErr == nil {
				c.Set("X-Result-Source", "archive")
				return c.JSON(archived)
			}
		}
		if err != nil {
			return errInternal(c, err.Error())
		}

		return c.JSON(places)
	}
}

// AutocompletePlacesHandler returns name predictions for a partial query.
func AutocompletePlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input := c.Query("q")
		if input == "" {
			return errBadRequest(c, "q query parameter is required")
		}

		var near *domain.GeoPoint
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		if lat != 0 || lon != 0 {
			near = &domain.GeoPoint{Lat: lat, Lon: lon}
		}

		suggestions, err := deps.Places.Autocomplete(c.Context(), input, near)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(fiber.Map{"suggestions": suggestions})
	}
}

// ArchivedPlacesHandler queries the place archive instead of the upstream,
// useful when the upstream quota is exhausted.
func ArchivedPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Archive == nil {
			return errUnavailable(c, "place archive not configured")
		}
		lat := c.QueryFloat("lat", 0)
		lon := c.QueryFloat("lon", 0)
		radius := c.QueryFloat("radius", 500)
		limit := c.QueryInt("limit", 50)

		if lat == 0 && lon == 0 {
			return errBadRequest(c, "lat and lon are required")
		}
		if radius <= 0 || radius > geosync.MaxRadiusMeters {
			return errBadRequest(c, "radius out of range")
		}
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		places, err := deps.Archive.FindNearby(c.Context(), lat, lon, radius, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(places)
	}
}

// SpendingHandler searches federal awards by recipient, state and zip.
func SpendingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := c.QueryInt("page", 1)
		limit := c.QueryInt("limit", 10)

		filters := domain.SpendingFilters{}
		if recipient := c.Query("recipient"); recipient != "" {
			filters.RecipientSearchText = []string{recipient}
		}
		state := c.Query("state")
		zip := c.Query("zip")
		if state != "" || zip != "" {
			filters.PlaceOfPerformanceLocations = []domain.PlaceOfPerformance{
				{Country: "USA", State: state, Zip: zip},
			}
		}
		if !filters.HasAny() {
			return errBadRequest(c, "recipient, state or zip is required")
		}

		result, err := deps.Spending.SearchAwards(c.Context(), filters, page, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}

		pg := Pagination{Page: result.Page, Limit: limit, Total: result.Total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: result.Awards, Pagination: pg})
	}
}

// SpendingSearchHandler accepts the full filter set as a JSON body.
func SpendingSearchHandler(deps *Dependencies) fiber.Handler {
	type request struct {
		Filters domain.SpendingFilters `json:"filters"`
		Page    int                    `json:"page"`
		Limit   int                    `json:"limit"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body: "+err.Error())
		}
		if !req.Filters.HasAny() {
			return errBadRequest(c, "at least one filter is required")
		}

		result, err := deps.Spending.SearchAwards(c.Context(), req.Filters, req.Page, req.Limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(result)
	}
}

// CreateReportHandler registers a report and kicks off its build.
func CreateReportHandler(deps *Dependencies, start func(c *fiber.Ctx, report *domain.Report) error) fiber.Handler {
	type request struct {
		Recipient string `json:"recipient"`
		State     string `json:"state"`
		Zip       string `json:"zip"`
	}
	return func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body: "+err.Error())
		}

		report, err := deps.Reports.Create(c.Context(), req.Recipient, req.State, req.Zip)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		if start != nil {
			if err := start(c, report); err != nil {
				return errInternal(c, "report created but build could not be started: "+err.Error())
			}
		}
		return c.Status(fiber.StatusAccepted).JSON(report)
	}
}

// GetReportHandler returns a report by id.
func GetReportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		report, err := deps.Reports.Get(c.Context(), id)
		if err != nil {
			return errNotFound(c, "report not found")
		}
		return c.JSON(report)
	}
}

// ListReportsHandler returns the most recent reports.
func ListReportsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		reports, err := deps.Reports.List(c.Context(), limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(reports)
	}
}
