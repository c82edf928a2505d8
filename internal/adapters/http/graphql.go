package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/whereitwent/whereitwent/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	placeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Place",
		Fields: graphql.Fields{
			"name":     &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: geoPointType},
			"state":    &graphql.Field{Type: graphql.String},
			"zip_code": &graphql.Field{Type: graphql.String},
			"types":    &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	awardType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Award",
		Fields: graphql.Fields{
			"award_id":        &graphql.Field{Type: graphql.String},
			"recipient_name":  &graphql.Field{Type: graphql.String},
			"award_amount":    &graphql.Field{Type: graphql.Float},
			"awarding_agency": &graphql.Field{Type: graphql.String},
			"start_date":      &graphql.Field{Type: graphql.String},
			"end_date":        &graphql.Field{Type: graphql.String},
			"description":     &graphql.Field{Type: graphql.String},
		},
	})

	reportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Report",
		Fields: graphql.Fields{
			"id":        &graphql.Field{Type: graphql.String},
			"recipient": &graphql.Field{Type: graphql.String},
			"state":     &graphql.Field{Type: graphql.String},
			"zip":       &graphql.Field{Type: graphql.String},
			"summary":   &graphql.Field{Type: graphql.String},
			"status":    &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"placesNearby": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "Find places with spending data near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 610.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)

					region := domain.NewSearchRegion(lat, lon, radius)
					var places []domain.Place
					_, err := deps.Nearby.Search(p.Context, region, func(batch []domain.Place) error {
						places = append(places, batch...)
						return nil
					})
					return places, err
				},
			},
			"searchPlaces": &graphql.Field{
				Type:        graphql.NewList(placeType),
				Description: "Search places by name",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := p.Args["query"].(string)
					limit := p.Args["limit"].(int)
					return deps.Places.SearchText(p.Context, q, nil, limit)
				},
			},
			"searchAwards": &graphql.Field{
				Type:        graphql.NewList(awardType),
				Description: "Search federal awards by recipient or location",
				Args: graphql.FieldConfigArgument{
					"recipient": &graphql.ArgumentConfig{Type: graphql.String},
					"state":     &graphql.ArgumentConfig{Type: graphql.String},
					"zip":       &graphql.ArgumentConfig{Type: graphql.String},
					"page":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					filters := domain.SpendingFilters{}
					if recipient, ok := p.Args["recipient"].(string); ok && recipient != "" {
						filters.RecipientSearchText = []string{recipient}
					}
					state, _ := p.Args["state"].(string)
					zip, _ := p.Args["zip"].(string)
					if state != "" || zip != "" {
						filters.PlaceOfPerformanceLocations = []domain.PlaceOfPerformance{
							{Country: "USA", State: state, Zip: zip},
						}
					}
					page := p.Args["page"].(int)
					limit := p.Args["limit"].(int)

					result, err := deps.Spending.SearchAwards(p.Context, filters, page, limit)
					if err != nil {
						return nil, err
					}
					return result.Awards, nil
				},
			},
			"report": &graphql.Field{
				Type:        reportType,
				Description: "Get a report by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Reports.Get(p.Context, id)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
}

// GraphQLHandler serves POST /graphql.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)

	return func(c *fiber.Ctx) error {
		if err != nil {
			return errInternal(c, "schema initialization failed: "+err.Error())
		}

		var body struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		if parseErr := c.BodyParser(&body); parseErr != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if body.Query == "" {
			return errBadRequest(c, "query is required")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  body.Query,
			VariableValues: body.Variables,
			Context:        c.Context(),
		})
		return c.JSON(result)
	}
}
