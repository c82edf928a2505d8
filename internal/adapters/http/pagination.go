package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// PaginatedResponse wraps list results with pagination metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination contains page-based pagination info.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// SetLinkHeaders adds RFC 8288 Link headers for paginated responses.
// It uses the current request path.
func SetLinkHeaders(c *fiber.Ctx, p Pagination) {
	base := c.Path()
	var links []string

	links = append(links, fmt.Sprintf(`<%s?page=1&limit=%d>; rel="first"`, base, p.Limit))

	if p.Page > 1 {
		links = append(links, fmt.Sprintf(`<%s?page=%d&limit=%d>; rel="prev"`, base, p.Page-1, p.Limit))
	}

	if p.Limit > 0 && p.Page*p.Limit < p.Total {
		links = append(links, fmt.Sprintf(`<%s?page=%d&limit=%d>; rel="next"`, base, p.Page+1, p.Limit))
	}

	if p.Limit > 0 {
		last := (p.Total + p.Limit - 1) / p.Limit
		if last < 1 {
			last = 1
		}
		links = append(links, fmt.Sprintf(`<%s?page=%d&limit=%d>; rel="last"`, base, last, p.Limit))
	}

	c.Set("Link", strings.Join(links, ", "))
}
