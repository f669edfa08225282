package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/errcodes"
)

const (
	maxQueryLength    = 255
	defaultNumResults = 10
	maxNumResults     = 1000
)

// registerSearchRoutes mounts GET /search, dispatching to the searchindex
// over ebooks/authors/series, per §4.10 and §4.6.
func registerSearchRoutes(g *echo.Group, deps *Deps) {
	g.GET("", func(c echo.Context) error {
		query := c.QueryParam("query")
		if len(query) > maxQueryLength {
			return errcodes.ValidationError("query must be at most 255 characters")
		}

		numResults := defaultNumResults
		if raw := c.QueryParam("num_results"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxNumResults {
				return errcodes.ValidationError("num_results must be between 1 and 1000")
			}
			numResults = n
		}

		results, err := deps.Search.Search(c.Request().Context(), query, numResults)
		if err != nil {
			return errors.WithStack(err)
		}
		return errors.WithStack(c.JSON(http.StatusOK, results))
	})
}
