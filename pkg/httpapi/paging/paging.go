// Package paging parses the common `page`/`page_size`/`sort`/`filter` query
// parameters into a catalog.ListParams, per the canonical pagination wire
// format (response shape is already catalog.Page[T], so this package only
// needs to handle the request side).
package paging

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/errcodes"
)

const DefaultPageSize = 100

// Parse reads page, page_size, sort, and filter off the request query
// string and turns them into a catalog.ListParams. page defaults to 1,
// page_size to defaultPageSize, capped at catalog.MaxPageSize; a page or
// page_size below 1 is rejected.
func Parse(c echo.Context, defaultPageSize int) (catalog.ListParams, error) {
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}

	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return catalog.ListParams{}, errcodes.UnknownParameter("page")
		}
		page = n
	}

	pageSize := defaultPageSize
	if raw := c.QueryParam("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return catalog.ListParams{}, errcodes.UnknownParameter("page_size")
		}
		pageSize = n
	}
	if pageSize > catalog.MaxPageSize {
		pageSize = catalog.MaxPageSize
	}

	return catalog.ListParams{
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
		Sort:   parseSort(c.QueryParam("sort")),
		Filter: c.QueryParam("filter"),
	}, nil
}

func parseSort(raw string) []catalog.SortField {
	if raw == "" {
		return nil
	}
	tokens := strings.Split(raw, ",")
	fields := make([]catalog.SortField, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		dir := catalog.Asc
		switch tok[0] {
		case '-':
			dir = catalog.Desc
			tok = tok[1:]
		case '+':
			tok = tok[1:]
		}
		if tok == "" {
			continue
		}
		fields = append(fields, catalog.SortField{Field: tok, Dir: dir})
	}
	return fields
}

// IDParam parses the ":id" path parameter shared by every per-entity route.
func IDParam(c echo.Context, resource string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, errcodes.NotFound(resource)
	}
	return id, nil
}

