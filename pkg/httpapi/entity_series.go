package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/catalog/series"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/httpapi/paging"
	"github.com/shishobooks/shisho/pkg/searchindex"
)

type seriesHandler struct {
	svc             *series.Service
	search          *searchindex.Index
	defaultPageSize int
}

type seriesPayload struct {
	Title   string `json:"title"`
	Version int64  `json:"version"`
}

func (h *seriesHandler) create(c echo.Context) error {
	payload := seriesPayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	s, err := h.svc.Create(c.Request().Context(), series.CreateOptions{Title: payload.Title})
	if err != nil {
		return errors.WithStack(err)
	}
	if err := h.search.Upsert(c.Request().Context(), []searchindex.Document{
		{Kind: searchindex.KindSeries, ID: s.ID, Title: s.Title},
	}); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, s))
}

func (h *seriesHandler) get(c echo.Context) error {
	id, err := paging.IDParam(c, "series")
	if err != nil {
		return err
	}
	s, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, s))
}

func (h *seriesHandler) update(c echo.Context) error {
	id, err := paging.IDParam(c, "series")
	if err != nil {
		return err
	}
	payload := seriesPayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	s, err := h.svc.Update(c.Request().Context(), series.UpdateOptions{ID: id, Version: payload.Version, Title: payload.Title})
	if err != nil {
		return errors.WithStack(err)
	}
	if err := h.search.Upsert(c.Request().Context(), []searchindex.Document{
		{Kind: searchindex.KindSeries, ID: s.ID, Title: s.Title},
	}); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, s))
}

func (h *seriesHandler) delete(c echo.Context) error {
	id, err := paging.IDParam(c, "series")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errors.WithStack(err)
	}
	if err := h.search.Delete(c.Request().Context(), []searchindex.DocKey{{Kind: searchindex.KindSeries, ID: id}}); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// merge folds fromID's ebooks into toID and deletes the fromID row; the
// search document for the now-deleted series is removed the same way.
func (h *seriesHandler) merge(c echo.Context) error {
	toID, err := paging.IDParam(c, "series")
	if err != nil {
		return err
	}
	payload := struct {
		FromID int64 `json:"from_id"`
	}{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	if err := h.svc.Merge(c.Request().Context(), payload.FromID, toID); err != nil {
		return errors.WithStack(err)
	}
	if err := h.search.Delete(c.Request().Context(), []searchindex.DocKey{{Kind: searchindex.KindSeries, ID: payload.FromID}}); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *seriesHandler) list(c echo.Context) error {
	params, err := paging.Parse(c, h.defaultPageSize)
	if err != nil {
		return err
	}
	page, err := h.svc.List(c.Request().Context(), params)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, page))
}

func (h *seriesHandler) listAll(c echo.Context) error {
	rows, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, rows))
}

func (h *seriesHandler) count(c echo.Context) error {
	params, err := paging.Parse(c, 1)
	if err != nil {
		return err
	}
	params.Limit = 1
	page, err := h.svc.List(c.Request().Context(), params)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]int{"count": page.Total}))
}

func registerSeriesRoutes(g *echo.Group, svc *series.Service, search *searchindex.Index, defaultPageSize int, mw roleGater) {
	h := &seriesHandler{svc: svc, search: search, defaultPageSize: defaultPageSize}
	g.POST("", h.create, mw.write())
	g.GET("/all", h.listAll)
	g.GET("/count", h.count)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update, mw.write())
	g.DELETE("/:id", h.delete, mw.admin())
	g.POST("/:id/merge", h.merge, mw.write())
}
