package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/catalog/genres"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/httpapi/paging"
)

type genreHandler struct {
	svc             *genres.Service
	defaultPageSize int
}

type genrePayload struct {
	Name    string `json:"name"`
	Version int64  `json:"version"`
}

func (h *genreHandler) create(c echo.Context) error {
	payload := genrePayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	genre, err := h.svc.Create(c.Request().Context(), genres.CreateOptions{Name: payload.Name})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, genre))
}

func (h *genreHandler) get(c echo.Context) error {
	id, err := paging.IDParam(c, "genre")
	if err != nil {
		return err
	}
	genre, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, genre))
}

func (h *genreHandler) update(c echo.Context) error {
	id, err := paging.IDParam(c, "genre")
	if err != nil {
		return err
	}
	payload := genrePayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	genre, err := h.svc.Update(c.Request().Context(), genres.UpdateOptions{ID: id, Version: payload.Version, Name: payload.Name})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, genre))
}

func (h *genreHandler) delete(c echo.Context) error {
	id, err := paging.IDParam(c, "genre")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *genreHandler) list(c echo.Context) error {
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

func (h *genreHandler) listAll(c echo.Context) error {
	rows, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, rows))
}

func (h *genreHandler) count(c echo.Context) error {
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

func registerGenreRoutes(g *echo.Group, svc *genres.Service, defaultPageSize int, mw roleGater) {
	h := &genreHandler{svc: svc, defaultPageSize: defaultPageSize}
	g.POST("", h.create, mw.write())
	g.GET("/all", h.listAll)
	g.GET("/count", h.count)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update, mw.write())
	g.DELETE("/:id", h.delete, mw.admin())
}
