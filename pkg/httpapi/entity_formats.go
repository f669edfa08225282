package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/catalog/formats"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/httpapi/paging"
)

type formatHandler struct {
	svc             *formats.Service
	defaultPageSize int
}

type formatPayload struct {
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`
}

func (h *formatHandler) create(c echo.Context) error {
	payload := formatPayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	format, err := h.svc.Create(c.Request().Context(), formats.CreateOptions{Extension: payload.Extension, MimeType: payload.MimeType})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, format))
}

func (h *formatHandler) get(c echo.Context) error {
	id, err := paging.IDParam(c, "format")
	if err != nil {
		return err
	}
	format, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, format))
}

func (h *formatHandler) delete(c echo.Context) error {
	id, err := paging.IDParam(c, "format")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *formatHandler) list(c echo.Context) error {
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

func (h *formatHandler) listAll(c echo.Context) error {
	rows, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, rows))
}

func (h *formatHandler) count(c echo.Context) error {
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

// formats has no update operation: extension/mime pairs are immutable once
// registered, matching the teacher's reference-table conventions.
func registerFormatRoutes(g *echo.Group, svc *formats.Service, defaultPageSize int, mw roleGater) {
	h := &formatHandler{svc: svc, defaultPageSize: defaultPageSize}
	g.POST("", h.create, mw.write())
	g.GET("/all", h.listAll)
	g.GET("/count", h.count)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete, mw.admin())
}
