package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/catalog/conversions"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/httpapi/paging"
)

type conversionHandler struct {
	svc             *conversions.Service
	defaultPageSize int
}

type conversionCreatePayload struct {
	SourceID int64   `json:"source_id"`
	FormatID int64   `json:"format_id"`
	Location string  `json:"location"`
	BatchID  *string `json:"batch_id"`
}

func (h *conversionHandler) create(c echo.Context) error {
	payload := conversionCreatePayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	conv, err := h.svc.Create(c.Request().Context(), conversions.CreateOptions{
		SourceID: payload.SourceID, FormatID: payload.FormatID, Location: payload.Location, BatchID: payload.BatchID,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, conv))
}

func (h *conversionHandler) get(c echo.Context) error {
	id, err := paging.IDParam(c, "conversion")
	if err != nil {
		return err
	}
	conv, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, conv))
}

func (h *conversionHandler) delete(c echo.Context) error {
	id, err := paging.IDParam(c, "conversion")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *conversionHandler) list(c echo.Context) error {
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

func (h *conversionHandler) listBySource(c echo.Context) error {
	id, err := paging.IDParam(c, "source")
	if err != nil {
		return err
	}
	rows, err := h.svc.ListBySource(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, rows))
}

func (h *conversionHandler) count(c echo.Context) error {
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

// conversions has no update operation: a derived artifact is replaced by
// creating a new conversion row, never edited in place.
func registerConversionRoutes(g *echo.Group, svc *conversions.Service, defaultPageSize int, mw roleGater) {
	h := &conversionHandler{svc: svc, defaultPageSize: defaultPageSize}
	g.POST("", h.create, mw.write())
	g.GET("/count", h.count)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete, mw.admin())
	g.GET("/by-source/:id", h.listBySource)
}
