package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/catalog/languages"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/httpapi/paging"
)

type languageHandler struct {
	svc             *languages.Service
	defaultPageSize int
}

type languagePayload struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

func (h *languageHandler) create(c echo.Context) error {
	payload := languagePayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	lang, err := h.svc.Create(c.Request().Context(), languages.CreateOptions{Name: payload.Name, Code: payload.Code})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, lang))
}

func (h *languageHandler) get(c echo.Context) error {
	id, err := paging.IDParam(c, "language")
	if err != nil {
		return err
	}
	lang, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, lang))
}

func (h *languageHandler) update(c echo.Context) error {
	id, err := paging.IDParam(c, "language")
	if err != nil {
		return err
	}
	payload := struct {
		languagePayload
		Version int64 `json:"version"`
	}{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	lang, err := h.svc.Update(c.Request().Context(), languages.UpdateOptions{
		ID: id, Version: payload.Version, Name: payload.Name, Code: payload.Code,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, lang))
}

func (h *languageHandler) delete(c echo.Context) error {
	id, err := paging.IDParam(c, "language")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *languageHandler) list(c echo.Context) error {
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

func (h *languageHandler) listAll(c echo.Context) error {
	rows, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, rows))
}

func (h *languageHandler) count(c echo.Context) error {
	n, err := h.svc.Count(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]int{"count": n}))
}

func registerLanguageRoutes(g *echo.Group, svc *languages.Service, defaultPageSize int, mw roleGater) {
	h := &languageHandler{svc: svc, defaultPageSize: defaultPageSize}
	g.POST("", h.create, mw.write())
	g.GET("/all", h.listAll)
	g.GET("/count", h.count)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update, mw.write())
	g.DELETE("/:id", h.delete, mw.admin())
}
