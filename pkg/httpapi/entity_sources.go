package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/auth"
	"github.com/shishobooks/shisho/pkg/catalog/sources"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/httpapi/paging"
	"github.com/shishobooks/shisho/pkg/pathmodel"
)

type sourceHandler struct {
	svc             *sources.Service
	store           *fsstore.Store
	defaultPageSize int
}

type sourceCreatePayload struct {
	EbookID  int64  `json:"ebook_id"`
	FormatID int64  `json:"format_id"`
	Location string `json:"location"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"`
	Quality  string `json:"quality"`
}

func (h *sourceHandler) create(c echo.Context) error {
	payload := sourceCreatePayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	var createdBy *int64
	if claim, ok := auth.ClaimFromEchoContext(c); ok {
		createdBy = &claim.UserID
	}
	src, err := h.svc.Create(c.Request().Context(), sources.CreateOptions{
		EbookID: payload.EbookID, FormatID: payload.FormatID, Location: payload.Location,
		Size: payload.Size, Hash: payload.Hash, Quality: payload.Quality, CreatedBy: createdBy,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, src))
}

func (h *sourceHandler) get(c echo.Context) error {
	id, err := paging.IDParam(c, "source")
	if err != nil {
		return err
	}
	src, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, src))
}

func (h *sourceHandler) update(c echo.Context) error {
	id, err := paging.IDParam(c, "source")
	if err != nil {
		return err
	}
	payload := struct {
		Location string `json:"location"`
		Quality  string `json:"quality"`
		Version  int64  `json:"version"`
	}{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	src, err := h.svc.Update(c.Request().Context(), sources.UpdateOptions{
		ID: id, Version: payload.Version, Location: payload.Location, Quality: payload.Quality,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, src))
}

// delete removes the Source row and its backing file under books/, per the
// data model's "files are deleted when their Source row is deleted" rule.
func (h *sourceHandler) delete(c echo.Context) error {
	id, err := paging.IDParam(c, "source")
	if err != nil {
		return err
	}

	src, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errors.WithStack(err)
	}

	path, err := pathmodel.NewValidPath(src.Location)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := h.store.Delete(path); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *sourceHandler) list(c echo.Context) error {
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

func (h *sourceHandler) count(c echo.Context) error {
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

func registerSourceRoutes(g *echo.Group, svc *sources.Service, store *fsstore.Store, defaultPageSize int, mw roleGater) {
	h := &sourceHandler{svc: svc, store: store, defaultPageSize: defaultPageSize}
	g.POST("", h.create, mw.write())
	g.GET("/count", h.count)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update, mw.write())
	g.DELETE("/:id", h.delete, mw.admin())
}
