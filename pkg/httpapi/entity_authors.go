package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/catalog/authors"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/httpapi/paging"
	"github.com/shishobooks/shisho/pkg/searchindex"
)

type authorHandler struct {
	svc             *authors.Service
	search          *searchindex.Index
	defaultPageSize int
}

type authorPayload struct {
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name"`
	Description string `json:"description"`
	Version     int64  `json:"version"`
}

func (h *authorHandler) create(c echo.Context) error {
	payload := authorPayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	author, err := h.svc.Create(c.Request().Context(), authors.CreateOptions{
		LastName: payload.LastName, FirstName: payload.FirstName, Description: payload.Description,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if err := h.search.Upsert(c.Request().Context(), []searchindex.Document{
		{Kind: searchindex.KindAuthor, ID: author.ID, Title: author.FullName()},
	}); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, author))
}

func (h *authorHandler) get(c echo.Context) error {
	id, err := paging.IDParam(c, "author")
	if err != nil {
		return err
	}
	author, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, author))
}

func (h *authorHandler) update(c echo.Context) error {
	id, err := paging.IDParam(c, "author")
	if err != nil {
		return err
	}
	payload := authorPayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	author, err := h.svc.Update(c.Request().Context(), authors.UpdateOptions{
		ID: id, Version: payload.Version, LastName: payload.LastName,
		FirstName: payload.FirstName, Description: payload.Description,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if err := h.search.Upsert(c.Request().Context(), []searchindex.Document{
		{Kind: searchindex.KindAuthor, ID: author.ID, Title: author.FullName()},
	}); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, author))
}

func (h *authorHandler) delete(c echo.Context) error {
	id, err := paging.IDParam(c, "author")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errors.WithStack(err)
	}
	if err := h.search.Delete(c.Request().Context(), []searchindex.DocKey{{Kind: searchindex.KindAuthor, ID: id}}); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// merge folds fromID's credits into toID and deletes the fromID row; the
// search document for the now-deleted author is removed the same way.
func (h *authorHandler) merge(c echo.Context) error {
	toID, err := paging.IDParam(c, "author")
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
	if err := h.search.Delete(c.Request().Context(), []searchindex.DocKey{{Kind: searchindex.KindAuthor, ID: payload.FromID}}); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *authorHandler) list(c echo.Context) error {
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

func (h *authorHandler) listAll(c echo.Context) error {
	rows, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, rows))
}

func (h *authorHandler) count(c echo.Context) error {
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

func registerAuthorRoutes(g *echo.Group, svc *authors.Service, search *searchindex.Index, defaultPageSize int, mw roleGater) {
	h := &authorHandler{svc: svc, search: search, defaultPageSize: defaultPageSize}
	g.POST("", h.create, mw.write())
	g.GET("/all", h.listAll)
	g.GET("/count", h.count)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update, mw.write())
	g.DELETE("/:id", h.delete, mw.admin())
	g.POST("/:id/merge", h.merge, mw.write())
}
