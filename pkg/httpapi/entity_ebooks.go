package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/auth"
	"github.com/shishobooks/shisho/pkg/catalog/ebooks"
	"github.com/shishobooks/shisho/pkg/catalog/ratings"
	"github.com/shishobooks/shisho/pkg/catalog/sources"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/httpapi/paging"
	"github.com/shishobooks/shisho/pkg/models"
	"github.com/shishobooks/shisho/pkg/pathmodel"
	"github.com/shishobooks/shisho/pkg/searchindex"
)

type ebookHandler struct {
	svc             *ebooks.Service
	sources         *sources.Service
	ratings         *ratings.Service
	search          *searchindex.Index
	store           *fsstore.Store
	defaultPageSize int
}

// ebookDocument builds the search index's view of an ebook, matching the
// shape searchindex/bootstrap.go derives at startup so a synchronous upsert
// here and the periodic bootstrap never disagree.
func ebookDocument(e *models.Ebook) searchindex.Document {
	authorNames := make([]string, len(e.Authors))
	for i, a := range e.Authors {
		authorNames[i] = a.FullName()
	}
	var seriesTitle string
	if e.Series != nil {
		seriesTitle = e.Series.Title
	}
	return searchindex.Document{Kind: searchindex.KindEbook, ID: e.ID, Title: e.Title, Authors: authorNames, Series: seriesTitle}
}

type ebookPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Cover       string   `json:"cover"`
	SeriesID    *int64   `json:"series_id"`
	SeriesIndex *float64 `json:"series_index"`
	LanguageID  int64    `json:"language_id"`
	AuthorIDs   []int64  `json:"author_ids"`
	GenreIDs    []int64  `json:"genre_ids"`
	Version     int64    `json:"version"`
}

func (p ebookPayload) toWriteOptions(createdBy *int64) ebooks.WriteOptions {
	return ebooks.WriteOptions{
		Title: p.Title, Description: p.Description, Cover: p.Cover,
		SeriesID: p.SeriesID, SeriesIndex: p.SeriesIndex, LanguageID: p.LanguageID,
		AuthorIDs: p.AuthorIDs, GenreIDs: p.GenreIDs, CreatedBy: createdBy,
	}
}

func (h *ebookHandler) create(c echo.Context) error {
	payload := ebookPayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}

	var createdBy *int64
	if claim, ok := auth.ClaimFromEchoContext(c); ok {
		createdBy = &claim.UserID
	}

	ebook, err := h.svc.Create(c.Request().Context(), payload.toWriteOptions(createdBy))
	if err != nil {
		return errors.WithStack(err)
	}
	if err := h.search.Upsert(c.Request().Context(), []searchindex.Document{ebookDocument(ebook)}); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusCreated, ebook))
}

func (h *ebookHandler) get(c echo.Context) error {
	id, err := paging.IDParam(c, "ebook")
	if err != nil {
		return err
	}
	ebook, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	if claim, ok := auth.ClaimFromEchoContext(c); ok {
		if rating, err := h.ratings.Get(c.Request().Context(), id, claim.UserID); err == nil {
			ebook.Rating = &rating.Stars
		}
	}
	return errors.WithStack(c.JSON(http.StatusOK, ebook))
}

func (h *ebookHandler) update(c echo.Context) error {
	id, err := paging.IDParam(c, "ebook")
	if err != nil {
		return err
	}
	payload := ebookPayload{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	ebook, err := h.svc.Update(c.Request().Context(), ebooks.UpdateOptions{
		ID: id, Version: payload.Version, WriteOptions: payload.toWriteOptions(nil),
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if err := h.search.Upsert(c.Request().Context(), []searchindex.Document{ebookDocument(ebook)}); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, ebook))
}

// delete removes the ebook and, since ebooks.Service.Delete cascades the
// ebook's Source rows without going through sources.Service, also removes
// their backing files and every search document the ebook owns.
func (h *ebookHandler) delete(c echo.Context) error {
	id, err := paging.IDParam(c, "ebook")
	if err != nil {
		return err
	}

	ebook, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return errors.WithStack(err)
	}

	for _, src := range ebook.Sources {
		path, err := pathmodel.NewValidPath(src.Location)
		if err != nil {
			continue
		}
		if err := h.store.Delete(path); err != nil {
			return errors.WithStack(err)
		}
	}

	if err := h.search.Delete(c.Request().Context(), []searchindex.DocKey{{Kind: searchindex.KindEbook, ID: ebook.ID}}); err != nil {
		return errors.WithStack(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ebookHandler) list(c echo.Context) error {
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

func (h *ebookHandler) count(c echo.Context) error {
	n, err := h.svc.Count(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]int{"count": n}))
}

func (h *ebookHandler) listSources(c echo.Context) error {
	id, err := paging.IDParam(c, "ebook")
	if err != nil {
		return err
	}
	rows, err := h.sources.ListByEbook(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, rows))
}

func (h *ebookHandler) rate(c echo.Context) error {
	ebookID, err := paging.IDParam(c, "ebook")
	if err != nil {
		return err
	}
	claim, ok := auth.ClaimFromEchoContext(c)
	if !ok {
		return errcodes.Unauthorized("authentication required")
	}
	payload := struct {
		Stars int `json:"stars"`
	}{}
	if err := c.Bind(&payload); err != nil {
		return errcodes.MalformedPayload()
	}
	rating, err := h.ratings.Rate(c.Request().Context(), ebookID, claim.UserID, payload.Stars)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, rating))
}

func (h *ebookHandler) ratingAverage(c echo.Context) error {
	ebookID, err := paging.IDParam(c, "ebook")
	if err != nil {
		return err
	}
	avg, count, err := h.ratings.Average(c.Request().Context(), ebookID)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{"average": avg, "count": count}))
}

// find backs the UploadOrchestrator's find-or-create step (§4.11): it looks
// up an ebook by the same (title, authors, series) triple Create uses to
// derive base_dir, returning 404 when nothing matches so the caller knows
// to create one instead.
func (h *ebookHandler) find(c echo.Context) error {
	title := c.QueryParam("title")
	if title == "" {
		return errcodes.ValidationError("title is required")
	}

	var authorIDs []int64
	for _, raw := range strings.Split(c.QueryParam("author_ids"), ",") {
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errcodes.ValidationError("author_ids must be a comma-separated list of ids")
		}
		authorIDs = append(authorIDs, id)
	}

	var seriesID *int64
	if raw := c.QueryParam("series_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errcodes.ValidationError("series_id must be an integer")
		}
		seriesID = &id
	}

	ebook, err := h.svc.FindByTitleAuthorsSeries(c.Request().Context(), title, authorIDs, seriesID)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, ebook))
}

func registerEbookRoutes(g *echo.Group, svc *ebooks.Service, sourcesSvc *sources.Service, ratingsSvc *ratings.Service, search *searchindex.Index, store *fsstore.Store, defaultPageSize int, mw roleGater) {
	h := &ebookHandler{svc: svc, sources: sourcesSvc, ratings: ratingsSvc, search: search, store: store, defaultPageSize: defaultPageSize}
	g.POST("", h.create, mw.write())
	g.GET("/count", h.count)
	g.GET("/find", h.find)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update, mw.write())
	g.DELETE("/:id", h.delete, mw.admin())
	g.GET("/:id/sources", h.listSources)
	g.POST("/:id/rating", h.rate)
	g.GET("/:id/rating", h.ratingAverage)
}
