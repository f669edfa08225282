package httpapi

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/pathmodel"
	"github.com/shishobooks/shisho/pkg/thumbnail"
)

// UploadInfo is the body returned by both upload endpoints, per §4.10.
type UploadInfo struct {
	FinalPath    string `json:"final_path"`
	Size         int64  `json:"size"`
	Hash         string `json:"hash"`
	OriginalName string `json:"original_name,omitempty"`
}

// registerFileRoutes mounts the /files/* group: upload, move, download, and
// icon. Grounded on the fsstore/pathmodel abstractions (not on the
// teacher's pkg/filesystem, which only browses the host filesystem for
// library configuration and has no streamed-file-serving counterpart).
func registerFileRoutes(e *echo.Echo, deps *Deps, mw roleGater) {
	g := e.Group("/files")
	g.Use(deps.AuthMiddleware.Authenticate)

	g.POST("/upload/form", uploadFormHandler(deps), mw.write())
	g.POST("/upload/direct", uploadDirectHandler(deps), mw.write())
	g.POST("/move/upload", moveUploadHandler(deps), mw.write())
	g.GET("/download/uploaded/*", downloadHandler(deps, pathmodel.PrefixUpload))
	g.GET("/download/*", downloadHandler(deps, pathmodel.PrefixBooks))
	g.GET("/icon/:id", iconHandler(deps))
}

func uploadFormHandler(deps *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return errcodes.ValidationError("a file field is required")
		}

		ext := strings.TrimPrefix(filepath.Ext(fileHeader.Filename), ".")
		if _, err := deps.Formats.GetByExtension(c.Request().Context(), ext); err != nil {
			return errcodes.UnsupportedMediaType()
		}

		src, err := fileHeader.Open()
		if err != nil {
			return errors.WithStack(err)
		}
		defer src.Close()

		dest, err := pathmodel.UploadPath(ext)
		if err != nil {
			return errors.WithStack(err)
		}

		info, err := deps.Store.StoreStream(dest, src)
		if err != nil {
			return errors.WithStack(err)
		}

		return errors.WithStack(c.JSON(http.StatusCreated, UploadInfo{
			FinalPath: info.FinalPath.String(), Size: info.Size, Hash: info.Hash, OriginalName: fileHeader.Filename,
		}))
	}
}

func uploadDirectHandler(deps *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ext := extensionFromContentType(c.Request().Header.Get("Content-Type"))
		if raw := c.QueryParam("filename"); raw != "" {
			ext = strings.TrimPrefix(filepath.Ext(raw), ".")
		}
		if ext == "" {
			return errcodes.ValidationError("could not determine a file extension")
		}
		if _, err := deps.Formats.GetByExtension(c.Request().Context(), ext); err != nil {
			return errcodes.UnsupportedMediaType()
		}

		dest, err := pathmodel.UploadPath(ext)
		if err != nil {
			return errors.WithStack(err)
		}

		info, err := deps.Store.StoreStream(dest, c.Request().Body)
		if err != nil {
			return errors.WithStack(err)
		}

		return errors.WithStack(c.JSON(http.StatusCreated, UploadInfo{
			FinalPath: info.FinalPath.String(), Size: info.Size, Hash: info.Hash,
		}))
	}
}

func extensionFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return strings.TrimPrefix(exts[0], ".")
}

func moveUploadHandler(deps *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload := struct {
			From string `json:"from"`
			To   string `json:"to"`
		}{}
		if err := c.Bind(&payload); err != nil {
			return errcodes.MalformedPayload()
		}

		from, err := pathmodel.NewValidPath(payload.From)
		if err != nil {
			return errcodes.ValidationError("from is not a valid path")
		}
		fromTail, ok := from.WithoutPrefix(pathmodel.PrefixUpload)
		if !ok {
			return errcodes.ValidationError("from must be under upload/")
		}
		_ = fromTail

		to, err := pathmodel.NewValidPath(payload.To)
		if err != nil {
			return errcodes.ValidationError("to is not a valid path")
		}
		toFull, err := to.WithPrefix(pathmodel.PrefixBooks)
		if err != nil {
			return errors.WithStack(err)
		}

		final, err := deps.Store.Rename(from, toFull)
		if err != nil {
			return errors.WithStack(err)
		}
		return errors.WithStack(c.JSON(http.StatusOK, map[string]string{"final_path": final.String()}))
	}
}

func downloadHandler(deps *Deps, prefix pathmodel.Prefix) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := strings.TrimPrefix(c.Param("*"), "/")
		tail, err := pathmodel.NewValidPath(raw)
		if err != nil {
			return errcodes.NotFound("file")
		}
		full, err := tail.WithPrefix(prefix)
		if err != nil {
			return errcodes.NotFound("file")
		}

		r, err := deps.Store.LoadData(full)
		if err != nil {
			return err
		}
		defer r.Close()

		size, err := deps.Store.Size(full)
		if err != nil {
			return err
		}

		contentType := ""
		ext := strings.TrimPrefix(filepath.Ext(full.Base()), ".")
		if format, err := deps.Formats.GetByExtension(c.Request().Context(), ext); err == nil {
			contentType = format.MimeType
		}
		if contentType == "" {
			contentType = fsstore.GuessMimeType(deps.Store.LocalPath(full))
		}

		c.Response().Header().Set(echo.HeaderContentType, contentType)
		c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
		if isPureASCII(full.Base()) {
			c.Response().Header().Set("Content-Disposition", "attachment; filename=\""+url.PathEscape(full.Base())+"\"")
		}
		c.Response().WriteHeader(http.StatusOK)
		_, err = io.Copy(c.Response(), r)
		return err
	}
}

func isPureASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func iconHandler(deps *Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			return errcodes.NotFound("ebook")
		}

		ebook, err := deps.Ebooks.Get(c.Request().Context(), id)
		if err != nil {
			return errors.WithStack(err)
		}
		if ebook.Cover == "" {
			return errcodes.NotFound("cover")
		}

		coverPath, err := pathmodel.NewValidPath(ebook.Cover)
		if err != nil {
			return errcodes.NotFound("cover")
		}

		png, err := thumbnail.LoadOrGenerate(deps.Store, coverPath, id)
		if err != nil {
			return errors.WithStack(err)
		}

		c.Response().Header().Set(echo.HeaderContentType, "image/png")
		c.Response().WriteHeader(http.StatusOK)
		_, err = c.Response().Write(png)
		return err
	}
}
