package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/shishobooks/shisho/pkg/catalog/formats"
	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/migrations"
	"github.com/shishobooks/shisho/pkg/pathmodel"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func filesTestDeps(t *testing.T) *Deps {
	t.Helper()

	db := setupTestDB(t)
	formatsSvc := formats.NewService(db)
	_, err := formatsSvc.Create(context.Background(), formats.CreateOptions{Extension: "epub", MimeType: "application/epub+zip"})
	require.NoError(t, err)

	store, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	return &Deps{Formats: formatsSvc, Store: store}
}

func multipartUploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/files/upload/form", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestUploadFormHandler_RejectsUnknownExtension(t *testing.T) {
	e := echo.New()
	deps := filesTestDeps(t)

	req := multipartUploadRequest(t, "book.mobi", []byte("data"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := uploadFormHandler(deps)(c)
	require.Error(t, err)
}

func TestUploadFormHandler_StoresUnderUploadPrefix(t *testing.T) {
	e := echo.New()
	deps := filesTestDeps(t)

	req := multipartUploadRequest(t, "book.epub", []byte("hello world"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, uploadFormHandler(deps)(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"final_path":"upload/`)
	assert.Contains(t, rec.Body.String(), `"original_name":"book.epub"`)
}

func TestMoveUploadHandler_RequiresSourceUnderUpload(t *testing.T) {
	e := echo.New()
	deps := filesTestDeps(t)

	body := bytes.NewBufferString(`{"from":"books/elsewhere.epub","to":"author/title.epub"}`)
	req := httptest.NewRequest(http.MethodPost, "/files/move/upload", body)
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := moveUploadHandler(deps)(c)
	require.Error(t, err)
}

func TestMoveUploadHandler_MovesUnderBooksPrefix(t *testing.T) {
	e := echo.New()
	deps := filesTestDeps(t)

	uploadPath, err := pathmodel.NewValidPath("upload/source.epub")
	require.NoError(t, err)
	_, err = deps.Store.StoreData(uploadPath, []byte("contents"))
	require.NoError(t, err)

	reqBody := bytes.NewBufferString(`{"from":"upload/source.epub","to":"author/title.epub"}`)
	req := httptest.NewRequest(http.MethodPost, "/files/move/upload", reqBody)
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, moveUploadHandler(deps)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"final_path":"books/author/title.epub"`)
}

func TestDownloadHandler_RoundTrips(t *testing.T) {
	e := echo.New()
	deps := filesTestDeps(t)

	full, err := pathmodel.NewValidPath("books/author/title.epub")
	require.NoError(t, err)
	_, err = deps.Store.StoreData(full, []byte("epub contents"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/files/download/author/title.epub", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("*")
	c.SetParamValues("author/title.epub")

	require.NoError(t, downloadHandler(deps, pathmodel.PrefixBooks)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/epub+zip", rec.Header().Get(echo.HeaderContentType))

	data, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "epub contents", string(data))
}

func TestExtensionFromContentType(t *testing.T) {
	assert.Equal(t, "png", extensionFromContentType("image/png"))
	assert.Equal(t, "", extensionFromContentType("not a mime type;;;"))
}
