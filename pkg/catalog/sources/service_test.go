package sources

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shishobooks/shisho/pkg/migrations"
	"github.com/shishobooks/shisho/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
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

func seedEbook(t *testing.T, db *bun.DB) int64 {
	t.Helper()
	ctx := context.Background()

	_, err := db.NewInsert().Model(&models.Language{Name: "English", Code: "en"}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&models.Format{Extension: "epub", MimeType: "application/epub+zip"}).Exec(ctx)
	require.NoError(t, err)

	ebook := &models.Ebook{Title: "Dune", BaseDir: "a", LanguageID: 1}
	_, err = db.NewInsert().Model(ebook).Exec(ctx)
	require.NoError(t, err)

	return ebook.ID
}

func TestCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	ebookID := seedEbook(t, db)

	src, err := svc.Create(ctx, CreateOptions{EbookID: ebookID, FormatID: 1, Location: "books/a/dune.epub", Size: 100, Hash: "abc"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "books/a/dune.epub", got.Location)
}

func TestCreate_DuplicateEbookHashIsConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	ebookID := seedEbook(t, db)

	_, err := svc.Create(ctx, CreateOptions{EbookID: ebookID, FormatID: 1, Location: "books/a/dune.epub", Size: 100, Hash: "abc"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateOptions{EbookID: ebookID, FormatID: 1, Location: "books/a/dune-copy.epub", Size: 100, Hash: "abc"})
	require.Error(t, err)
}

func TestGetByEbookAndHash(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	ebookID := seedEbook(t, db)

	_, err := svc.Create(ctx, CreateOptions{EbookID: ebookID, FormatID: 1, Location: "books/a/dune.epub", Size: 100, Hash: "abc"})
	require.NoError(t, err)

	got, err := svc.GetByEbookAndHash(ctx, ebookID, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Size)
}
