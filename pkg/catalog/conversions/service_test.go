package conversions

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

func seedSource(t *testing.T, db *bun.DB) int64 {
	t.Helper()
	ctx := context.Background()

	_, err := db.NewInsert().Model(&models.Language{Name: "English", Code: "en"}).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&models.Format{Extension: "epub", MimeType: "application/epub+zip"}).Exec(ctx)
	require.NoError(t, err)
	ebook := &models.Ebook{Title: "Dune", BaseDir: "a", LanguageID: 1}
	_, err = db.NewInsert().Model(ebook).Exec(ctx)
	require.NoError(t, err)
	src := &models.Source{EbookID: ebook.ID, FormatID: 1, Location: "books/a/dune.epub", Size: 1, Hash: "h"}
	_, err = db.NewInsert().Model(src).Exec(ctx)
	require.NoError(t, err)

	return src.ID
}

func TestCreateAndListBySource(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	sourceID := seedSource(t, db)

	_, err := db.NewInsert().Model(&models.Format{Extension: "mobi", MimeType: "application/x-mobipocket-ebook"}).Exec(ctx)
	require.NoError(t, err)

	conv, err := svc.Create(ctx, CreateOptions{SourceID: sourceID, FormatID: 2, Location: "converted/dune.mobi"})
	require.NoError(t, err)
	assert.NotZero(t, conv.ID)

	rows, err := svc.ListBySource(ctx, sourceID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "converted/dune.mobi", rows[0].Location)
}
