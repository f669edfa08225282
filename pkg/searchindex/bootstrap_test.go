package searchindex

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/shishobooks/shisho/pkg/catalog/authors"
	"github.com/shishobooks/shisho/pkg/catalog/ebooks"
	"github.com/shishobooks/shisho/pkg/catalog/series"
	"github.com/shishobooks/shisho/pkg/migrations"
	"github.com/shishobooks/shisho/pkg/models"
)

func setupCatalogDB(t *testing.T) *bun.DB {
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

func TestBootstrapFromCatalog(t *testing.T) {
	db := setupCatalogDB(t)
	ctx := context.Background()

	lang := &models.Language{Name: "English", Code: "en"}
	_, err := db.NewInsert().Model(lang).Exec(ctx)
	require.NoError(t, err)

	authorSvc := authors.NewService(db)
	author, err := authorSvc.Create(ctx, authors.CreateOptions{LastName: "Doyle", FirstName: "Arthur Conan"})
	require.NoError(t, err)

	seriesSvc := series.NewService(db)
	sherlock, err := seriesSvc.Create(ctx, series.CreateOptions{Title: "Sherlock Holmes"})
	require.NoError(t, err)

	ebookSvc := ebooks.NewService(db)
	seriesIdx := 1.0
	_, err = ebookSvc.Create(ctx, ebooks.WriteOptions{
		Title:       "A Study in Scarlet",
		LanguageID:  lang.ID,
		AuthorIDs:   []int64{author.ID},
		SeriesID:    &sherlock.ID,
		SeriesIndex: &seriesIdx,
	})
	require.NoError(t, err)

	idx, err := Open(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	idx.Start()
	defer idx.Close()

	require.NoError(t, BootstrapFromCatalog(ctx, idx, ebookSvc, authorSvc, seriesSvc))

	need, err := idx.NeedsBootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, need)

	results, err := idx.Search(ctx, "scarlet", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, KindEbook, results[0].Kind)

	results, err = idx.Search(ctx, "doyle", 10)
	require.NoError(t, err)
	require.Len(t, results, 2) // the ebook (author in its text) and the author document itself

	results, err = idx.Search(ctx, "holmes", 10)
	require.NoError(t, err)
	require.Len(t, results, 2) // the ebook (series in its text) and the series document itself
}
