package ebooks

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

func seedLanguageAndAuthor(t *testing.T, db *bun.DB) (int64, int64) {
	t.Helper()
	ctx := context.Background()

	lang := &models.Language{Name: "English", Code: "en"}
	_, err := db.NewInsert().Model(lang).Exec(ctx)
	require.NoError(t, err)

	author := &models.Author{LastName: "Doyle", FirstName: "Arthur Conan"}
	_, err = db.NewInsert().Model(author).Exec(ctx)
	require.NoError(t, err)

	return lang.ID, author.ID
}

func TestCreate_ComputesBaseDir(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	langID, authorID := seedLanguageAndAuthor(t, db)

	ebook, err := svc.Create(ctx, WriteOptions{
		Title:      "A Study in Scarlet",
		LanguageID: langID,
		AuthorIDs:  []int64{authorID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Doyle Arthur Conan/A Study in Scarlet(en)", ebook.BaseDir)
	require.Len(t, ebook.Authors, 1)
	assert.Equal(t, "Doyle", ebook.Authors[0].LastName)
}

func TestCreate_SeriesAndIndexMustBePaired(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	langID, _ := seedLanguageAndAuthor(t, db)
	idx := 1.0

	_, err := svc.Create(ctx, WriteOptions{Title: "X", LanguageID: langID, SeriesIndex: &idx})
	require.Error(t, err)
}

func TestCreate_UnknownAuthorIDIsValidationError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	langID, _ := seedLanguageAndAuthor(t, db)

	_, err := svc.Create(ctx, WriteOptions{Title: "X", LanguageID: langID, AuthorIDs: []int64{999}})
	require.Error(t, err)
}

func TestUpdate_RewritesAssociations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	langID, authorID := seedLanguageAndAuthor(t, db)

	secondAuthor := &models.Author{LastName: "Christie"}
	_, err := db.NewInsert().Model(secondAuthor).Exec(ctx)
	require.NoError(t, err)

	ebook, err := svc.Create(ctx, WriteOptions{Title: "X", LanguageID: langID, AuthorIDs: []int64{authorID}})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, UpdateOptions{
		ID:      ebook.ID,
		Version: ebook.Version,
		WriteOptions: WriteOptions{
			Title:      "X",
			LanguageID: langID,
			AuthorIDs:  []int64{secondAuthor.ID},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated.Authors, 1)
	assert.Equal(t, "Christie", updated.Authors[0].LastName)
}

func TestDelete_RemovesEbookAndAssociations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	langID, authorID := seedLanguageAndAuthor(t, db)

	ebook, err := svc.Create(ctx, WriteOptions{Title: "X", LanguageID: langID, AuthorIDs: []int64{authorID}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, ebook.ID))

	_, err = svc.Get(ctx, ebook.ID)
	require.Error(t, err)

	var links []*models.EbookAuthor
	err = db.NewSelect().Model(&links).Where("ebook_id = ?", ebook.ID).Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestFindByTitleAuthorsSeries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	langID, authorID := seedLanguageAndAuthor(t, db)

	ebook, err := svc.Create(ctx, WriteOptions{Title: "X", LanguageID: langID, AuthorIDs: []int64{authorID}})
	require.NoError(t, err)

	found, err := svc.FindByTitleAuthorsSeries(ctx, "X", []int64{authorID}, nil)
	require.NoError(t, err)
	assert.Equal(t, ebook.ID, found.ID)

	_, err = svc.FindByTitleAuthorsSeries(ctx, "Nonexistent", []int64{authorID}, nil)
	require.Error(t, err)
}
