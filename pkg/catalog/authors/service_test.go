package authors

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

func TestCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	author, err := svc.Create(ctx, CreateOptions{LastName: "Doyle", FirstName: "Arthur Conan"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, "Doyle, Arthur Conan", got.FullName())
}

func TestMerge_ReassignsAndDeletesSource(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	from, err := svc.Create(ctx, CreateOptions{LastName: "Doyle"})
	require.NoError(t, err)
	to, err := svc.Create(ctx, CreateOptions{LastName: "Conan Doyle"})
	require.NoError(t, err)

	_, err = db.NewInsert().Model(&models.Language{Name: "English", Code: "en"}).Exec(ctx)
	require.NoError(t, err)

	ebook := &models.Ebook{Title: "Study in Scarlet", BaseDir: "a", LanguageID: 1}
	_, err = db.NewInsert().Model(ebook).Exec(ctx)
	require.NoError(t, err)

	_, err = db.NewInsert().Model(&models.EbookAuthor{EbookID: ebook.ID, AuthorID: from.ID}).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Merge(ctx, from.ID, to.ID))

	_, err = svc.Get(ctx, from.ID)
	require.Error(t, err)

	var link models.EbookAuthor
	err = db.NewSelect().Model(&link).Where("ebook_id = ?", ebook.ID).Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, to.ID, link.AuthorID)
}

func TestMerge_SameIDIsConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	author, err := svc.Create(ctx, CreateOptions{LastName: "Doyle"})
	require.NoError(t, err)

	err = svc.Merge(ctx, author.ID, author.ID)
	require.Error(t, err)
}
