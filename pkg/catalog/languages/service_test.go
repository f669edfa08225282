package languages

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/migrations"
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

	lang, err := svc.Create(ctx, CreateOptions{Name: "English", Code: "en"})
	require.NoError(t, err)
	assert.NotZero(t, lang.ID)
	assert.EqualValues(t, 1, lang.Version)

	got, err := svc.Get(ctx, lang.ID)
	require.NoError(t, err)
	assert.Equal(t, "English", got.Name)
}

func TestCreate_DuplicateCodeIsConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	_, err := svc.Create(ctx, CreateOptions{Name: "English", Code: "en"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateOptions{Name: "English (US)", Code: "en"})
	require.Error(t, err)
	var ec *errcodes.Error
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, 409, ec.HTTPCode)
}

func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	_, err := svc.Get(context.Background(), 999)
	require.Error(t, err)
	var ec *errcodes.Error
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, 404, ec.HTTPCode)
}

func TestUpdate_OptimisticConcurrency(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	lang, err := svc.Create(ctx, CreateOptions{Name: "English", Code: "en"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, UpdateOptions{ID: lang.ID, Version: lang.Version, Name: "English (updated)", Code: "en"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, UpdateOptions{ID: lang.ID, Version: lang.Version, Name: "stale", Code: "en"})
	require.Error(t, err)
	var ec *errcodes.Error
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, 409, ec.HTTPCode)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	lang, err := svc.Create(ctx, CreateOptions{Name: "English", Code: "en"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, lang.ID))

	_, err = svc.Get(ctx, lang.ID)
	require.Error(t, err)
}

func TestList_Pagination(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	for _, c := range []CreateOptions{{Name: "English", Code: "en"}, {Name: "French", Code: "fr"}, {Name: "German", Code: "de"}} {
		_, err := svc.Create(ctx, c)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, catalog.ListParams{Offset: 0, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Rows, 2)
	assert.Equal(t, 2, page.TotalPages)
}
