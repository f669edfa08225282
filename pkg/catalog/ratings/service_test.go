package ratings

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

func seedEbookAndUser(t *testing.T, db *bun.DB) (int64, int64) {
	t.Helper()
	ctx := context.Background()

	_, err := db.NewInsert().Model(&models.Language{Name: "English", Code: "en"}).Exec(ctx)
	require.NoError(t, err)
	ebook := &models.Ebook{Title: "Dune", BaseDir: "a", LanguageID: 1}
	_, err = db.NewInsert().Model(ebook).Exec(ctx)
	require.NoError(t, err)

	user := &models.User{Email: "a@example.com", Name: "A", Roles: models.RoleList{models.RoleTrusted}}
	_, err = db.NewInsert().Model(user).Exec(ctx)
	require.NoError(t, err)

	return ebook.ID, user.ID
}

func TestRate_CreateThenReRate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	ebookID, userID := seedEbookAndUser(t, db)

	rating, err := svc.Rate(ctx, ebookID, userID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, rating.Stars)
	firstID := rating.ID

	rating, err = svc.Rate(ctx, ebookID, userID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, rating.Stars)
	assert.NotEqual(t, firstID, rating.ID)
}

func TestRate_RejectsOutOfRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	ebookID, userID := seedEbookAndUser(t, db)

	_, err := svc.Rate(ctx, ebookID, userID, 6)
	require.Error(t, err)
}

func TestAverage(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	ebookID, userID := seedEbookAndUser(t, db)
	_, err := svc.Rate(ctx, ebookID, userID, 4)
	require.NoError(t, err)

	avg, count, err := svc.Average(ctx, ebookID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.InDelta(t, 4.0, avg, 0.001)
}
