package genres

import (
	"context"
	"database/sql"
	"testing"

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

	genre, err := svc.Create(ctx, CreateOptions{Name: "Mystery"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, genre.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mystery", got.Name)
}

func TestCreate_DuplicateNameIsConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	_, err := svc.Create(ctx, CreateOptions{Name: "Mystery"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateOptions{Name: "mystery"})
	require.Error(t, err)
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	genre, err := svc.Create(ctx, CreateOptions{Name: "Mystery"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, genre.ID))

	_, err = svc.Get(ctx, genre.ID)
	require.Error(t, err)
}
