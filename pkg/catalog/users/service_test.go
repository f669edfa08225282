package users

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

func TestCreateAndCheckPassword(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	user, err := svc.Create(ctx, CreateOptions{Email: "a@example.com", Name: "A", Password: "hunter22", Roles: models.RoleList{models.RoleTrusted}})
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	assert.True(t, svc.CheckPassword(user, "hunter22"))
	assert.False(t, svc.CheckPassword(user, "wrong"))
}

func TestCreate_OIDCOnlyNeverMatchesPassword(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	user, err := svc.Create(ctx, CreateOptions{Email: "a@example.com", Name: "A"})
	require.NoError(t, err)

	assert.False(t, svc.CheckPassword(user, ""))
}

func TestCreate_DuplicateEmailIsConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	_, err := svc.Create(ctx, CreateOptions{Email: "a@example.com", Name: "A", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateOptions{Email: "A@example.com", Name: "B", Password: "hunter22"})
	require.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	user, err := svc.Create(ctx, CreateOptions{Email: "a@example.com", Name: "A", Password: "old-password"})
	require.NoError(t, err)

	updated, err := svc.ChangePassword(ctx, user.ID, user.Version, "new-password")
	require.NoError(t, err)

	assert.True(t, svc.CheckPassword(updated, "new-password"))
	assert.False(t, svc.CheckPassword(updated, "old-password"))
}

func TestHasRole(t *testing.T) {
	user := &models.User{Roles: models.RoleList{models.RoleAdmin}}
	assert.True(t, user.HasRole(models.RoleAdmin))
	assert.False(t, user.HasRole(models.RoleTrusted))
}
