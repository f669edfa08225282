package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/shishobooks/shisho/pkg/catalog/users"
	"github.com/shishobooks/shisho/pkg/migrations"
	"github.com/shishobooks/shisho/pkg/models"
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

func TestAuthenticatePassword(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	usersSvc := users.NewService(db)

	_, err := usersSvc.Create(ctx, users.CreateOptions{
		Email:    "reader@example.com",
		Name:     "Reader",
		Password: "correct horse battery staple",
		Roles:    models.RoleList{models.RoleTrusted},
	})
	require.NoError(t, err)

	svc := NewService(usersSvc, "test-secret", time.Hour)

	user, err := svc.AuthenticatePassword(ctx, "reader@example.com", "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", user.Email)

	_, err = svc.AuthenticatePassword(ctx, "reader@example.com", "wrong password")
	assert.Error(t, err)

	_, err = svc.AuthenticatePassword(ctx, "nobody@example.com", "whatever")
	assert.Error(t, err)
}

func TestAuthenticatePassword_OIDCOnlyUserNeverMatches(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	usersSvc := users.NewService(db)

	_, err := usersSvc.Create(ctx, users.CreateOptions{
		Email: "sso@example.com",
		Name:  "SSO User",
		Roles: models.RoleList{models.RoleTrusted},
	})
	require.NoError(t, err)

	svc := NewService(usersSvc, "test-secret", time.Hour)

	_, err = svc.AuthenticatePassword(ctx, "sso@example.com", "")
	assert.Error(t, err)
}

func TestGenerateAndValidateToken(t *testing.T) {
	db := setupTestDB(t)
	usersSvc := users.NewService(db)
	svc := NewService(usersSvc, "test-secret", time.Hour)

	user := &models.User{ID: 42, Roles: models.RoleList{models.RoleAdmin}}

	token, expiresAt, err := svc.GenerateToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.True(t, claims.HasRole(models.RoleAdmin))
	assert.False(t, claims.HasRole(models.RoleTrusted))
}

func TestValidateToken_RejectsBadSignature(t *testing.T) {
	db := setupTestDB(t)
	usersSvc := users.NewService(db)
	svcA := NewService(usersSvc, "secret-a", time.Hour)
	svcB := NewService(usersSvc, "secret-b", time.Hour)

	token, _, err := svcA.GenerateToken(&models.User{ID: 1})
	require.NoError(t, err)

	_, err = svcB.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	svc := &Service{jwtSecret: []byte("test-secret"), tokenTTL: -time.Minute}

	token, _, err := svc.GenerateToken(&models.User{ID: 1})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
