package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/models"
)

func tokenFor(t *testing.T, svc *Service, roles ...models.Role) string {
	t.Helper()
	token, _, err := svc.GenerateToken(&models.User{ID: 7, Roles: roles})
	require.NoError(t, err)
	return token
}

func TestMiddleware_Authenticate(t *testing.T) {
	svc := &Service{jwtSecret: []byte("test-secret"), tokenTTL: time.Hour}
	mw := NewMiddleware(svc)
	e := echo.New()

	t.Run("no token is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := mw.Authenticate(func(c echo.Context) error { return nil })(c)
		require.Error(t, err)
		ec, ok := err.(*errcodes.Error)
		require.True(t, ok)
		assert.Equal(t, http.StatusUnauthorized, ec.HTTPCode)
	})

	t.Run("bearer header", func(t *testing.T) {
		token := tokenFor(t, svc, models.RoleAdmin)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		var gotClaim *ApiClaim
		err := mw.Authenticate(func(c echo.Context) error {
			gotClaim, _ = ClaimFromEchoContext(c)
			return nil
		})(c)
		require.NoError(t, err)
		require.NotNil(t, gotClaim)
		assert.Equal(t, int64(7), gotClaim.UserID)
	})

	t.Run("cookie fallback", func(t *testing.T) {
		token := tokenFor(t, svc, models.RoleTrusted)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := mw.Authenticate(func(c echo.Context) error { return nil })(c)
		require.NoError(t, err)
	})
}

func TestMiddleware_RequireRole(t *testing.T) {
	svc := &Service{jwtSecret: []byte("test-secret"), tokenTTL: time.Hour}
	mw := NewMiddleware(svc)
	e := echo.New()

	chain := func(token string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		handler := mw.Authenticate(mw.RequireRole(models.RoleAdmin)(func(c echo.Context) error { return nil }))
		return handler(c)
	}

	require.NoError(t, chain(tokenFor(t, svc, models.RoleAdmin)))

	err := chain(tokenFor(t, svc, models.RoleTrusted))
	require.Error(t, err)
	ec, ok := err.(*errcodes.Error)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, ec.HTTPCode)
}
