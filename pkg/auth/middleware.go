package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/models"
)

type contextKey string

const contextKeyClaim contextKey = "auth_claim"

// Middleware extracts and validates the bearer token - from either the
// Authorization header or the mbs4_token cookie - and enforces role gates,
// per §4.9's "Request authorisation" paragraph.
type Middleware struct {
	service *Service
}

func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service}
}

// Authenticate requires a valid bearer token and exposes its ApiClaim to
// downstream handlers. A missing or invalid token is 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := extractBearerToken(c)
		if token == "" {
			return errcodes.Unauthorized("authentication required")
		}

		claim, err := m.service.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthorized("invalid or expired token")
		}

		c.Set(string(contextKeyClaim), claim)
		ctx := context.WithValue(c.Request().Context(), contextKeyClaim, claim)
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

// RequireRole rejects with 403 unless the authenticated claim carries at
// least one of the given roles. Must run after Authenticate.
func (m *Middleware) RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claim, ok := ClaimFromEchoContext(c)
			if !ok {
				return errcodes.Unauthorized("authentication required")
			}

			for _, r := range roles {
				if claim.HasRole(r) {
					return next(c)
				}
			}
			return errcodes.Forbidden("perform this action")
		}
	}
}

func extractBearerToken(c echo.Context) string {
	if header := c.Request().Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimPrefix(header, "Bearer ")
		}
	}
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// ClaimFromEchoContext retrieves the ApiClaim set by Authenticate.
func ClaimFromEchoContext(c echo.Context) (*ApiClaim, bool) {
	claim, ok := c.Get(string(contextKeyClaim)).(*ApiClaim)
	return claim, ok
}

// ClaimFromContext retrieves the ApiClaim from a request context.
func ClaimFromContext(ctx context.Context) (*ApiClaim, bool) {
	claim, ok := ctx.Value(contextKeyClaim).(*ApiClaim)
	return claim, ok
}
