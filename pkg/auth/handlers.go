package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/errcodes"
)

// PasswordLoginPayload is the POST /auth/login body (JSON or form).
type PasswordLoginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// TokenResponse is the body returned by GET /auth/token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Handler wires the three login flows to echo routes.
type Handler struct {
	service     *Service
	sessions    *SessionStore
	providers   *ProviderCache
	frontendURL string
}

func NewHandler(service *Service, sessions *SessionStore, providers *ProviderCache, frontendURL string) *Handler {
	return &Handler{service: service, sessions: sessions, providers: providers, frontendURL: frontendURL}
}

// Login dispatches to the password flow on POST, and the OIDC begin flow
// on GET with ?oidc_provider=<id>, per §4.9.
func (h *Handler) Login(c echo.Context) error {
	if c.Request().Method == http.MethodGet {
		return h.beginOIDCLogin(c)
	}
	return h.passwordLogin(c)
}

func (h *Handler) passwordLogin(c echo.Context) error {
	ctx := c.Request().Context()

	params := PasswordLoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errcodes.MalformedPayload()
	}

	user, err := h.service.AuthenticatePassword(ctx, params.Email, params.Password)
	if err != nil {
		return errcodes.Unauthorized("invalid email or password")
	}

	sessionID, sess := h.sessions.Create()
	sess.User = user
	setSessionCookie(c, sessionID)

	return c.Redirect(http.StatusFound, h.frontendURL)
}

func (h *Handler) beginOIDCLogin(c echo.Context) error {
	ctx := c.Request().Context()

	providerID := c.QueryParam("oidc_provider")
	if providerID == "" {
		return errcodes.ValidationError("oidc_provider is required")
	}

	redirectURL, secrets, err := h.providers.BeginLogin(ctx, providerID)
	if err != nil {
		return errors.WithStack(errcodes.UpstreamUnavailable("OIDC provider discovery failed"))
	}

	sessionID, sess := h.sessions.Create()
	sess.OIDC = secrets
	setSessionCookie(c, sessionID)

	return c.Redirect(http.StatusFound, redirectURL)
}

// Callback completes an in-flight OIDC login (GET /auth/callback).
func (h *Handler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	sessionID := sessionCookieValue(c)
	sess, ok := h.sessions.Get(sessionID)
	if !ok || sess.OIDC == nil {
		return errcodes.Unauthorized("no OIDC login in progress")
	}

	state := c.QueryParam("state")
	code := c.QueryParam("code")

	user, err := h.providers.CompleteLogin(ctx, h.service.users, sess.OIDC, state, code)
	if err != nil {
		return errcodes.Unauthorized("OIDC login failed")
	}

	sess.User = user
	sess.OIDC = nil

	return c.Redirect(http.StatusFound, h.frontendURL)
}

// Token issues a bearer JWT for the current interactive session and also
// sets it as the mbs4_token cookie, per §4.9's state machine transition
// authenticated --token--> authenticated+JWT.
func (h *Handler) Token(c echo.Context) error {
	sessionID := sessionCookieValue(c)
	sess, ok := h.sessions.Get(sessionID)
	if !ok || sess.User == nil {
		return errcodes.Unauthorized("authentication required")
	}

	token, expiresAt, err := h.service.GenerateToken(sess.User)
	if err != nil {
		return errors.WithStack(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: expiresAt.UTC().Format("2006-01-02T15:04:05Z07:00")})
}

// Logout tears down the interactive session and clears both cookies.
func (h *Handler) Logout(c echo.Context) error {
	sessionID := sessionCookieValue(c)
	if sessionID != "" {
		h.sessions.Delete(sessionID)
	}

	clearCookie(c, SessionCookieName)
	clearCookie(c, CookieName)

	return c.NoContent(http.StatusNoContent)
}

func setSessionCookie(c echo.Context, sessionID string) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionCookieValue(c echo.Context) string {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
