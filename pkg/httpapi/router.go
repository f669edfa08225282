package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"

	"github.com/shishobooks/shisho/pkg/auth"
	"github.com/shishobooks/shisho/pkg/binder"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/models"
)

// roleGater turns a *auth.Middleware into the two role tiers the spec's
// route table names: write (Trusted or Admin) and admin (Admin only).
// Read endpoints require only Authenticate, applied at the group level.
type roleGater struct {
	mw *auth.Middleware
}

func (r roleGater) write() echo.MiddlewareFunc {
	return r.mw.RequireRole(models.RoleTrusted, models.RoleAdmin)
}

func (r roleGater) admin() echo.MiddlewareFunc {
	return r.mw.RequireRole(models.RoleAdmin)
}

// Config holds the listen address and the ambient options New needs
// beyond the wired services already in Deps.
type Config struct {
	ListenAddress   string
	Port            int
	CORSEnabled     bool
	FrontendBaseURL string
}

// New builds the *http.Server for the whole HTTP surface: binder, ambient
// middleware, auth, every catalog entity group, files, convert, events, and
// search - grounded on the teacher's pkg/server/server.go bootstrap order.
func New(cfg Config, deps *Deps, authService *auth.Service, sessions *auth.SessionStore, providers *auth.ProviderCache) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	if cfg.CORSEnabled {
		e.Use(middleware.CORS())
	}

	health.RegisterRoutes(e)

	authHandler := auth.NewHandler(authService, sessions, providers, cfg.FrontendBaseURL)
	auth.RegisterRoutes(e, authHandler)

	mw := roleGater{mw: deps.AuthMiddleware}

	api := e.Group("/api")
	api.Use(deps.AuthMiddleware.Authenticate)

	registerLanguageRoutes(api.Group("/language"), deps.Languages, deps.DefaultPageSize, mw)
	registerGenreRoutes(api.Group("/genre"), deps.Genres, deps.DefaultPageSize, mw)
	registerFormatRoutes(api.Group("/format"), deps.Formats, deps.DefaultPageSize, mw)
	registerAuthorRoutes(api.Group("/author"), deps.Authors, deps.Search, deps.DefaultPageSize, mw)
	registerSeriesRoutes(api.Group("/series"), deps.Series, deps.Search, deps.DefaultPageSize, mw)
	registerSourceRoutes(api.Group("/source"), deps.Sources, deps.Store, deps.DefaultPageSize, mw)
	registerConversionRoutes(api.Group("/conversion"), deps.Conversions, deps.DefaultPageSize, mw)
	registerEbookRoutes(api.Group("/ebook"), deps.Ebooks, deps.Sources, deps.Ratings, deps.Search, deps.Store, deps.DefaultPageSize, mw)
	registerUserRoutes(api.Group("/user"), deps.Users, deps.DefaultPageSize, mw)
	registerConvertRoutes(api.Group("/convert"), deps, mw)

	registerFileRoutes(e, deps, mw)

	searchGroup := e.Group("/search")
	searchGroup.Use(deps.AuthMiddleware.Authenticate)
	registerSearchRoutes(searchGroup, deps)

	eventsGroup := e.Group("/events")
	eventsGroup.Use(deps.AuthMiddleware.Authenticate)
	registerEventRoutes(eventsGroup, deps)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
