// Package httpapi wires every catalog repository, the search index, the
// file store, the event bus, and the conversion worker onto the echo
// router. Grounded on the teacher's pkg/server/server.go bootstrap order:
// binder -> ambient middleware -> auth -> per-resource route groups (each
// behind Authenticate + a role gate) -> error handler -> *http.Server.
package httpapi

import (
	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/auth"
	"github.com/shishobooks/shisho/pkg/catalog/authors"
	"github.com/shishobooks/shisho/pkg/catalog/conversions"
	"github.com/shishobooks/shisho/pkg/catalog/ebooks"
	"github.com/shishobooks/shisho/pkg/catalog/formats"
	"github.com/shishobooks/shisho/pkg/catalog/genres"
	"github.com/shishobooks/shisho/pkg/catalog/languages"
	"github.com/shishobooks/shisho/pkg/catalog/ratings"
	"github.com/shishobooks/shisho/pkg/catalog/series"
	"github.com/shishobooks/shisho/pkg/catalog/sources"
	"github.com/shishobooks/shisho/pkg/catalog/users"
	"github.com/shishobooks/shisho/pkg/convertworker"
	"github.com/shishobooks/shisho/pkg/eventbus"
	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/searchindex"
)

// Deps bundles every service the HTTP surface dispatches to. One instance
// is built once at startup in cmd/api and handed to Mount.
type Deps struct {
	DB *bun.DB

	Languages   *languages.Service
	Genres      *genres.Service
	Formats     *formats.Service
	Authors     *authors.Service
	Series      *series.Service
	Sources     *sources.Service
	Conversions *conversions.Service
	Ebooks      *ebooks.Service
	Ratings     *ratings.Service
	Users       *users.Service

	Search *searchindex.Index
	Store  *fsstore.Store
	Bus    *eventbus.Bus
	Worker *convertworker.Worker

	AuthMiddleware  *auth.Middleware
	DefaultPageSize int
}
