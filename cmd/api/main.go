package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"

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
	"github.com/shishobooks/shisho/pkg/config"
	"github.com/shishobooks/shisho/pkg/convertworker"
	"github.com/shishobooks/shisho/pkg/database"
	"github.com/shishobooks/shisho/pkg/eventbus"
	"github.com/shishobooks/shisho/pkg/fsstore"
	"github.com/shishobooks/shisho/pkg/httpapi"
	"github.com/shishobooks/shisho/pkg/metaextract"
	"github.com/shishobooks/shisho/pkg/migrations"
	"github.com/shishobooks/shisho/pkg/searchindex"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting mbs4", logger.Data{})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Err(err).Fatal("data directory error")
	}

	jwtSecret, err := loadOrCreateSecret(filepath.Join(cfg.DataDir, "secret"))
	if err != nil {
		log.Err(err).Fatal("signing secret error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	if err := database.CheckFTS5Support(db); err != nil {
		log.Err(err).Fatal("FTS5 check failed")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	store, err := fsstore.New(cfg.ResolvedFilesDir())
	if err != nil {
		log.Err(err).Fatal("file store error")
	}

	searchIdx, err := searchindex.Open(cfg.ResolvedIndexPath())
	if err != nil {
		log.Err(err).Fatal("search index error")
	}
	searchIdx.Start()

	languagesSvc := languages.NewService(db)
	genresSvc := genres.NewService(db)
	formatsSvc := formats.NewService(db)
	authorsSvc := authors.NewService(db)
	seriesSvc := series.NewService(db)
	sourcesSvc := sources.NewService(db)
	conversionsSvc := conversions.NewService(db)
	ebooksSvc := ebooks.NewService(db)
	ratingsSvc := ratings.NewService(db)
	usersSvc := users.NewService(db)

	needsBootstrap, err := searchIdx.NeedsBootstrap(ctx)
	if err != nil {
		log.Err(err).Fatal("search index bootstrap check error")
	}
	if needsBootstrap {
		log.Info("bootstrapping search index from catalog")
		if err := searchindex.BootstrapFromCatalog(ctx, searchIdx, ebooksSvc, authorsSvc, seriesSvc); err != nil {
			log.Err(err).Fatal("search index bootstrap error")
		}
	}

	bus := eventbus.New()

	extractor := metaextract.NewExtractor(cfg.EbookMetaBin)
	worker := convertworker.New(extractor, store, bus)
	worker.Start()

	providerConfigs, err := auth.LoadProviderConfigs(cfg.OIDCConfig)
	if err != nil {
		log.Err(err).Fatal("OIDC config error")
	}
	providers := auth.NewProviderCache(providerConfigs, cfg.BaseBackendURL+"/auth/callback")
	sessions := auth.NewSessionStore()

	authService := auth.NewService(usersSvc, jwtSecret, cfg.TokenValidity)
	authMiddleware := auth.NewMiddleware(authService)

	deps := &httpapi.Deps{
		DB:              db,
		Languages:       languagesSvc,
		Genres:          genresSvc,
		Formats:         formatsSvc,
		Authors:         authorsSvc,
		Series:          seriesSvc,
		Sources:         sourcesSvc,
		Conversions:     conversionsSvc,
		Ebooks:          ebooksSvc,
		Ratings:         ratingsSvc,
		Users:           usersSvc,
		Search:          searchIdx,
		Store:           store,
		Bus:             bus,
		Worker:          worker,
		AuthMiddleware:  authMiddleware,
		DefaultPageSize: cfg.DefaultPageSize,
	}

	srv, err := httpapi.New(httpapi.Config{
		ListenAddress:   cfg.ListenAddress,
		Port:            cfg.Port,
		CORSEnabled:     cfg.CORS,
		FrontendBaseURL: cfg.BaseURL,
	}, deps, authService, sessions, providers)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		actualPort := listener.Addr().(*net.TCPAddr).Port
		log.Info("server started", logger.Data{"port": actualPort})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	<-graceful
	log.Info("starting graceful shutdown")

	if err := srv.Shutdown(ctx); err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	worker.Shutdown()
	log.Info("worker shutdown")

	if err := searchIdx.Close(); err != nil {
		log.Err(err).Error("search index close error")
	}
	log.Info("search index closed")

	if err := db.Close(); err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// loadOrCreateSecret reads the token signing key from path, minting and
// persisting (mode 0600) a new random one on first run, per §5.
func loadOrCreateSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", errors.WithStack(err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.WithStack(err)
	}
	secret := fmt.Sprintf("%x", raw)

	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return "", errors.WithStack(err)
	}
	return secret, nil
}
