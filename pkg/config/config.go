// Package config parses the server CLI's flags (each with an
// environment-variable override) into a validated Config. The admin CLI
// does not parse flags here; it starts from NewForTest.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// Config holds all server configuration. Every field is settable as a CLI
// flag or, equivalently, as the named environment variable - flags win when
// both are present.
type Config struct {
	Port             int           `long:"port" env:"MBS4_LISTEN_PORT" default:"3000" description:"HTTP listen port"`
	ListenAddress    string        `long:"listen-address" env:"MBS4_LISTEN_ADDRESS" default:"127.0.0.1" description:"HTTP listen address"`
	DataDir          string        `long:"data-dir" env:"MBS4_DATA_DIR" required:"true" description:"Directory holding the signing secret, database, and search index"`
	FilesDir         string        `long:"files-dir" env:"MBS4_FILES_DIR" description:"Root of the file store (defaults to <data-dir>/ebooks)"`
	DatabaseURL      string        `long:"database-url" env:"MBS4_DATABASE_URL" description:"sqlite://<path> (defaults to sqlite://<data-dir>/mbs4.db)"`
	IndexPath        string        `long:"index-path" env:"MBS4_INDEX_PATH" description:"Search index database file (defaults to <data-dir>/mbs4-ft-idx.db)"`
	OIDCConfig       string        `long:"oidc-config" env:"MBS4_OIDC_CONFIG" description:"Path to the OIDC providers TOML file"`
	BaseURL          string        `long:"base-url" env:"MBS4_BASE_URL" description:"Public base URL of the frontend, used for OIDC redirects"`
	BaseBackendURL   string        `long:"base-backend-url" env:"MBS4_BASE_BACKEND_URL" description:"Public base URL of this backend, used for OIDC callback registration"`
	TokenValidity    time.Duration `long:"token-validity" env:"MBS4_TOKEN_VALIDITY" default:"24h" description:"Bearer JWT time-to-live"`
	UploadLimitMB    int64         `long:"upload-limit-mb" env:"MBS4_UPLOAD_LIMIT_MB" default:"100" description:"Maximum accepted upload size in megabytes"`
	DefaultPageSize  int           `long:"default-page-size" env:"MBS4_DEFAULT_PAGE_SIZE" default:"100" description:"Default page size for paginated listings"`
	CORS             bool          `long:"cors" env:"MBS4_CORS" description:"Enable permissive CORS (for local frontend development)"`
	StaticDir        string        `long:"static-dir" env:"MBS4_STATIC_DIR" description:"Directory of a pre-built frontend to serve, if any"`
	EbookMetaBin     string        `long:"ebook-meta-bin" env:"MBS4_EBOOK_META_BIN" default:"ebook-meta" description:"Path to Calibre's ebook-meta binary"`

	DatabaseDebug             bool          `long:"database-debug" env:"MBS4_DATABASE_DEBUG" description:"Log every SQL statement"`
	DatabaseMaxRetries        int           `long:"database-max-retries" env:"MBS4_DATABASE_MAX_RETRIES" default:"5" description:"SQLITE_BUSY retry attempts per statement"`
	DatabaseConnectRetryCount int           `long:"database-connect-retry-count" env:"MBS4_DATABASE_CONNECT_RETRY_COUNT" default:"5"`
	DatabaseConnectRetryDelay time.Duration `long:"database-connect-retry-delay" env:"MBS4_DATABASE_CONNECT_RETRY_DELAY" default:"2s"`
	DatabaseBusyTimeout       time.Duration `long:"database-busy-timeout" env:"MBS4_DATABASE_BUSY_TIMEOUT" default:"5s"`

	// Hostname is populated at startup, not settable via flag or env.
	Hostname string `no-ini:"true" json:"-"`
}

func trimSQLiteScheme(url string) string {
	const scheme = "sqlite://"
	if len(url) > len(scheme) && url[:len(scheme)] == scheme {
		return url[len(scheme):]
	}
	return url
}

// DatabaseFilePath returns the resolved sqlite file path (derived from
// DatabaseURL, or <data-dir>/mbs4.db).
func (cfg *Config) DatabaseFilePath() string {
	if cfg.DatabaseURL != "" {
		return trimSQLiteScheme(cfg.DatabaseURL)
	}
	return cfg.DataDir + "/mbs4.db"
}

// ResolvedFilesDir returns FilesDir, defaulting to <data-dir>/ebooks.
func (cfg *Config) ResolvedFilesDir() string {
	if cfg.FilesDir != "" {
		return cfg.FilesDir
	}
	return cfg.DataDir + "/ebooks"
}

// ResolvedIndexPath returns IndexPath, defaulting to <data-dir>/mbs4-ft-idx.db.
func (cfg *Config) ResolvedIndexPath() string {
	if cfg.IndexPath != "" {
		return cfg.IndexPath
	}
	return cfg.DataDir + "/mbs4-ft-idx.db"
}

// New parses os.Args (flags, with environment-variable fallback for every
// flag) into a validated Config.
func New() (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, errors.WithStack(err)
	}

	hostname, err := osHostname()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get hostname")
	}
	cfg.Hostname = hostname

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewForTest creates a Config for testing with minimal required fields.
func NewForTest() *Config {
	return &Config{
		Port:                      0,
		ListenAddress:             "127.0.0.1",
		DataDir:                   "",
		DatabaseURL:               "sqlite://:memory:",
		DatabaseMaxRetries:        1,
		DatabaseConnectRetryCount: 1,
		DatabaseConnectRetryDelay: time.Millisecond,
		DatabaseBusyTimeout:       time.Second,
		TokenValidity:             time.Hour,
		UploadLimitMB:             100,
		DefaultPageSize:           100,
		EbookMetaBin:              "ebook-meta",
		Hostname:                  "test-host",
	}
}

func validateConfig(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	return nil
}
