package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(ctx context.Context, db *bun.DB) error {
		statements := []string{
			`CREATE TABLE languages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				code TEXT NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX ux_languages_code ON languages (code)`,
			`CREATE TABLE genres (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX ux_genres_name ON genres (name COLLATE NOCASE)`,
			`CREATE TABLE formats (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				extension TEXT NOT NULL,
				mime_type TEXT NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX ux_formats_extension ON formats (extension COLLATE NOCASE)`,
			`CREATE UNIQUE INDEX ux_formats_mime_type ON formats (mime_type COLLATE NOCASE)`,
			`CREATE TABLE authors (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				last_name TEXT NOT NULL,
				first_name TEXT,
				description TEXT,
				version INTEGER NOT NULL DEFAULT 1,
				created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX ix_authors_last_name ON authors (last_name COLLATE NOCASE)`,
			`CREATE TABLE series (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX ix_series_title ON series (title COLLATE NOCASE)`,
			`CREATE TABLE users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				email TEXT NOT NULL,
				name TEXT NOT NULL,
				password_hash TEXT,
				roles TEXT NOT NULL DEFAULT '[]',
				version INTEGER NOT NULL DEFAULT 1,
				created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX ux_users_email ON users (email COLLATE NOCASE)`,
			`CREATE TABLE ebooks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT NOT NULL,
				description TEXT,
				cover TEXT,
				base_dir TEXT NOT NULL,
				series_id INTEGER REFERENCES series (id),
				series_index REAL,
				language_id INTEGER NOT NULL REFERENCES languages (id),
				version INTEGER NOT NULL DEFAULT 1,
				created_by INTEGER REFERENCES users (id),
				created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX ix_ebooks_title ON ebooks (title COLLATE NOCASE)`,
			`CREATE INDEX ix_ebooks_series_id ON ebooks (series_id)`,
			`CREATE TABLE ebook_authors (
				ebook_id INTEGER NOT NULL REFERENCES ebooks (id),
				author_id INTEGER NOT NULL REFERENCES authors (id),
				PRIMARY KEY (ebook_id, author_id)
			)`,
			`CREATE INDEX ix_ebook_authors_author_id ON ebook_authors (author_id)`,
			`CREATE TABLE ebook_genres (
				ebook_id INTEGER NOT NULL REFERENCES ebooks (id),
				genre_id INTEGER NOT NULL REFERENCES genres (id),
				PRIMARY KEY (ebook_id, genre_id)
			)`,
			`CREATE INDEX ix_ebook_genres_genre_id ON ebook_genres (genre_id)`,
			`CREATE TABLE sources (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				ebook_id INTEGER NOT NULL REFERENCES ebooks (id),
				format_id INTEGER NOT NULL REFERENCES formats (id),
				location TEXT NOT NULL,
				size INTEGER NOT NULL,
				hash TEXT NOT NULL,
				quality TEXT,
				version INTEGER NOT NULL DEFAULT 1,
				created_by INTEGER REFERENCES users (id),
				created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX ux_sources_ebook_id_hash ON sources (ebook_id, hash)`,
			`CREATE TABLE conversions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				source_id INTEGER NOT NULL REFERENCES sources (id),
				format_id INTEGER NOT NULL REFERENCES formats (id),
				location TEXT NOT NULL,
				batch_id TEXT,
				version INTEGER NOT NULL DEFAULT 1,
				created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				modified TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX ix_conversions_source_id ON conversions (source_id)`,
			`CREATE TABLE ebook_ratings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				ebook_id INTEGER NOT NULL REFERENCES ebooks (id),
				user_id INTEGER NOT NULL REFERENCES users (id),
				stars INTEGER NOT NULL,
				created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX ux_ebook_ratings_ebook_user ON ebook_ratings (ebook_id, user_id)`,
		}

		for _, stmt := range statements {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	down := func(ctx context.Context, db *bun.DB) error {
		tables := []string{
			"ebook_ratings", "conversions", "sources", "ebook_genres",
			"ebook_authors", "ebooks", "users", "series", "authors",
			"formats", "genres", "languages",
		}
		for _, table := range tables {
			if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
