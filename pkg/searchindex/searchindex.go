// Package searchindex is the single-writer full-text index over ebooks,
// authors, and series. It owns its own SQLite file, separate from the
// relational catalog, per the persisted-state layout in the spec (mbs4.db
// vs mbs4-ft-idx.db). All mutations are serialised through one command
// channel consumed by a dedicated goroutine; readers query the same *bun.DB
// directly and are otherwise unsynchronised, matching FTS5's single-writer/
// concurrent-reader model. Grounded on the teacher's pkg/search/service.go
// (FTS5 virtual table, delete-then-insert upsert, raw ExecContext DDL).
package searchindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const bootstrapPageSize = 1000

// Kind distinguishes the three document shapes the index carries.
type Kind string

const (
	KindEbook  Kind = "ebook"
	KindAuthor Kind = "author"
	KindSeries Kind = "series"
)

// DocKey identifies one document for delete/upsert purposes. Ids are only
// unique within a Kind, so both fields are required.
type DocKey struct {
	Kind Kind
	ID   int64
}

// Document is one indexable unit. Authors/Series only populate Title (and,
// for ebooks, Authors/Series) per the three shapes the spec defines.
type Document struct {
	Kind    Kind
	ID      int64
	Title   string
	Authors []string
	Series  string
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Kind  Kind
	ID    int64
	Title string
	Score float64
}

type command struct {
	run  func(ctx context.Context) error
	done chan error
}

// Index is the search subsystem's handle: one bun.DB connection to its own
// file, plus the single-writer command queue.
type Index struct {
	db   *bun.DB
	cmds chan command
	stop chan struct{}
	done chan struct{}
}

// Open creates (or attaches to) the index database file and runs schema
// bootstrap if the FTS5 table does not yet exist. It does not start the
// writer goroutine - call Start for that, once the caller is ready to
// accept writes.
func Open(dbPath string) (*Index, error) {
	_, statErr := os.Stat(dbPath)
	fresh := os.IsNotExist(statErr)

	sqldb, err := sql.Open(sqliteshim.ShimName, dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening search index database")
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		return nil, errors.Wrap(err, "enabling WAL mode on search index")
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}

	idx := &Index{
		db:   db,
		cmds: make(chan command),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	_ = fresh // bootstrap-needed signal is exposed via NeedsBootstrap for callers
	return idx, nil
}

// NeedsBootstrap reports whether the documents table is currently empty,
// the condition under which the caller should run BootstrapFromCatalog
// before accepting traffic.
func (idx *Index) NeedsBootstrap(ctx context.Context) (bool, error) {
	var count int
	err := idx.db.NewSelect().TableExpr("documents_fts").ColumnExpr("COUNT(*)").Scan(ctx, &count)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return count == 0, nil
}

func ensureSchema(db *bun.DB) error {
	_, err := db.ExecContext(context.Background(), `
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			kind UNINDEXED,
			ref_id UNINDEXED,
			title,
			authors,
			series
		)
	`)
	return errors.Wrap(err, "creating documents_fts table")
}

// Close stops the writer goroutine (if started) and closes the database.
func (idx *Index) Close() error {
	select {
	case <-idx.stop:
	default:
		close(idx.stop)
		<-idx.done
	}
	return idx.db.Close()
}

// Start launches the single dedicated writer goroutine. Safe to call once.
func (idx *Index) Start() {
	go idx.run()
}

func (idx *Index) run() {
	defer close(idx.done)
	for {
		select {
		case <-idx.stop:
			return
		case cmd := <-idx.cmds:
			cmd.done <- cmd.run(context.Background())
		}
	}
}

func (idx *Index) submit(ctx context.Context, run func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	select {
	case idx.cmds <- command{run: run, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Upsert indexes each document via delete-then-insert, so repeated calls
// with the same (Kind, ID) are idempotent.
func (idx *Index) Upsert(ctx context.Context, docs []Document) error {
	return idx.submit(ctx, func(ctx context.Context) error {
		for _, d := range docs {
			if err := idx.deleteOne(ctx, d.Kind, d.ID); err != nil {
				return err
			}
			_, err := idx.db.ExecContext(ctx,
				`INSERT INTO documents_fts (kind, ref_id, title, authors, series) VALUES (?, ?, ?, ?, ?)`,
				string(d.Kind), d.ID, d.Title, foldQuery(strings.Join(d.Authors, " ")), foldQuery(d.Series),
			)
			if err != nil {
				return errors.Wrap(err, "inserting search document")
			}
		}
		return nil
	})
}

// Delete removes the given documents from the index.
func (idx *Index) Delete(ctx context.Context, keys []DocKey) error {
	return idx.submit(ctx, func(ctx context.Context) error {
		for _, k := range keys {
			if err := idx.deleteOne(ctx, k.Kind, k.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (idx *Index) deleteOne(ctx context.Context, kind Kind, id int64) error {
	_, err := idx.db.ExecContext(ctx, `DELETE FROM documents_fts WHERE kind = ? AND ref_id = ?`, string(kind), id)
	return errors.Wrap(err, "deleting search document")
}

// Reset drops every indexed document. Used before a full re-bootstrap.
func (idx *Index) Reset(ctx context.Context) error {
	return idx.submit(ctx, func(ctx context.Context) error {
		_, err := idx.db.ExecContext(ctx, `DELETE FROM documents_fts`)
		return errors.Wrap(err, "resetting search index")
	})
}

const regexQueryPrefix = "/"

// Search queries the index. A query beginning with "/" is treated as a Go
// regexp against the title field (FTS5 has no native regex MATCH operator,
// so this path loads titles and filters in memory); any other query is
// parsed by the FTS5 default query syntax over title/authors/series.
// Ties in score are broken by id ascending.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if strings.HasPrefix(query, regexQueryPrefix) {
		return idx.searchRegex(ctx, strings.TrimPrefix(query, regexQueryPrefix), limit)
	}
	return idx.searchFTS(ctx, query, limit)
}

func (idx *Index) searchFTS(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	var rows []struct {
		Kind  string  `bun:"kind"`
		RefID int64   `bun:"ref_id"`
		Title string  `bun:"title"`
		Rank  float64 `bun:"rank"`
	}
	err := idx.db.NewSelect().
		TableExpr("documents_fts").
		ColumnExpr("kind, ref_id, title, rank").
		Where("documents_fts MATCH ?", buildMatchQuery(query)).
		Order("rank", "ref_id ASC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "searching documents_fts")
	}

	results := make([]SearchResult, len(rows))
	for i, r := range rows {
		results[i] = SearchResult{Kind: Kind(r.Kind), ID: r.RefID, Title: r.Title, Score: -r.Rank}
	}
	return results, nil
}

func (idx *Index) searchRegex(ctx context.Context, pattern string, limit int) ([]SearchResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, "compiling regex query")
	}

	var rows []struct {
		Kind  string `bun:"kind"`
		RefID int64  `bun:"ref_id"`
		Title string `bun:"title"`
	}
	err = idx.db.NewSelect().
		TableExpr("documents_fts").
		ColumnExpr("kind, ref_id, title").
		OrderExpr("ref_id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "scanning documents_fts for regex search")
	}

	var results []SearchResult
	for _, r := range rows {
		if len(results) >= limit {
			break
		}
		if re.MatchString(r.Title) {
			results = append(results, SearchResult{Kind: Kind(r.Kind), ID: r.RefID, Title: r.Title, Score: 0})
		}
	}
	return results, nil
}

// buildMatchQuery wraps free-text input as an FTS5 prefix query across the
// indexed text columns, tolerating punctuation FTS5's tokenizer would
// otherwise choke on.
func buildMatchQuery(query string) string {
	fields := strings.Fields(foldQuery(query))
	if len(fields) == 0 {
		return `""`
	}
	terms := make([]string, len(fields))
	for i, f := range fields {
		terms[i] = fmt.Sprintf(`"%s"*`, strings.ReplaceAll(f, `"`, ``))
	}
	return strings.Join(terms, " ")
}

// foldQuery lower-cases input. It does not fold diacritics: FTS5's default
// unicode61 tokenizer folds case and strips diacritics from both the indexed
// text and the MATCH terms, while the regex path matches the title as stored.
func foldQuery(s string) string {
	return strings.ToLower(s)
}
