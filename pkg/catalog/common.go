// Package catalog holds the shared pieces every per-entity repository in its
// sub-packages builds on: list parameters, paginated results, and the
// optimistic-concurrency update helper. This is the "small shared helper
// parameterising (table, columns, id, version)" the design notes call for in
// place of the original's proc-macro-generated CRUD.
package catalog

import (
	"database/sql"
	"errors"
	"math"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/uptrace/bun"
)

const MaxPageSize = 1000

// SortDir is the direction of a single sort field.
type SortDir int

const (
	Asc SortDir = iota
	Desc
)

// SortField is one parsed "sort" query token, e.g. "-title" -> {"title", Desc}.
type SortField struct {
	Field string
	Dir   SortDir
}

// ListParams is the common shape every entity's List accepts.
type ListParams struct {
	Offset int
	Limit  int
	Sort   []SortField
	Filter string
}

// Page is the common paginated response shape.
type Page[T any] struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int   `json:"total"`
	TotalPages int   `json:"total_pages"`
	Rows       []T   `json:"rows"`
}

// NewPage computes TotalPages from total/pageSize and fills in rows.
func NewPage[T any](page, pageSize, total int, rows []T) Page[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return Page[T]{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		Rows:       rows,
	}
}

// ApplySort validates each requested field against allowed (the per-entity
// allow-list) and applies it to q, returning InvalidOrderByField on the
// first unrecognised field.
func ApplySort(q *bun.SelectQuery, sort []SortField, allowed map[string]bool, defaultField string) (*bun.SelectQuery, error) {
	if len(sort) == 0 {
		return q.OrderExpr("? ASC", bun.Ident(defaultField)), nil
	}
	for _, s := range sort {
		if !allowed[s.Field] {
			return nil, errcodes.InvalidOrderByField(s.Field)
		}
		dir := "ASC"
		if s.Dir == Desc {
			dir = "DESC"
		}
		q = q.OrderExpr("? "+dir, bun.Ident(s.Field))
	}
	return q, nil
}

// ApplyOptimisticWhere predicates an UPDATE on (id = ? AND version = ?) and
// bumps version by one. Callers build the rest of the query (Model, Column,
// Set of the actual changed fields) and pass it through here just before
// Exec, then check the result with CheckRowsAffected.
func ApplyOptimisticWhere(q *bun.UpdateQuery, id, version int64) *bun.UpdateQuery {
	return q.Set("version = version + 1").
		Where("id = ?", id).
		Where("version = ?", version)
}

// CheckRowsAffected translates a zero-rows-affected UPDATE result into
// errcodes.FailedUpdate() - the canonical translation of a concurrent-edit
// race into the error handling design's Conflict taxonomy.
func CheckRowsAffected(res sql.Result, err error) error {
	if err != nil {
		return pkgerrors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.WithStack(err)
	}
	if n == 0 {
		return errcodes.FailedUpdate()
	}
	return nil
}

// IsUniqueViolation reports whether err came from a SQLite UNIQUE constraint
// failure. Works across both modernc.org/sqlite and mattn/go-sqlite3 error
// message shapes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLITE_CONSTRAINT")
}

// NotFoundOrDBError translates sql.ErrNoRows into errcodes.NotFound(resource)
// and anything else into the generic errcodes.DatabaseError(), per the
// propagation policy that repositories translate DB errors into the domain
// taxonomy at their boundary.
func NotFoundOrDBError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errcodes.NotFound(resource)
	}
	return errcodes.DatabaseError()
}

// ConflictOrDBError translates a unique-constraint violation into
// errcodes.Conflict(msg) and anything else into errcodes.DatabaseError().
func ConflictOrDBError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return errcodes.Conflict(msg)
	}
	return errcodes.DatabaseError()
}
