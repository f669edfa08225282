// Package formats is the repository for the Format reference table
// (extension + mime type pairs known to the catalog).
package formats

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/models"
)

var sortable = map[string]bool{"id": true, "extension": true, "mime_type": true, "created": true, "modified": true}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

type CreateOptions struct {
	Extension string
	MimeType  string
}

func (s *Service) Create(ctx context.Context, opts CreateOptions) (*models.Format, error) {
	format := &models.Format{Extension: opts.Extension, MimeType: opts.MimeType}
	if _, err := s.db.NewInsert().Model(format).Returning("*").Exec(ctx); err != nil {
		return nil, catalog.ConflictOrDBError(err, "A format with that extension and mime type already exists.")
	}
	return format, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Format, error) {
	format := new(models.Format)
	if err := s.db.NewSelect().Model(format).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "format")
	}
	return format, nil
}

// GetByExtension resolves the catalog Format matching a given file extension,
// used by the upload orchestrator when registering a new source.
func (s *Service) GetByExtension(ctx context.Context, ext string) (*models.Format, error) {
	format := new(models.Format)
	if err := s.db.NewSelect().Model(format).Where("extension = ?", ext).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "format")
	}
	return format, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*models.Format)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return catalog.NotFoundOrDBError(err, "format")
	}
	return nil
}

func (s *Service) List(ctx context.Context, params catalog.ListParams) (catalog.Page[*models.Format], error) {
	q := s.db.NewSelect().Model((*models.Format)(nil))
	if params.Filter != "" {
		q = q.Where("extension LIKE ?", "%"+params.Filter+"%")
	}

	total, err := q.Count(ctx)
	if err != nil {
		return catalog.Page[*models.Format]{}, catalog.NotFoundOrDBError(err, "format")
	}

	q, err = catalog.ApplySort(q, params.Sort, sortable, "extension")
	if err != nil {
		return catalog.Page[*models.Format]{}, err
	}

	var rows []*models.Format
	if err := q.Offset(params.Offset).Limit(params.Limit).Scan(ctx, &rows); err != nil {
		return catalog.Page[*models.Format]{}, catalog.NotFoundOrDBError(err, "format")
	}

	page := 1
	if params.Limit > 0 {
		page = params.Offset/params.Limit + 1
	}
	return catalog.NewPage(page, params.Limit, total, rows), nil
}

func (s *Service) ListAll(ctx context.Context) ([]*models.Format, error) {
	var rows []*models.Format
	if err := s.db.NewSelect().Model(&rows).OrderExpr("extension ASC").Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "format")
	}
	return rows, nil
}
