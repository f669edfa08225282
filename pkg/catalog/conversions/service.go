// Package conversions is the repository for Conversion rows: derived
// artifacts of a Source rendered into another format.
package conversions

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/models"
)

var sortable = map[string]bool{"id": true, "created": true, "modified": true}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

type CreateOptions struct {
	SourceID int64
	FormatID int64
	Location string
	BatchID  *string
}

func (s *Service) Create(ctx context.Context, opts CreateOptions) (*models.Conversion, error) {
	conv := &models.Conversion{
		SourceID: opts.SourceID,
		FormatID: opts.FormatID,
		Location: opts.Location,
		BatchID:  opts.BatchID,
	}
	if _, err := s.db.NewInsert().Model(conv).Returning("*").Exec(ctx); err != nil {
		return nil, catalog.ConflictOrDBError(err, "A conversion already exists for that source and format.")
	}
	return conv, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Conversion, error) {
	conv := new(models.Conversion)
	if err := s.db.NewSelect().Model(conv).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "conversion")
	}
	return conv, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*models.Conversion)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return catalog.NotFoundOrDBError(err, "conversion")
	}
	return nil
}

func (s *Service) ListBySource(ctx context.Context, sourceID int64) ([]*models.Conversion, error) {
	var rows []*models.Conversion
	if err := s.db.NewSelect().Model(&rows).Where("source_id = ?", sourceID).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "conversion")
	}
	return rows, nil
}

func (s *Service) List(ctx context.Context, params catalog.ListParams) (catalog.Page[*models.Conversion], error) {
	q := s.db.NewSelect().Model((*models.Conversion)(nil))

	total, err := q.Count(ctx)
	if err != nil {
		return catalog.Page[*models.Conversion]{}, catalog.NotFoundOrDBError(err, "conversion")
	}

	q, err = catalog.ApplySort(q, params.Sort, sortable, "id")
	if err != nil {
		return catalog.Page[*models.Conversion]{}, err
	}

	var rows []*models.Conversion
	if err := q.Offset(params.Offset).Limit(params.Limit).Scan(ctx, &rows); err != nil {
		return catalog.Page[*models.Conversion]{}, catalog.NotFoundOrDBError(err, "conversion")
	}

	page := 1
	if params.Limit > 0 {
		page = params.Offset/params.Limit + 1
	}
	return catalog.NewPage(page, params.Limit, total, rows), nil
}
