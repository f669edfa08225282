// Package genres is the repository for the Genre reference table.
package genres

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/models"
)

var sortable = map[string]bool{"id": true, "name": true, "created": true, "modified": true}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

type CreateOptions struct {
	Name string
}

func (s *Service) Create(ctx context.Context, opts CreateOptions) (*models.Genre, error) {
	genre := &models.Genre{Name: opts.Name}
	if _, err := s.db.NewInsert().Model(genre).Returning("*").Exec(ctx); err != nil {
		return nil, catalog.ConflictOrDBError(err, "A genre with that name already exists.")
	}
	return genre, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Genre, error) {
	genre := new(models.Genre)
	if err := s.db.NewSelect().Model(genre).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "genre")
	}
	return genre, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*models.Genre, error) {
	genre := new(models.Genre)
	if err := s.db.NewSelect().Model(genre).Where("name = ?", name).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "genre")
	}
	return genre, nil
}

type UpdateOptions struct {
	ID      int64
	Version int64
	Name    string
}

func (s *Service) Update(ctx context.Context, opts UpdateOptions) (*models.Genre, error) {
	q := catalog.ApplyOptimisticWhere(
		s.db.NewUpdate().Model((*models.Genre)(nil)).Set("name = ?", opts.Name),
		opts.ID, opts.Version,
	)
	if err := catalog.CheckRowsAffected(q.Exec(ctx)); err != nil {
		return nil, err
	}
	return s.Get(ctx, opts.ID)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*models.Genre)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return catalog.NotFoundOrDBError(err, "genre")
	}
	return nil
}

func (s *Service) List(ctx context.Context, params catalog.ListParams) (catalog.Page[*models.Genre], error) {
	q := s.db.NewSelect().Model((*models.Genre)(nil))
	if params.Filter != "" {
		q = q.Where("name LIKE ?", "%"+params.Filter+"%")
	}

	total, err := q.Count(ctx)
	if err != nil {
		return catalog.Page[*models.Genre]{}, catalog.NotFoundOrDBError(err, "genre")
	}

	q, err = catalog.ApplySort(q, params.Sort, sortable, "name")
	if err != nil {
		return catalog.Page[*models.Genre]{}, err
	}

	var rows []*models.Genre
	if err := q.Offset(params.Offset).Limit(params.Limit).Scan(ctx, &rows); err != nil {
		return catalog.Page[*models.Genre]{}, catalog.NotFoundOrDBError(err, "genre")
	}

	page := 1
	if params.Limit > 0 {
		page = params.Offset/params.Limit + 1
	}
	return catalog.NewPage(page, params.Limit, total, rows), nil
}

func (s *Service) ListAll(ctx context.Context) ([]*models.Genre, error) {
	var rows []*models.Genre
	if err := s.db.NewSelect().Model(&rows).OrderExpr("name ASC").Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "genre")
	}
	return rows, nil
}
