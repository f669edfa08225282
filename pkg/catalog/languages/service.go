// Package languages is the repository for the Language reference table.
package languages

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/models"
)

var sortable = map[string]bool{"id": true, "name": true, "code": true, "created": true, "modified": true}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

type CreateOptions struct {
	Name string
	Code string
}

func (s *Service) Create(ctx context.Context, opts CreateOptions) (*models.Language, error) {
	lang := &models.Language{Name: opts.Name, Code: opts.Code}
	if _, err := s.db.NewInsert().Model(lang).Returning("*").Exec(ctx); err != nil {
		return nil, catalog.ConflictOrDBError(err, "A language with that code already exists.")
	}
	return lang, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Language, error) {
	lang := new(models.Language)
	err := s.db.NewSelect().Model(lang).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, catalog.NotFoundOrDBError(err, "language")
	}
	return lang, nil
}

// GetByCode resolves a language by its 2-letter code, used by the upload
// orchestrator's reference resolution step.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Language, error) {
	lang := new(models.Language)
	err := s.db.NewSelect().Model(lang).Where("code = ?", code).Scan(ctx)
	if err != nil {
		return nil, catalog.NotFoundOrDBError(err, "language")
	}
	return lang, nil
}

type UpdateOptions struct {
	ID      int64
	Version int64
	Name    string
	Code    string
}

func (s *Service) Update(ctx context.Context, opts UpdateOptions) (*models.Language, error) {
	q := catalog.ApplyOptimisticWhere(
		s.db.NewUpdate().Model((*models.Language)(nil)).
			Set("name = ?", opts.Name).
			Set("code = ?", opts.Code),
		opts.ID, opts.Version,
	)
	if err := catalog.CheckRowsAffected(q.Exec(ctx)); err != nil {
		return nil, err
	}
	return s.Get(ctx, opts.ID)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*models.Language)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return catalog.NotFoundOrDBError(err, "language")
	}
	return nil
}

func (s *Service) List(ctx context.Context, params catalog.ListParams) (catalog.Page[*models.Language], error) {
	q := s.db.NewSelect().Model((*models.Language)(nil))
	if params.Filter != "" {
		q = q.Where("name LIKE ?", "%"+params.Filter+"%")
	}

	total, err := q.Count(ctx)
	if err != nil {
		return catalog.Page[*models.Language]{}, catalog.NotFoundOrDBError(err, "language")
	}

	q, err = catalog.ApplySort(q, params.Sort, sortable, "id")
	if err != nil {
		return catalog.Page[*models.Language]{}, err
	}

	var rows []*models.Language
	if err := q.Offset(params.Offset).Limit(params.Limit).Scan(ctx, &rows); err != nil {
		return catalog.Page[*models.Language]{}, catalog.NotFoundOrDBError(err, "language")
	}

	page := params.Offset/maxInt(params.Limit, 1) + 1
	return catalog.NewPage(page, params.Limit, total, rows), nil
}

func (s *Service) ListAll(ctx context.Context) ([]*models.Language, error) {
	var rows []*models.Language
	if err := s.db.NewSelect().Model(&rows).OrderExpr("name ASC").Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "language")
	}
	return rows, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*models.Language)(nil)).Count(ctx)
	if err != nil {
		return 0, catalog.NotFoundOrDBError(err, "language")
	}
	return n, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
