// Package series is the repository for catalogued Series rows, including
// the series-merge operation used to consolidate duplicate series entries.
package series

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/models"
)

var sortable = map[string]bool{"id": true, "title": true, "created": true, "modified": true}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

type CreateOptions struct {
	Title string
}

func (s *Service) Create(ctx context.Context, opts CreateOptions) (*models.Series, error) {
	ser := &models.Series{Title: opts.Title}
	if _, err := s.db.NewInsert().Model(ser).Returning("*").Exec(ctx); err != nil {
		return nil, catalog.ConflictOrDBError(err, "A series with that title already exists.")
	}
	return ser, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Series, error) {
	ser := new(models.Series)
	if err := s.db.NewSelect().Model(ser).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "series")
	}
	return ser, nil
}

type UpdateOptions struct {
	ID      int64
	Version int64
	Title   string
}

func (s *Service) Update(ctx context.Context, opts UpdateOptions) (*models.Series, error) {
	q := catalog.ApplyOptimisticWhere(
		s.db.NewUpdate().Model((*models.Series)(nil)).Set("title = ?", opts.Title),
		opts.ID, opts.Version,
	)
	if err := catalog.CheckRowsAffected(q.Exec(ctx)); err != nil {
		return nil, err
	}
	return s.Get(ctx, opts.ID)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*models.Series)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return catalog.NotFoundOrDBError(err, "series")
	}
	return nil
}

// Merge reassigns every ebook.series_id pointing at fromID to toID, then
// deletes the fromID series row, all within one transaction. series_index
// values travel with the ebook unchanged; duplicate index collisions
// within the target series are left for catalog readers to disambiguate,
// since the catalog does not enforce uniqueness on (series_id, series_index).
func (s *Service) Merge(ctx context.Context, fromID, toID int64) error {
	if fromID == toID {
		return errcodes.Conflict("cannot merge a series into itself")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.Ebook)(nil)).
			Set("series_id = ?", toID).
			Where("series_id = ?", fromID).
			Exec(ctx); err != nil {
			return catalog.NotFoundOrDBError(err, "series")
		}

		res, err := tx.NewDelete().Model((*models.Series)(nil)).Where("id = ?", fromID).Exec(ctx)
		if err != nil {
			return catalog.NotFoundOrDBError(err, "series")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errcodes.NotFound("series")
		}
		return nil
	})
}

func (s *Service) List(ctx context.Context, params catalog.ListParams) (catalog.Page[*models.Series], error) {
	q := s.db.NewSelect().Model((*models.Series)(nil))
	if params.Filter != "" {
		q = q.Where("title LIKE ?", "%"+params.Filter+"%")
	}

	total, err := q.Count(ctx)
	if err != nil {
		return catalog.Page[*models.Series]{}, catalog.NotFoundOrDBError(err, "series")
	}

	q, err = catalog.ApplySort(q, params.Sort, sortable, "title")
	if err != nil {
		return catalog.Page[*models.Series]{}, err
	}

	var rows []*models.Series
	if err := q.Offset(params.Offset).Limit(params.Limit).Scan(ctx, &rows); err != nil {
		return catalog.Page[*models.Series]{}, catalog.NotFoundOrDBError(err, "series")
	}

	page := 1
	if params.Limit > 0 {
		page = params.Offset/params.Limit + 1
	}
	return catalog.NewPage(page, params.Limit, total, rows), nil
}

func (s *Service) ListAll(ctx context.Context) ([]*models.Series, error) {
	var rows []*models.Series
	if err := s.db.NewSelect().Model(&rows).OrderExpr("title ASC").Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "series")
	}
	return rows, nil
}
