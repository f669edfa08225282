// Package authors is the repository for catalogued Author rows, including
// the author-merge operation used to consolidate duplicate credits.
package authors

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/models"
)

var sortable = map[string]bool{"id": true, "last_name": true, "first_name": true, "created": true, "modified": true}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

type CreateOptions struct {
	LastName    string
	FirstName   string
	Description string
}

func (s *Service) Create(ctx context.Context, opts CreateOptions) (*models.Author, error) {
	author := &models.Author{LastName: opts.LastName, FirstName: opts.FirstName, Description: opts.Description}
	if _, err := s.db.NewInsert().Model(author).Returning("*").Exec(ctx); err != nil {
		return nil, catalog.ConflictOrDBError(err, "An author with that name already exists.")
	}
	return author, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Author, error) {
	author := new(models.Author)
	if err := s.db.NewSelect().Model(author).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "author")
	}
	return author, nil
}

type UpdateOptions struct {
	ID          int64
	Version     int64
	LastName    string
	FirstName   string
	Description string
}

func (s *Service) Update(ctx context.Context, opts UpdateOptions) (*models.Author, error) {
	q := catalog.ApplyOptimisticWhere(
		s.db.NewUpdate().Model((*models.Author)(nil)).
			Set("last_name = ?", opts.LastName).
			Set("first_name = ?", opts.FirstName).
			Set("description = ?", opts.Description),
		opts.ID, opts.Version,
	)
	if err := catalog.CheckRowsAffected(q.Exec(ctx)); err != nil {
		return nil, err
	}
	return s.Get(ctx, opts.ID)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*models.Author)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return catalog.NotFoundOrDBError(err, "author")
	}
	return nil
}

// Merge reassigns every ebook_authors row crediting fromID to toID instead,
// then deletes the fromID author row, all within one transaction. A
// conflict on the association's composite primary key (the target ebook is
// already credited to toID) is resolved by dropping the duplicate link
// rather than failing the merge.
func (s *Service) Merge(ctx context.Context, fromID, toID int64) error {
	if fromID == toID {
		return errcodes.Conflict("cannot merge an author into itself")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*models.EbookAuthor)(nil)).
			Set("author_id = ?", toID).
			Where("author_id = ?", fromID).
			Where("ebook_id NOT IN (SELECT ebook_id FROM ebook_authors WHERE author_id = ?)", toID).
			Exec(ctx); err != nil {
			return catalog.NotFoundOrDBError(err, "author")
		}

		if _, err := tx.NewDelete().
			Model((*models.EbookAuthor)(nil)).
			Where("author_id = ?", fromID).
			Exec(ctx); err != nil {
			return catalog.NotFoundOrDBError(err, "author")
		}

		res, err := tx.NewDelete().Model((*models.Author)(nil)).Where("id = ?", fromID).Exec(ctx)
		if err != nil {
			return catalog.NotFoundOrDBError(err, "author")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errcodes.NotFound("author")
		}
		return nil
	})
}

func (s *Service) List(ctx context.Context, params catalog.ListParams) (catalog.Page[*models.Author], error) {
	q := s.db.NewSelect().Model((*models.Author)(nil))
	if params.Filter != "" {
		q = q.Where("last_name LIKE ? OR first_name LIKE ?", "%"+params.Filter+"%", "%"+params.Filter+"%")
	}

	total, err := q.Count(ctx)
	if err != nil {
		return catalog.Page[*models.Author]{}, catalog.NotFoundOrDBError(err, "author")
	}

	q, err = catalog.ApplySort(q, params.Sort, sortable, "last_name")
	if err != nil {
		return catalog.Page[*models.Author]{}, err
	}

	var rows []*models.Author
	if err := q.Offset(params.Offset).Limit(params.Limit).Scan(ctx, &rows); err != nil {
		return catalog.Page[*models.Author]{}, catalog.NotFoundOrDBError(err, "author")
	}

	page := 1
	if params.Limit > 0 {
		page = params.Offset/params.Limit + 1
	}
	return catalog.NewPage(page, params.Limit, total, rows), nil
}

func (s *Service) ListAll(ctx context.Context) ([]*models.Author, error) {
	var rows []*models.Author
	if err := s.db.NewSelect().Model(&rows).OrderExpr("last_name ASC").Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "author")
	}
	return rows, nil
}
