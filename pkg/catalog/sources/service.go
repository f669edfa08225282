// Package sources is the repository for Source rows: the on-disk files
// backing an ebook in a given format, located under the books/ namespace.
package sources

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/models"
)

var sortable = map[string]bool{"id": true, "size": true, "created": true, "modified": true}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

type CreateOptions struct {
	EbookID   int64
	FormatID  int64
	Location  string
	Size      int64
	Hash      string
	Quality   string
	CreatedBy *int64
}

func (s *Service) Create(ctx context.Context, opts CreateOptions) (*models.Source, error) {
	src := &models.Source{
		EbookID:   opts.EbookID,
		FormatID:  opts.FormatID,
		Location:  opts.Location,
		Size:      opts.Size,
		Hash:      opts.Hash,
		Quality:   opts.Quality,
		CreatedBy: opts.CreatedBy,
	}
	if _, err := s.db.NewInsert().Model(src).Returning("*").Exec(ctx); err != nil {
		return nil, catalog.ConflictOrDBError(err, "This ebook already has a source with that content.")
	}
	return src, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Source, error) {
	src := new(models.Source)
	if err := s.db.NewSelect().Model(src).Relation("Format").Where("src.id = ?", id).Scan(ctx); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "source")
	}
	return src, nil
}

// GetByEbookAndHash supports the publish pipeline's dedup check: a source
// already registered for this ebook with identical content is reused
// rather than re-imported.
func (s *Service) GetByEbookAndHash(ctx context.Context, ebookID int64, hash string) (*models.Source, error) {
	src := new(models.Source)
	err := s.db.NewSelect().Model(src).
		Where("ebook_id = ?", ebookID).
		Where("hash = ?", hash).
		Scan(ctx)
	if err != nil {
		return nil, catalog.NotFoundOrDBError(err, "source")
	}
	return src, nil
}

type UpdateOptions struct {
	ID       int64
	Version  int64
	Location string
	Quality  string
}

func (s *Service) Update(ctx context.Context, opts UpdateOptions) (*models.Source, error) {
	q := catalog.ApplyOptimisticWhere(
		s.db.NewUpdate().Model((*models.Source)(nil)).
			Set("location = ?", opts.Location).
			Set("quality = ?", opts.Quality),
		opts.ID, opts.Version,
	)
	if err := catalog.CheckRowsAffected(q.Exec(ctx)); err != nil {
		return nil, err
	}
	return s.Get(ctx, opts.ID)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*models.Source)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return catalog.NotFoundOrDBError(err, "source")
	}
	return nil
}

func (s *Service) ListByEbook(ctx context.Context, ebookID int64) ([]*models.Source, error) {
	var rows []*models.Source
	err := s.db.NewSelect().Model(&rows).Relation("Format").Where("ebook_id = ?", ebookID).Scan(ctx)
	if err != nil {
		return nil, catalog.NotFoundOrDBError(err, "source")
	}
	return rows, nil
}

func (s *Service) List(ctx context.Context, params catalog.ListParams) (catalog.Page[*models.Source], error) {
	q := s.db.NewSelect().Model((*models.Source)(nil)).Relation("Format")

	total, err := q.Count(ctx)
	if err != nil {
		return catalog.Page[*models.Source]{}, catalog.NotFoundOrDBError(err, "source")
	}

	q, err = catalog.ApplySort(q, params.Sort, sortable, "id")
	if err != nil {
		return catalog.Page[*models.Source]{}, err
	}

	var rows []*models.Source
	if err := q.Offset(params.Offset).Limit(params.Limit).Scan(ctx, &rows); err != nil {
		return catalog.Page[*models.Source]{}, catalog.NotFoundOrDBError(err, "source")
	}

	page := 1
	if params.Limit > 0 {
		page = params.Offset/params.Limit + 1
	}
	return catalog.NewPage(page, params.Limit, total, rows), nil
}
