// Package ebooks is the repository for the catalog's central entity. The
// write path is the most involved of the catalog: every create/update
// validates its series pairing and references, computes (or keeps) the
// naming-derived base_dir, and fully rewrites its author/genre
// associations inside one transaction.
package ebooks

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/models"
	"github.com/shishobooks/shisho/pkg/naming"
)

var sortable = map[string]bool{"id": true, "title": true, "created": true, "modified": true}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

type WriteOptions struct {
	Title       string
	Description string
	Cover       string
	SeriesID    *int64
	SeriesIndex *float64
	LanguageID  int64
	AuthorIDs   []int64
	GenreIDs    []int64
	CreatedBy   *int64
}

func (o WriteOptions) validatePairing() error {
	if (o.SeriesID == nil) != (o.SeriesIndex == nil) {
		return errcodes.ValidationError("series and series_index must be set together.")
	}
	return nil
}

// Create validates references, computes base_dir, and inserts the ebook
// plus its author/genre association rows within one transaction.
func (s *Service) Create(ctx context.Context, opts WriteOptions) (*models.Ebook, error) {
	if err := opts.validatePairing(); err != nil {
		return nil, err
	}

	var id int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		attrs, err := s.resolveNamingAttrs(ctx, tx, opts)
		if err != nil {
			return err
		}

		ebook := &models.Ebook{
			Title:       opts.Title,
			Description: opts.Description,
			Cover:       opts.Cover,
			BaseDir:     naming.EbookBaseDir(attrs),
			SeriesID:    opts.SeriesID,
			SeriesIndex: opts.SeriesIndex,
			LanguageID:  opts.LanguageID,
			CreatedBy:   opts.CreatedBy,
		}
		if _, err := tx.NewInsert().Model(ebook).Returning("*").Exec(ctx); err != nil {
			return catalog.ConflictOrDBError(err, "An ebook with that title already exists.")
		}
		id = ebook.ID

		return writeAssociations(ctx, tx, id, opts.AuthorIDs, opts.GenreIDs)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// resolveNamingAttrs validates the language/series/author references and
// assembles the attrs Naming needs to derive base_dir. Author count
// mismatch (a referenced id does not resolve) is a validation error, not a
// NotFound - the caller supplied a bad reference, not a bad lookup key.
func (s *Service) resolveNamingAttrs(ctx context.Context, tx bun.Tx, opts WriteOptions) (naming.EbookAttrs, error) {
	lang := new(models.Language)
	if err := tx.NewSelect().Model(lang).Where("id = ?", opts.LanguageID).Scan(ctx); err != nil {
		return naming.EbookAttrs{}, errcodes.ValidationError("language_id does not reference an existing language.")
	}

	var seriesTitle string
	if opts.SeriesID != nil {
		ser := new(models.Series)
		if err := tx.NewSelect().Model(ser).Where("id = ?", *opts.SeriesID).Scan(ctx); err != nil {
			return naming.EbookAttrs{}, errcodes.ValidationError("series_id does not reference an existing series.")
		}
		seriesTitle = ser.Title
	}

	var authorRows []*models.Author
	if len(opts.AuthorIDs) > 0 {
		if err := tx.NewSelect().Model(&authorRows).Where("id IN (?)", bun.In(opts.AuthorIDs)).Scan(ctx); err != nil {
			return naming.EbookAttrs{}, errcodes.DatabaseError()
		}
		if len(authorRows) != len(opts.AuthorIDs) {
			return naming.EbookAttrs{}, errcodes.ValidationError("one or more author_ids do not reference an existing author.")
		}
	}

	authorNames := make([]naming.AuthorName, len(authorRows))
	for i, a := range authorRows {
		authorNames[i] = naming.AuthorName{LastName: a.LastName, FirstName: a.FirstName}
	}

	return naming.EbookAttrs{
		Title:        opts.Title,
		Authors:      authorNames,
		Series:       seriesTitle,
		SeriesIndex:  opts.SeriesIndex,
		LanguageCode: lang.Code,
	}, nil
}

func writeAssociations(ctx context.Context, tx bun.Tx, ebookID int64, authorIDs, genreIDs []int64) error {
	if _, err := tx.NewDelete().Model((*models.EbookAuthor)(nil)).Where("ebook_id = ?", ebookID).Exec(ctx); err != nil {
		return errcodes.DatabaseError()
	}
	if _, err := tx.NewDelete().Model((*models.EbookGenre)(nil)).Where("ebook_id = ?", ebookID).Exec(ctx); err != nil {
		return errcodes.DatabaseError()
	}

	if len(authorIDs) > 0 {
		rows := make([]*models.EbookAuthor, len(authorIDs))
		for i, aid := range authorIDs {
			rows[i] = &models.EbookAuthor{EbookID: ebookID, AuthorID: aid}
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return errcodes.DatabaseError()
		}
	}

	if len(genreIDs) > 0 {
		rows := make([]*models.EbookGenre, len(genreIDs))
		for i, gid := range genreIDs {
			rows[i] = &models.EbookGenre{EbookID: ebookID, GenreID: gid}
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return errcodes.DatabaseError()
		}
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Ebook, error) {
	ebook := new(models.Ebook)
	err := s.db.NewSelect().Model(ebook).
		Relation("Language").
		Relation("Series").
		Relation("Authors").
		Relation("Genres").
		Relation("Sources").
		Relation("Sources.Format").
		Where("ebk.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, catalog.NotFoundOrDBError(err, "ebook")
	}
	return ebook, nil
}

type UpdateOptions struct {
	ID      int64
	Version int64
	WriteOptions
}

// Update fully re-validates the reference set, like Create, but leaves
// base_dir as it was computed at creation: a changed title, author set or
// series does not move the ebook's directory. Associations are rewritten
// wholesale, so callers that only intend to edit description/cover should
// pass the unchanged title/authors/series back.
func (s *Service) Update(ctx context.Context, opts UpdateOptions) (*models.Ebook, error) {
	if err := opts.validatePairing(); err != nil {
		return nil, err
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.resolveNamingAttrs(ctx, tx, opts.WriteOptions); err != nil {
			return err
		}

		q := catalog.ApplyOptimisticWhere(
			tx.NewUpdate().Model((*models.Ebook)(nil)).
				Set("title = ?", opts.Title).
				Set("description = ?", opts.Description).
				Set("cover = ?", opts.Cover).
				Set("series_id = ?", opts.SeriesID).
				Set("series_index = ?", opts.SeriesIndex).
				Set("language_id = ?", opts.LanguageID),
			opts.ID, opts.Version,
		)
		if err := catalog.CheckRowsAffected(q.Exec(ctx)); err != nil {
			return err
		}

		return writeAssociations(ctx, tx, opts.ID, opts.AuthorIDs, opts.GenreIDs)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, opts.ID)
}

// Delete removes an ebook and its association rows within one transaction.
// The caller is responsible for removing the backing Source files from the
// FileStore and the SearchIndex document before or after this call.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.EbookAuthor)(nil)).Where("ebook_id = ?", id).Exec(ctx); err != nil {
			return errcodes.DatabaseError()
		}
		if _, err := tx.NewDelete().Model((*models.EbookGenre)(nil)).Where("ebook_id = ?", id).Exec(ctx); err != nil {
			return errcodes.DatabaseError()
		}
		if _, err := tx.NewDelete().Model((*models.Source)(nil)).Where("ebook_id = ?", id).Exec(ctx); err != nil {
			return errcodes.DatabaseError()
		}

		res, err := tx.NewDelete().Model((*models.Ebook)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return catalog.NotFoundOrDBError(err, "ebook")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errcodes.NotFound("ebook")
		}
		return nil
	})
}

func (s *Service) List(ctx context.Context, params catalog.ListParams) (catalog.Page[*models.Ebook], error) {
	q := s.db.NewSelect().Model((*models.Ebook)(nil)).
		Relation("Language").
		Relation("Series").
		Relation("Authors").
		Relation("Genres")
	if params.Filter != "" {
		q = q.Where("ebk.title LIKE ?", "%"+params.Filter+"%")
	}

	total, err := q.Count(ctx)
	if err != nil {
		return catalog.Page[*models.Ebook]{}, catalog.NotFoundOrDBError(err, "ebook")
	}

	q, err = catalog.ApplySort(q, params.Sort, sortable, "title")
	if err != nil {
		return catalog.Page[*models.Ebook]{}, err
	}

	var rows []*models.Ebook
	if err := q.Offset(params.Offset).Limit(params.Limit).Scan(ctx, &rows); err != nil {
		return catalog.Page[*models.Ebook]{}, catalog.NotFoundOrDBError(err, "ebook")
	}

	page := 1
	if params.Limit > 0 {
		page = params.Offset/params.Limit + 1
	}
	return catalog.NewPage(page, params.Limit, total, rows), nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*models.Ebook)(nil)).Count(ctx)
	if err != nil {
		return 0, catalog.NotFoundOrDBError(err, "ebook")
	}
	return n, nil
}

// FindByTitleAuthorsSeries supports the upload orchestrator's dedup step:
// an ebook is considered the same if title, author set, and series all
// match an existing row.
func (s *Service) FindByTitleAuthorsSeries(ctx context.Context, title string, authorIDs []int64, seriesID *int64) (*models.Ebook, error) {
	q := s.db.NewSelect().Model((*models.Ebook)(nil)).Where("ebk.title = ?", title)
	if seriesID != nil {
		q = q.Where("ebk.series_id = ?", *seriesID)
	} else {
		q = q.Where("ebk.series_id IS NULL")
	}

	var candidates []*models.Ebook
	if err := q.Relation("Authors").Scan(ctx, &candidates); err != nil {
		return nil, catalog.NotFoundOrDBError(err, "ebook")
	}

	for _, c := range candidates {
		if sameAuthorSet(c.Authors, authorIDs) {
			return s.Get(ctx, c.ID)
		}
	}
	return nil, errcodes.NotFound("ebook")
}

func sameAuthorSet(authors []*models.Author, authorIDs []int64) bool {
	if len(authors) != len(authorIDs) {
		return false
	}
	want := make(map[int64]bool, len(authorIDs))
	for _, id := range authorIDs {
		want[id] = true
	}
	for _, a := range authors {
		if !want[a.ID] {
			return false
		}
	}
	return true
}
