package searchindex

import (
	"context"

	"github.com/pkg/errors"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/catalog/authors"
	"github.com/shishobooks/shisho/pkg/catalog/ebooks"
	"github.com/shishobooks/shisho/pkg/catalog/series"
)

// byID pages the catalog in id order during bootstrap.
var byID = []catalog.SortField{{Field: "id", Dir: catalog.Asc}}

// BootstrapFromCatalog rebuilds the index from scratch by paging through the
// catalog, 1000 rows at a time in id order, so startup never has to hold the whole
// catalog in memory at once. It is run whenever the index file is found
// empty at process start (see Index.NeedsBootstrap).
func BootstrapFromCatalog(ctx context.Context, idx *Index, ebookSvc *ebooks.Service, authorSvc *authors.Service, seriesSvc *series.Service) error {
	if err := idx.Reset(ctx); err != nil {
		return errors.Wrap(err, "resetting search index before bootstrap")
	}

	if err := bootstrapEbooks(ctx, idx, ebookSvc); err != nil {
		return err
	}
	if err := bootstrapAuthors(ctx, idx, authorSvc); err != nil {
		return err
	}
	if err := bootstrapSeries(ctx, idx, seriesSvc); err != nil {
		return err
	}
	return nil
}

func bootstrapEbooks(ctx context.Context, idx *Index, svc *ebooks.Service) error {
	offset := 0
	for {
		page, err := svc.List(ctx, catalog.ListParams{Offset: offset, Limit: bootstrapPageSize, Sort: byID})
		if err != nil {
			return errors.Wrap(err, "listing ebooks during search bootstrap")
		}
		if len(page.Rows) == 0 {
			return nil
		}

		docs := make([]Document, len(page.Rows))
		for i, e := range page.Rows {
			authorNames := make([]string, len(e.Authors))
			for j, a := range e.Authors {
				authorNames[j] = a.FullName()
			}
			var seriesTitle string
			if e.Series != nil {
				seriesTitle = e.Series.Title
			}
			docs[i] = Document{Kind: KindEbook, ID: e.ID, Title: e.Title, Authors: authorNames, Series: seriesTitle}
		}
		if err := idx.Upsert(ctx, docs); err != nil {
			return errors.Wrap(err, "indexing ebook page during bootstrap")
		}

		if len(page.Rows) < bootstrapPageSize {
			return nil
		}
		offset += bootstrapPageSize
	}
}

func bootstrapAuthors(ctx context.Context, idx *Index, svc *authors.Service) error {
	offset := 0
	for {
		page, err := svc.List(ctx, catalog.ListParams{Offset: offset, Limit: bootstrapPageSize, Sort: byID})
		if err != nil {
			return errors.Wrap(err, "listing authors during search bootstrap")
		}
		if len(page.Rows) == 0 {
			return nil
		}

		docs := make([]Document, len(page.Rows))
		for i, a := range page.Rows {
			docs[i] = Document{Kind: KindAuthor, ID: a.ID, Title: a.FullName()}
		}
		if err := idx.Upsert(ctx, docs); err != nil {
			return errors.Wrap(err, "indexing author page during bootstrap")
		}

		if len(page.Rows) < bootstrapPageSize {
			return nil
		}
		offset += bootstrapPageSize
	}
}

func bootstrapSeries(ctx context.Context, idx *Index, svc *series.Service) error {
	offset := 0
	for {
		page, err := svc.List(ctx, catalog.ListParams{Offset: offset, Limit: bootstrapPageSize, Sort: byID})
		if err != nil {
			return errors.Wrap(err, "listing series during search bootstrap")
		}
		if len(page.Rows) == 0 {
			return nil
		}

		docs := make([]Document, len(page.Rows))
		for i, s := range page.Rows {
			docs[i] = Document{Kind: KindSeries, ID: s.ID, Title: s.Title}
		}
		if err := idx.Upsert(ctx, docs); err != nil {
			return errors.Wrap(err, "indexing series page during bootstrap")
		}

		if len(page.Rows) < bootstrapPageSize {
			return nil
		}
		offset += bootstrapPageSize
	}
}
