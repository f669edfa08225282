// Package ratings is the repository for per-user ebook star ratings.
// Re-rating is delete-then-create rather than update: Rating carries no
// version column.
package ratings

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/shishobooks/shisho/pkg/catalog"
	"github.com/shishobooks/shisho/pkg/errcodes"
	"github.com/shishobooks/shisho/pkg/models"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// Rate creates a new rating, or replaces the user's existing rating for
// this ebook if one already exists.
func (s *Service) Rate(ctx context.Context, ebookID, userID int64, stars int) (*models.Rating, error) {
	if stars < 1 || stars > 5 {
		return nil, errcodes.ValidationError("stars must be between 1 and 5.")
	}

	var rating *models.Rating
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.Rating)(nil)).
			Where("ebook_id = ?", ebookID).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}

		rating = &models.Rating{EbookID: ebookID, UserID: userID, Stars: stars}
		_, err := tx.NewInsert().Model(rating).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		return nil, catalog.NotFoundOrDBError(err, "rating")
	}
	return rating, nil
}

func (s *Service) Get(ctx context.Context, ebookID, userID int64) (*models.Rating, error) {
	rating := new(models.Rating)
	err := s.db.NewSelect().Model(rating).
		Where("ebook_id = ?", ebookID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, catalog.NotFoundOrDBError(err, "rating")
	}
	return rating, nil
}

// Average returns the mean star rating for an ebook, and the number of
// ratings it is computed from.
func (s *Service) Average(ctx context.Context, ebookID int64) (float64, int, error) {
	var row struct {
		Avg   float64
		Count int
	}
	err := s.db.NewSelect().
		Model((*models.Rating)(nil)).
		ColumnExpr("AVG(stars) AS avg").
		ColumnExpr("COUNT(*) AS count").
		Where("ebook_id = ?", ebookID).
		Scan(ctx, &row)
	if err != nil {
		return 0, 0, catalog.NotFoundOrDBError(err, "rating")
	}
	return row.Avg, row.Count, nil
}

func (s *Service) Delete(ctx context.Context, ebookID, userID int64) error {
	_, err := s.db.NewDelete().
		Model((*models.Rating)(nil)).
		Where("ebook_id = ?", ebookID).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return catalog.NotFoundOrDBError(err, "rating")
	}
	return nil
}
