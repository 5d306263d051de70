package store

import (
	"context"
	"fmt"

	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/pkg/builder"
)

// ReviewWithAuthor is a review with the display name of its author.
type ReviewWithAuthor struct {
	models.Review
	AuthorName string
}

// ListReviews returns the reviews of a roaster, newest first.
func (s *Store) ListReviews(ctx context.Context, roasterID int) ([]ReviewWithAuthor, error) {
	q, err := s.querier()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx,
		`SELECT r.id, r.roaster_id, r.user_id, r.rating, r.comment, r.created_at, u.name
		 FROM reviews r JOIN users u ON u.id = r.user_id
		 WHERE r.roaster_id = $1
		 ORDER BY r.created_at DESC, r.id DESC`, roasterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]ReviewWithAuthor, 0)
	for rows.Next() {
		var rv ReviewWithAuthor
		if err := rows.Scan(&rv.ID, &rv.RoasterID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.AuthorName); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

// GetReview returns the review with id.
func (s *Store) GetReview(ctx context.Context, id int) (*models.Review, error) {
	return builder.Select[models.Review](s.db).Where(builder.Eq("id", id)).First(ctx)
}

// CreateReview stores a review and refreshes the roaster rating in the same
// transaction. A second review by the same user for the same roaster fails
// with runtime.ErrDuplicateKey.
func (s *Store) CreateReview(ctx context.Context, rv *models.Review) (*models.Review, error) {
	var created *models.Review
	err := s.WithTx(ctx, func(tx *Store) error {
		var err error
		created, err = builder.Insert[models.Review](tx.db).Values(*rv).Returning("*").One(ctx)
		if err != nil {
			return err
		}
		return tx.RefreshRoasterRating(ctx, rv.RoasterID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return created, nil
}

// DeleteReview removes a review and refreshes the roaster rating in the same
// transaction.
func (s *Store) DeleteReview(ctx context.Context, id int) error {
	return s.WithTx(ctx, func(tx *Store) error {
		deleted, err := builder.Delete[models.Review](tx.db).
			Where(builder.Eq("id", id)).
			ExecReturning(ctx)
		if err != nil {
			return err
		}
		if len(deleted) == 0 {
			return notFound("reviews")
		}
		return tx.RefreshRoasterRating(ctx, deleted[0].RoasterID)
	})
}
