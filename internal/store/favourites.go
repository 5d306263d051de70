package store

import (
	"context"

	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/pkg/builder"
)

// ListFavourites returns the visible roasters a user favourited, by name.
func (s *Store) ListFavourites(ctx context.Context, userID int) ([]models.Roaster, error) {
	return builder.Select[models.Roaster](s.db).
		Where(
			builder.Raw("id IN (SELECT roaster_id FROM favourites WHERE user_id = ?)", userID),
			builder.Eq("hidden", false),
		).
		OrderByAsc("name").
		All(ctx)
}

// AddFavourite marks a roaster as a favourite. Adding twice is a no-op.
func (s *Store) AddFavourite(ctx context.Context, userID, roasterID int) error {
	_, err := builder.Insert[models.Favourite](s.db).
		Values(models.Favourite{UserID: userID, RoasterID: roasterID}).
		OnConflictDoNothing("user_id", "roaster_id").
		Exec(ctx)
	return err
}

// RemoveFavourite unmarks a roaster. Removing a missing favourite is a no-op.
func (s *Store) RemoveFavourite(ctx context.Context, userID, roasterID int) error {
	_, err := builder.Delete[models.Favourite](s.db).
		Where(builder.Eq("user_id", userID), builder.Eq("roaster_id", roasterID)).
		Exec(ctx)
	return err
}

// IsFavourite reports whether a user favourited a roaster.
func (s *Store) IsFavourite(ctx context.Context, userID, roasterID int) (bool, error) {
	return builder.Select[models.Favourite](s.db).
		Where(builder.Eq("user_id", userID), builder.Eq("roaster_id", roasterID)).
		Exists(ctx)
}
