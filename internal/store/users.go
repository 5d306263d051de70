package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/pkg/builder"
)

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a user. A taken email fails with runtime.ErrDuplicateKey.
func (s *Store) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	u.Email = NormalizeEmail(u.Email)
	created, err := builder.Insert[models.User](s.db).Values(*u).Returning("*").One(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id int) (*models.User, error) {
	return builder.Select[models.User](s.db).Where(builder.Eq("id", id)).First(ctx)
}

// GetUserByEmail returns the user with email, compared case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return builder.Select[models.User](s.db).Where(builder.Eq("email", NormalizeEmail(email))).First(ctx)
}

// ListUsers returns one page of users, oldest first, and the total count.
func (s *Store) ListUsers(ctx context.Context, p Page) ([]models.User, int64, error) {
	total, err := builder.Select[models.User](s.db).Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	p = p.Normalize()
	users, err := builder.Select[models.User](s.db).OrderByAsc("id").Page(p.Page, p.Limit).All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// UpdateUserRole sets the role of user id.
func (s *Store) UpdateUserRole(ctx context.Context, id int, role string) (*models.User, error) {
	return builder.Update[models.User](s.db).
		Set("role", role).
		SetExpr("updated_at", "NOW()").
		Where(builder.Eq("id", id)).
		Returning("*").
		One(ctx)
}

// UpdateUserPassword replaces the password hash of user id.
func (s *Store) UpdateUserPassword(ctx context.Context, id int, hash string) error {
	n, err := builder.Update[models.User](s.db).
		Set("password_hash", hash).
		SetExpr("updated_at", "NOW()").
		Where(builder.Eq("id", id)).
		Exec(ctx)
	return mustAffect("users", n, err)
}

// DeleteUser removes a user with their reviews and favourites, then
// refreshes the rating of every roaster they reviewed.
func (s *Store) DeleteUser(ctx context.Context, id int) error {
	return s.WithTx(ctx, func(tx *Store) error {
		reviews, err := builder.Select[models.Review](tx.db).
			Columns("id", "roaster_id").
			Where(builder.Eq("user_id", id)).
			All(ctx)
		if err != nil {
			return err
		}
		n, err := builder.Delete[models.User](tx.db).Where(builder.Eq("id", id)).Exec(ctx)
		if err := mustAffect("users", n, err); err != nil {
			return err
		}
		refreshed := map[int]bool{}
		for _, rv := range reviews {
			if refreshed[rv.RoasterID] {
				continue
			}
			refreshed[rv.RoasterID] = true
			if err := tx.RefreshRoasterRating(ctx, rv.RoasterID); err != nil {
				return fmt.Errorf("failed to refresh rating of roaster %d: %w", rv.RoasterID, err)
			}
		}
		return nil
	})
}
