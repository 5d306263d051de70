package store

import (
	"context"

	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/pkg/builder"
)

// ListCafes returns the cafes of a roaster ordered by name.
func (s *Store) ListCafes(ctx context.Context, roasterID int) ([]models.Cafe, error) {
	return builder.Select[models.Cafe](s.db).
		Where(builder.Eq("roaster_id", roasterID)).
		OrderByAsc("name").
		All(ctx)
}

// GetCafe returns the cafe with id.
func (s *Store) GetCafe(ctx context.Context, id int) (*models.Cafe, error) {
	return builder.Select[models.Cafe](s.db).Where(builder.Eq("id", id)).First(ctx)
}

// CreateCafe inserts a cafe.
func (s *Store) CreateCafe(ctx context.Context, c *models.Cafe) (*models.Cafe, error) {
	return builder.Insert[models.Cafe](s.db).Values(*c).Returning("*").One(ctx)
}

// UpdateCafe overwrites the editable fields of cafe id.
func (s *Store) UpdateCafe(ctx context.Context, id int, c *models.Cafe) (*models.Cafe, error) {
	return builder.Update[models.Cafe](s.db).
		Set("name", c.Name).
		Set("address", c.Address).
		Set("city", c.City).
		Set("latitude", c.Latitude).
		Set("longitude", c.Longitude).
		Where(builder.Eq("id", id)).
		Returning("*").
		One(ctx)
}

// DeleteCafe removes the cafe with id.
func (s *Store) DeleteCafe(ctx context.Context, id int) error {
	n, err := builder.Delete[models.Cafe](s.db).Where(builder.Eq("id", id)).Exec(ctx)
	return mustAffect("cafes", n, err)
}

// ListBeans returns the beans of a roaster ordered by name.
func (s *Store) ListBeans(ctx context.Context, roasterID int) ([]models.Bean, error) {
	return builder.Select[models.Bean](s.db).
		Where(builder.Eq("roaster_id", roasterID)).
		OrderByAsc("name").
		All(ctx)
}

// GetBean returns the bean with id.
func (s *Store) GetBean(ctx context.Context, id int) (*models.Bean, error) {
	return builder.Select[models.Bean](s.db).Where(builder.Eq("id", id)).First(ctx)
}

// CreateBean inserts a bean.
func (s *Store) CreateBean(ctx context.Context, b *models.Bean) (*models.Bean, error) {
	return builder.Insert[models.Bean](s.db).Values(*b).Returning("*").One(ctx)
}

// UpdateBean overwrites the editable fields of bean id.
func (s *Store) UpdateBean(ctx context.Context, id int, b *models.Bean) (*models.Bean, error) {
	return builder.Update[models.Bean](s.db).
		Set("name", b.Name).
		Set("origin", b.Origin).
		Set("process", b.Process).
		Set("roast_level", b.RoastLevel).
		Set("tasting_notes", b.TastingNotes).
		Set("price_cents", b.PriceCents).
		Set("currency", b.Currency).
		Where(builder.Eq("id", id)).
		Returning("*").
		One(ctx)
}

// DeleteBean removes the bean with id.
func (s *Store) DeleteBean(ctx context.Context, id int) error {
	n, err := builder.Delete[models.Bean](s.db).Where(builder.Eq("id", id)).Exec(ctx)
	return mustAffect("beans", n, err)
}
