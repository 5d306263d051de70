package store

import (
	"context"
	"fmt"

	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/pkg/builder"
)

// ListSpecialties returns every specialty ordered by key.
func (s *Store) ListSpecialties(ctx context.Context) ([]models.Specialty, error) {
	return builder.Select[models.Specialty](s.db).OrderByAsc("key").All(ctx)
}

// GetSpecialty returns the specialty with id.
func (s *Store) GetSpecialty(ctx context.Context, id int) (*models.Specialty, error) {
	return builder.Select[models.Specialty](s.db).Where(builder.Eq("id", id)).First(ctx)
}

// RoasterSpecialties returns the specialties linked to a roaster.
func (s *Store) RoasterSpecialties(ctx context.Context, roasterID int) ([]models.Specialty, error) {
	specialties, err := builder.Select[models.Specialty](s.db).
		Where(builder.Raw("id IN (SELECT specialty_id FROM roaster_specialties WHERE roaster_id = ?)", roasterID)).
		OrderByAsc("key").
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load specialties: %w", err)
	}
	return specialties, nil
}

// CreateSpecialty inserts a specialty.
func (s *Store) CreateSpecialty(ctx context.Context, sp *models.Specialty) (*models.Specialty, error) {
	return builder.Insert[models.Specialty](s.db).Values(*sp).Returning("*").One(ctx)
}

// UpdateSpecialty changes the key and name of specialty id.
func (s *Store) UpdateSpecialty(ctx context.Context, id int, sp *models.Specialty) (*models.Specialty, error) {
	return builder.Update[models.Specialty](s.db).
		Set("key", sp.Key).
		Set("name", sp.Name).
		Where(builder.Eq("id", id)).
		Returning("*").
		One(ctx)
}

// DeleteSpecialty removes a specialty and its roaster links.
func (s *Store) DeleteSpecialty(ctx context.Context, id int) error {
	n, err := builder.Delete[models.Specialty](s.db).Where(builder.Eq("id", id)).Exec(ctx)
	return mustAffect("specialties", n, err)
}

// UpsertSpecialty inserts a specialty or refreshes the name of an existing one.
func (s *Store) UpsertSpecialty(ctx context.Context, sp *models.Specialty) (*models.Specialty, error) {
	return builder.Insert[models.Specialty](s.db).
		Values(*sp).
		OnConflictDoUpdate([]string{"key"}, "name").
		Returning("*").
		One(ctx)
}
