package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/pkg/builder"
)

// CountryWithCount is a country and the number of visible roasters in it.
type CountryWithCount struct {
	models.Country
	RoasterCount int64
}

// ListCountries returns every country ordered by code, with roaster counts.
func (s *Store) ListCountries(ctx context.Context) ([]CountryWithCount, error) {
	countries, err := builder.Select[models.Country](s.db).OrderByAsc("code").All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}

	q, err := s.querier()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx,
		`SELECT country_id, COUNT(*) FROM roasters
		 WHERE country_id IS NOT NULL AND NOT hidden
		 GROUP BY country_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count roasters per country: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var id int
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]CountryWithCount, len(countries))
	for i, c := range countries {
		out[i] = CountryWithCount{Country: c, RoasterCount: counts[c.ID]}
	}
	return out, nil
}

// GetCountryByCode returns the country with an ISO alpha-2 code.
func (s *Store) GetCountryByCode(ctx context.Context, code string) (*models.Country, error) {
	return builder.Select[models.Country](s.db).
		Where(builder.Eq("code", strings.ToUpper(strings.TrimSpace(code)))).
		First(ctx)
}

// ListRegions returns regions ordered by slug, limited to one country when
// countryCode is set.
func (s *Store) ListRegions(ctx context.Context, countryCode string) ([]models.Region, error) {
	q := builder.Select[models.Region](s.db).OrderByAsc("slug")
	if countryCode != "" {
		q.Where(builder.Raw("country_id = (SELECT id FROM countries WHERE code = ?)", strings.ToUpper(countryCode)))
	}
	regions, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	return regions, nil
}

// CreateCountry inserts a country.
func (s *Store) CreateCountry(ctx context.Context, c *models.Country) (*models.Country, error) {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	return builder.Insert[models.Country](s.db).Values(*c).Returning("*").One(ctx)
}

// CreateRegion inserts a region.
func (s *Store) CreateRegion(ctx context.Context, r *models.Region) (*models.Region, error) {
	return builder.Insert[models.Region](s.db).Values(*r).Returning("*").One(ctx)
}

// UpsertCountry inserts a country or refreshes the name of an existing one.
func (s *Store) UpsertCountry(ctx context.Context, c *models.Country) (*models.Country, error) {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	return builder.Insert[models.Country](s.db).
		Values(*c).
		OnConflictDoUpdate([]string{"code"}, "name").
		Returning("*").
		One(ctx)
}

// UpsertRegion inserts a region or refreshes the country and name of an
// existing one.
func (s *Store) UpsertRegion(ctx context.Context, r *models.Region) (*models.Region, error) {
	return builder.Insert[models.Region](s.db).
		Values(*r).
		OnConflictDoUpdate([]string{"slug"}, "country_id", "name").
		Returning("*").
		One(ctx)
}
