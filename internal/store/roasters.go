package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/pkg/builder"
	"github.com/marshallshelly/roastery/pkg/runtime"
	"golang.org/x/sync/errgroup"
)

// Roaster list orderings.
const (
	SortName   = "name"
	SortRating = "rating"
	SortNewest = "newest"
)

// RoasterFilter narrows ListRoasters. Zero values mean "no filter".
type RoasterFilter struct {
	Query         string
	CountryCode   string
	RegionSlug    string
	SpecialtyKey  string
	Featured      *bool
	Verified      *bool
	IncludeHidden bool
	Sort          string
	Page
}

// RoasterDetail is a roaster with everything its profile page shows.
type RoasterDetail struct {
	Roaster     models.Roaster
	Country     *models.Country
	Region      *models.Region
	Specialties []models.Specialty
	Beans       []models.Bean
	Cafes       []models.Cafe
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (f RoasterFilter) conditions() []builder.Condition {
	var conds []builder.Condition
	if !f.IncludeHidden {
		conds = append(conds, builder.Eq("hidden", false))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		conds = append(conds, builder.Group(
			builder.ILike("name", pattern),
			builder.Or(builder.ILike("city", pattern)),
		))
	}
	if f.CountryCode != "" {
		conds = append(conds, builder.Raw(
			"country_id = (SELECT id FROM countries WHERE code = ?)",
			strings.ToUpper(f.CountryCode),
		))
	}
	if f.RegionSlug != "" {
		conds = append(conds, builder.Raw("region_id = (SELECT id FROM regions WHERE slug = ?)", f.RegionSlug))
	}
	if f.SpecialtyKey != "" {
		conds = append(conds, builder.Raw(
			"EXISTS (SELECT 1 FROM roaster_specialties rs JOIN specialties s ON s.id = rs.specialty_id"+
				" WHERE rs.roaster_id = roasters.id AND s.key = ?)",
			f.SpecialtyKey,
		))
	}
	if f.Featured != nil {
		conds = append(conds, builder.Eq("featured", *f.Featured))
	}
	if f.Verified != nil {
		conds = append(conds, builder.Eq("verified", *f.Verified))
	}
	return conds
}

func (s *Store) roasterQuery(f RoasterFilter) *builder.SelectQuery[models.Roaster] {
	q := builder.Select[models.Roaster](s.db).Where(f.conditions()...)
	switch f.Sort {
	case SortRating:
		q.OrderByDesc("rating").OrderByDesc("review_count").OrderByAsc("name")
	case SortNewest:
		q.OrderByDesc("created_at").OrderByDesc("id")
	default:
		q.OrderByDesc("featured").OrderByAsc("name").OrderByAsc("id")
	}
	p := f.Page.Normalize()
	return q.Page(p.Page, p.Limit)
}

// ListRoasters returns one page of roasters matching f and the total number
// of matches.
func (s *Store) ListRoasters(ctx context.Context, f RoasterFilter) ([]models.Roaster, int64, error) {
	total, err := builder.Select[models.Roaster](s.db).Where(f.conditions()...).Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count roasters: %w", err)
	}
	roasters, err := s.roasterQuery(f).All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list roasters: %w", err)
	}
	return roasters, total, nil
}

// GetRoaster looks a roaster up by numeric id, then by slug.
func (s *Store) GetRoaster(ctx context.Context, idOrSlug string) (*models.Roaster, error) {
	if id, err := strconv.Atoi(idOrSlug); err == nil {
		r, err := s.GetRoasterByID(ctx, id)
		if err == nil || !isNotFound(err) {
			return r, err
		}
	}
	return builder.Select[models.Roaster](s.db).Where(builder.Eq("slug", idOrSlug)).First(ctx)
}

// GetRoasterByID returns the roaster with id.
func (s *Store) GetRoasterByID(ctx context.Context, id int) (*models.Roaster, error) {
	return builder.Select[models.Roaster](s.db).Where(builder.Eq("id", id)).First(ctx)
}

// GetRoasterDetail loads a roaster and its related rows.
func (s *Store) GetRoasterDetail(ctx context.Context, idOrSlug string) (*RoasterDetail, error) {
	r, err := s.GetRoaster(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	d := &RoasterDetail{Roaster: *r}

	g, gctx := errgroup.WithContext(ctx)
	if r.CountryID != nil {
		g.Go(func() error {
			c, err := builder.Select[models.Country](s.db).Where(builder.Eq("id", *r.CountryID)).First(gctx)
			if err != nil {
				return fmt.Errorf("failed to load country: %w", err)
			}
			d.Country = c
			return nil
		})
	}
	if r.RegionID != nil {
		g.Go(func() error {
			reg, err := builder.Select[models.Region](s.db).Where(builder.Eq("id", *r.RegionID)).First(gctx)
			if err != nil {
				return fmt.Errorf("failed to load region: %w", err)
			}
			d.Region = reg
			return nil
		})
	}
	g.Go(func() (err error) {
		d.Specialties, err = s.RoasterSpecialties(gctx, r.ID)
		return err
	})
	g.Go(func() (err error) {
		d.Beans, err = s.ListBeans(gctx, r.ID)
		return err
	})
	g.Go(func() (err error) {
		d.Cafes, err = s.ListCafes(gctx, r.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// CreateRoaster inserts r and returns the stored row.
func (s *Store) CreateRoaster(ctx context.Context, r *models.Roaster) (*models.Roaster, error) {
	created, err := builder.Insert[models.Roaster](s.db).Values(*r).Returning("*").One(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create roaster: %w", err)
	}
	return created, nil
}

// UpdateRoaster overwrites the editable fields of roaster id with r.
func (s *Store) UpdateRoaster(ctx context.Context, id int, r *models.Roaster) (*models.Roaster, error) {
	return builder.Update[models.Roaster](s.db).
		Set("slug", r.Slug).
		Set("name", r.Name).
		Set("description", r.Description).
		Set("country_id", r.CountryID).
		Set("region_id", r.RegionID).
		Set("city", r.City).
		Set("address", r.Address).
		Set("website", r.Website).
		Set("instagram", r.Instagram).
		Set("image_url", r.ImageURL).
		Set("latitude", r.Latitude).
		Set("longitude", r.Longitude).
		Set("founded_year", r.FoundedYear).
		Set("verified", r.Verified).
		Set("featured", r.Featured).
		Set("hidden", r.Hidden).
		Set("owner_id", r.OwnerID).
		SetExpr("updated_at", "NOW()").
		Where(builder.Eq("id", id)).
		Returning("*").
		One(ctx)
}

// DeleteRoaster removes a roaster; its cafes, beans, reviews, favourites,
// specialty links and Reddit posts go with it.
func (s *Store) DeleteRoaster(ctx context.Context, id int) error {
	n, err := builder.Delete[models.Roaster](s.db).Where(builder.Eq("id", id)).Exec(ctx)
	return mustAffect("roasters", n, err)
}

// SetRoasterSpecialties replaces the specialties of a roaster with the given
// keys. Unknown keys are a validation error and nothing is changed.
func (s *Store) SetRoasterSpecialties(ctx context.Context, roasterID int, keys []string) ([]models.Specialty, error) {
	var result []models.Specialty
	err := s.WithTx(ctx, func(tx *Store) error {
		if _, err := builder.Select[models.Roaster](tx.db).Where(builder.Eq("id", roasterID)).ForUpdate().First(ctx); err != nil {
			return err
		}

		keyArgs := make([]any, 0, len(keys))
		seen := map[string]bool{}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				keyArgs = append(keyArgs, k)
			}
		}
		specialties, err := builder.Select[models.Specialty](tx.db).
			Where(builder.In("key", keyArgs...)).
			OrderByAsc("key").
			All(ctx)
		if err != nil {
			return err
		}
		if len(specialties) != len(keyArgs) {
			found := map[string]bool{}
			for _, sp := range specialties {
				found[sp.Key] = true
			}
			for _, k := range keyArgs {
				if !found[k.(string)] {
					return &runtime.ValidationError{Field: "specialties", Message: fmt.Sprintf("unknown specialty %q", k)}
				}
			}
		}

		if _, err := builder.Delete[models.RoasterSpecialty](tx.db).Where(builder.Eq("roaster_id", roasterID)).Exec(ctx); err != nil {
			return err
		}
		if len(specialties) > 0 {
			links := make([]models.RoasterSpecialty, len(specialties))
			for i, sp := range specialties {
				links[i] = models.RoasterSpecialty{RoasterID: roasterID, SpecialtyID: sp.ID}
			}
			if _, err := builder.Insert[models.RoasterSpecialty](tx.db).Values(links...).Exec(ctx); err != nil {
				return err
			}
		}
		result = specialties
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set roaster specialties: %w", err)
	}
	return result, nil
}

// RefreshRoasterRating recomputes rating and review_count from reviews.
func (s *Store) RefreshRoasterRating(ctx context.Context, roasterID int) error {
	n, err := builder.Update[models.Roaster](s.db).
		SetExpr("rating", "COALESCE((SELECT ROUND(AVG(rating)::numeric, 2)::float8 FROM reviews WHERE reviews.roaster_id = roasters.id), 0)").
		SetExpr("review_count", "(SELECT COUNT(*) FROM reviews WHERE reviews.roaster_id = roasters.id)").
		Where(builder.Eq("id", roasterID)).
		Exec(ctx)
	return mustAffect("roasters", n, err)
}

// SlugTaken reports whether another roaster already uses slug.
func (s *Store) SlugTaken(ctx context.Context, slug string, exceptID int) (bool, error) {
	return builder.Select[models.Roaster](s.db).
		Where(builder.Eq("slug", slug), builder.NotEq("id", exceptID)).
		Exists(ctx)
}
