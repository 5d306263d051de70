// Package seed loads reference data (countries, regions, specialties) from
// YAML and upserts it.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/marshallshelly/roastery/internal/i18n"
	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/internal/slug"
	"gopkg.in/yaml.v3"
)

//go:embed data/seed.yaml
var defaultSeed []byte

// Data is the seed file layout.
type Data struct {
	Countries   []Country   `yaml:"countries"`
	Specialties []Specialty `yaml:"specialties"`
}

type Country struct {
	Code    string    `yaml:"code"`
	Name    i18n.Text `yaml:"name"`
	Regions []Region  `yaml:"regions"`
}

type Region struct {
	Slug string    `yaml:"slug"`
	Name i18n.Text `yaml:"name"`
}

type Specialty struct {
	Key  string    `yaml:"key"`
	Name i18n.Text `yaml:"name"`
}

// Target receives seeded rows. *store.Store satisfies it.
type Target interface {
	UpsertCountry(ctx context.Context, c *models.Country) (*models.Country, error)
	UpsertRegion(ctx context.Context, r *models.Region) (*models.Region, error)
	UpsertSpecialty(ctx context.Context, s *models.Specialty) (*models.Specialty, error)
}

// Summary counts upserted rows.
type Summary struct {
	Countries   int `json:"countries"`
	Regions     int `json:"regions"`
	Specialties int `json:"specialties"`
}

var (
	countryCode  = regexp.MustCompile(`^[A-Z]{2}$`)
	specialtyKey = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Default returns the embedded seed data.
func Default() (*Data, error) {
	return Load(bytes.NewReader(defaultSeed))
}

// LoadFile reads seed data from path.
func LoadFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates seed data. Unknown keys are rejected.
func Load(r io.Reader) (*Data, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var d Data
	if err := dec.Decode(&d); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks codes, slugs, keys and names, and rejects duplicates.
func (d *Data) Validate() error {
	codes := map[string]bool{}
	slugs := map[string]bool{}
	for i := range d.Countries {
		c := &d.Countries[i]
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		if !countryCode.MatchString(c.Code) {
			return fmt.Errorf("country %d: code %q is not ISO 3166 alpha-2", i, c.Code)
		}
		if codes[c.Code] {
			return fmt.Errorf("country %s: duplicate code", c.Code)
		}
		codes[c.Code] = true
		if !hasText(c.Name) {
			return fmt.Errorf("country %s: name is empty", c.Code)
		}
		for _, r := range c.Regions {
			if !slug.Valid(r.Slug) {
				return fmt.Errorf("country %s: region slug %q is invalid", c.Code, r.Slug)
			}
			if slugs[r.Slug] {
				return fmt.Errorf("region %s: duplicate slug", r.Slug)
			}
			slugs[r.Slug] = true
			if !hasText(r.Name) {
				return fmt.Errorf("region %s: name is empty", r.Slug)
			}
		}
	}

	keys := map[string]bool{}
	for _, s := range d.Specialties {
		if !specialtyKey.MatchString(s.Key) {
			return fmt.Errorf("specialty key %q is invalid", s.Key)
		}
		if keys[s.Key] {
			return fmt.Errorf("specialty %s: duplicate key", s.Key)
		}
		keys[s.Key] = true
		if !hasText(s.Name) {
			return fmt.Errorf("specialty %s: name is empty", s.Key)
		}
	}
	return nil
}

func hasText(t i18n.Text) bool {
	for _, v := range t {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// Apply upserts d into target. Existing rows keep their ids; names are
// refreshed.
func Apply(ctx context.Context, target Target, d *Data) (Summary, error) {
	var sum Summary
	for _, c := range d.Countries {
		country, err := target.UpsertCountry(ctx, &models.Country{Code: c.Code, Name: c.Name})
		if err != nil {
			return sum, fmt.Errorf("failed to seed country %s: %w", c.Code, err)
		}
		sum.Countries++
		for _, r := range c.Regions {
			if _, err := target.UpsertRegion(ctx, &models.Region{CountryID: country.ID, Slug: r.Slug, Name: r.Name}); err != nil {
				return sum, fmt.Errorf("failed to seed region %s: %w", r.Slug, err)
			}
			sum.Regions++
		}
	}
	for _, s := range d.Specialties {
		if _, err := target.UpsertSpecialty(ctx, &models.Specialty{Key: s.Key, Name: s.Name}); err != nil {
			return sum, fmt.Errorf("failed to seed specialty %s: %w", s.Key, err)
		}
		sum.Specialties++
	}
	return sum, nil
}
