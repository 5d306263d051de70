package api

import (
	"time"

	"github.com/marshallshelly/roastery/internal/i18n"
	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/internal/store"
)

// RoasterSummary is a roaster as shown in listings.
type RoasterSummary struct {
	ID          int      `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	City        string   `json:"city"`
	CountryID   *int     `json:"countryId"`
	RegionID    *int     `json:"regionId"`
	Website     string   `json:"website"`
	Instagram   string   `json:"instagram"`
	ImageURL    string   `json:"imageUrl"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Verified    bool     `json:"verified"`
	Featured    bool     `json:"featured"`
	Hidden      bool     `json:"hidden,omitempty"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
}

// RoasterDetail is the profile of one roaster.
type RoasterDetail struct {
	RoasterSummary
	Address      string          `json:"address"`
	FoundedYear  *int            `json:"foundedYear"`
	OwnerID      *int            `json:"ownerId,omitempty"`
	Country      *CountryView    `json:"country"`
	Region       *RegionView     `json:"region"`
	Specialties  []SpecialtyView `json:"specialties"`
	Beans        []models.Bean   `json:"beans"`
	Cafes        []models.Cafe   `json:"cafes"`
	IsFavourite  *bool           `json:"isFavourite,omitempty"`
	Translations i18n.Text       `json:"translations,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// CountryView is a localized country.
type CountryView struct {
	ID           int          `json:"id"`
	Code         string       `json:"code"`
	Name         string       `json:"name"`
	RoasterCount *int64       `json:"roasterCount,omitempty"`
	Regions      []RegionView `json:"regions,omitempty"`
}

// RegionView is a localized region.
type RegionView struct {
	ID        int    `json:"id"`
	CountryID int    `json:"countryId"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
}

// SpecialtyView is a localized specialty.
type SpecialtyView struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// ReviewView is a review with its author's name.
type ReviewView struct {
	ID         int       `json:"id"`
	RoasterID  int       `json:"roasterId"`
	UserID     int       `json:"userId"`
	AuthorName string    `json:"authorName"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// AnalyticsView is the admin analytics summary.
type AnalyticsView struct {
	Since       time.Time          `json:"since"`
	Days        int                `json:"days"`
	Total       int64              `json:"total"`
	ByType      map[string]int64   `json:"byType"`
	TopRoasters []RoasterViewCount `json:"topRoasters"`
}

// RoasterViewCount is one row of the most-viewed ranking.
type RoasterViewCount struct {
	RoasterID int    `json:"roasterId"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Views     int64  `json:"views"`
}

// text resolves a translation, falling back to the default locale.
func (s *Server) text(t i18n.Text, lang string) string {
	return i18n.GetTranslation(t, lang, s.localizer.Default())
}

func (s *Server) roasterSummary(r models.Roaster, lang string) RoasterSummary {
	return RoasterSummary{
		ID:          r.ID,
		Slug:        r.Slug,
		Name:        r.Name,
		Description: s.text(r.Description, lang),
		City:        r.City,
		CountryID:   r.CountryID,
		RegionID:    r.RegionID,
		Website:     r.Website,
		Instagram:   r.Instagram,
		ImageURL:    r.ImageURL,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Verified:    r.Verified,
		Featured:    r.Featured,
		Hidden:      r.Hidden,
		Rating:      r.Rating,
		ReviewCount: r.ReviewCount,
	}
}

func (s *Server) roasterDetail(d *store.RoasterDetail, lang string) RoasterDetail {
	out := RoasterDetail{
		RoasterSummary: s.roasterSummary(d.Roaster, lang),
		Address:        d.Roaster.Address,
		FoundedYear:    d.Roaster.FoundedYear,
		Specialties:    i18n.LocalizeResults(d.Specialties, lang, s.specialtyView),
		Beans:          nonNil(d.Beans),
		Cafes:          nonNil(d.Cafes),
		CreatedAt:      d.Roaster.CreatedAt,
		UpdatedAt:      d.Roaster.UpdatedAt,
	}
	if d.Country != nil {
		c := s.countryView(*d.Country, lang)
		out.Country = &c
	}
	if d.Region != nil {
		r := s.regionView(*d.Region, lang)
		out.Region = &r
	}
	return out
}

func (s *Server) countryView(c models.Country, lang string) CountryView {
	return CountryView{ID: c.ID, Code: c.Code, Name: s.text(c.Name, lang)}
}

func (s *Server) countryWithCount(c store.CountryWithCount, lang string) CountryView {
	v := s.countryView(c.Country, lang)
	count := c.RoasterCount
	v.RoasterCount = &count
	return v
}

func (s *Server) regionView(r models.Region, lang string) RegionView {
	return RegionView{ID: r.ID, CountryID: r.CountryID, Slug: r.Slug, Name: s.text(r.Name, lang)}
}

func (s *Server) specialtyView(sp models.Specialty, lang string) SpecialtyView {
	return SpecialtyView{ID: sp.ID, Key: sp.Key, Name: s.text(sp.Name, lang)}
}

func reviewView(rv store.ReviewWithAuthor) ReviewView {
	return ReviewView{
		ID:         rv.ID,
		RoasterID:  rv.RoasterID,
		UserID:     rv.UserID,
		AuthorName: rv.AuthorName,
		Rating:     rv.Rating,
		Comment:    rv.Comment,
		CreatedAt:  rv.CreatedAt,
	}
}

// nonNil keeps empty collections as [] rather than null in JSON.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
