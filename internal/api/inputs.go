package api

import (
	"encoding/json"
	"net/mail"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/marshallshelly/roastery/internal/auth"
	"github.com/marshallshelly/roastery/internal/i18n"
	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/internal/slug"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

var (
	specialtyKeyPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	countryCodePattern  = regexp.MustCompile(`^[A-Z]{2}$`)
	currencyPattern     = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Bounds on free-text input, in characters.
const (
	maxNameLength          = 200
	maxPersonNameLength    = 120
	maxSubjectLength       = 200
	minContactMessage      = 10
	maxContactMessage      = 5000
	maxCommentLength       = 2000
	maxRedditTitleLength   = 300
	maxBcryptPasswordBytes = 72
	minFoundedYear         = 1800
)

func length(s string) int { return utf8.RuneCountInString(s) }

func checkLength(v runtime.ValidationErrors, field, value string, min, max int) {
	switch n := length(value); {
	case n < min && min == 1:
		v.Add(field, "is required")
	case n < min:
		v.Add(field, "is too short")
	case n > max:
		v.Add(field, "is too long")
	}
}

func checkURL(v runtime.ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.Add(field, "must be an absolute http(s) URL")
	}
}

func checkCoordinates(v runtime.ValidationErrors, lat, lng *float64) {
	if lat != nil && (*lat < -90 || *lat > 90) {
		v.Add("latitude", "must be between -90 and 90")
	}
	if lng != nil && (*lng < -180 || *lng > 180) {
		v.Add("longitude", "must be between -180 and 180")
	}
}

func checkText(v runtime.ValidationErrors, field string, t i18n.Text, required bool) {
	empty := true
	for lang, value := range t {
		if strings.TrimSpace(lang) == "" {
			v.Add(field, "has an empty language key")
			return
		}
		if strings.TrimSpace(value) != "" {
			empty = false
		}
	}
	if required && empty {
		v.Add(field, "needs at least one translation")
	}
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && length(s) <= 320
}

type roasterInput struct {
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description i18n.Text `json:"description"`
	CountryID   *int      `json:"countryId"`
	RegionID    *int      `json:"regionId"`
	City        string    `json:"city"`
	Address     string    `json:"address"`
	Website     string    `json:"website"`
	Instagram   string    `json:"instagram"`
	ImageURL    string    `json:"imageUrl"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	FoundedYear *int      `json:"foundedYear"`
	Verified    bool      `json:"verified"`
	Featured    bool      `json:"featured"`
	Hidden      bool      `json:"hidden"`
	OwnerID     *int      `json:"ownerId"`
}

func (in *roasterInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	in.City = strings.TrimSpace(in.City)
	in.Address = strings.TrimSpace(in.Address)
	in.Website = strings.TrimSpace(in.Website)
	in.Instagram = strings.TrimPrefix(strings.TrimSpace(in.Instagram), "@")
	in.ImageURL = strings.TrimSpace(in.ImageURL)
}

func (in *roasterInput) validate(now time.Time) error {
	in.normalize()
	v := runtime.ValidationErrors{}
	checkLength(v, "name", in.Name, 1, maxNameLength)
	if in.Slug != "" && !slug.Valid(in.Slug) {
		v.Add("slug", "must be lowercase letters and digits separated by single hyphens")
	}
	checkText(v, "description", in.Description, false)
	checkURL(v, "website", in.Website)
	checkURL(v, "imageUrl", in.ImageURL)
	checkCoordinates(v, in.Latitude, in.Longitude)
	if in.FoundedYear != nil && (*in.FoundedYear < minFoundedYear || *in.FoundedYear > now.Year()) {
		v.Add("foundedYear", "must be between 1800 and the current year")
	}
	return v.Err()
}

func (in *roasterInput) model() *models.Roaster {
	return &models.Roaster{
		Slug:        in.Slug,
		Name:        in.Name,
		Description: in.Description,
		CountryID:   in.CountryID,
		RegionID:    in.RegionID,
		City:        in.City,
		Address:     in.Address,
		Website:     in.Website,
		Instagram:   in.Instagram,
		ImageURL:    in.ImageURL,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		FoundedYear: in.FoundedYear,
		Verified:    in.Verified,
		Featured:    in.Featured,
		Hidden:      in.Hidden,
		OwnerID:     in.OwnerID,
	}
}

type beanInput struct {
	Name         string   `json:"name"`
	Origin       string   `json:"origin"`
	Process      string   `json:"process"`
	RoastLevel   string   `json:"roastLevel"`
	TastingNotes []string `json:"tastingNotes"`
	PriceCents   *int     `json:"priceCents"`
	Currency     string   `json:"currency"`
}

func (in *beanInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.RoastLevel = strings.ToLower(strings.TrimSpace(in.RoastLevel))
	if in.RoastLevel == "" {
		in.RoastLevel = "medium"
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "EUR"
	}
	notes := in.TastingNotes[:0]
	for _, n := range in.TastingNotes {
		if n = strings.TrimSpace(n); n != "" {
			notes = append(notes, n)
		}
	}
	in.TastingNotes = notes

	v := runtime.ValidationErrors{}
	checkLength(v, "name", in.Name, 1, maxNameLength)
	if !slices.Contains(models.RoastLevels, in.RoastLevel) {
		v.Add("roastLevel", "must be one of "+strings.Join(models.RoastLevels, ", "))
	}
	if in.PriceCents != nil && *in.PriceCents < 0 {
		v.Add("priceCents", "must not be negative")
	}
	if !currencyPattern.MatchString(in.Currency) {
		v.Add("currency", "must be an ISO 4217 code")
	}
	return v.Err()
}

func (in *beanInput) model(roasterID int) *models.Bean {
	return &models.Bean{
		RoasterID:    roasterID,
		Name:         in.Name,
		Origin:       strings.TrimSpace(in.Origin),
		Process:      strings.TrimSpace(in.Process),
		RoastLevel:   in.RoastLevel,
		TastingNotes: in.TastingNotes,
		PriceCents:   in.PriceCents,
		Currency:     in.Currency,
	}
}

type cafeInput struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (in *cafeInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	v := runtime.ValidationErrors{}
	checkLength(v, "name", in.Name, 1, maxNameLength)
	checkCoordinates(v, in.Latitude, in.Longitude)
	return v.Err()
}

func (in *cafeInput) model(roasterID int) *models.Cafe {
	return &models.Cafe{
		RoasterID: roasterID,
		Name:      in.Name,
		Address:   strings.TrimSpace(in.Address),
		City:      strings.TrimSpace(in.City),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
	}
}

type specialtyInput struct {
	Key  string    `json:"key"`
	Name i18n.Text `json:"name"`
}

func (in *specialtyInput) validate() error {
	in.Key = strings.TrimSpace(in.Key)
	v := runtime.ValidationErrors{}
	if !specialtyKeyPattern.MatchString(in.Key) || len(in.Key) > 64 {
		v.Add("key", "must be lowercase letters and digits separated by single hyphens")
	}
	checkText(v, "name", in.Name, true)
	return v.Err()
}

type countryInput struct {
	Code string    `json:"code"`
	Name i18n.Text `json:"name"`
}

func (in *countryInput) validate() error {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	v := runtime.ValidationErrors{}
	if !countryCodePattern.MatchString(in.Code) {
		v.Add("code", "must be an ISO 3166-1 alpha-2 code")
	}
	checkText(v, "name", in.Name, true)
	return v.Err()
}

type regionInput struct {
	Slug string    `json:"slug"`
	Name i18n.Text `json:"name"`
}

// validate derives a missing slug from the name in defaultLang.
func (in *regionInput) validate(defaultLang string) error {
	in.Slug = strings.TrimSpace(in.Slug)
	v := runtime.ValidationErrors{}
	checkText(v, "name", in.Name, true)
	if in.Slug == "" {
		in.Slug = slug.Make(i18n.GetTranslation(in.Name, defaultLang, defaultLang))
	}
	if !slug.Valid(in.Slug) {
		v.Add("slug", "must be lowercase letters and digits separated by single hyphens")
	}
	return v.Err()
}

type reviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (in *reviewInput) validate() error {
	in.Comment = strings.TrimSpace(in.Comment)
	v := runtime.ValidationErrors{}
	if in.Rating < 1 || in.Rating > 5 {
		v.Add("rating", "must be between 1 and 5")
	}
	checkLength(v, "comment", in.Comment, 0, maxCommentLength)
	return v.Err()
}

type contactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (in *contactInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)

	v := runtime.ValidationErrors{}
	checkLength(v, "name", in.Name, 1, maxPersonNameLength)
	if !validEmail(in.Email) {
		v.Add("email", "must be a valid email address")
	}
	checkLength(v, "subject", in.Subject, 0, maxSubjectLength)
	checkLength(v, "message", in.Message, minContactMessage, maxContactMessage)
	return v.Err()
}

type eventInput struct {
	Type      string          `json:"type"`
	RoasterID *int            `json:"roasterId"`
	Path      string          `json:"path"`
	Referrer  string          `json:"referrer"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (in *eventInput) validate() error {
	v := runtime.ValidationErrors{}
	if !slices.Contains(models.EventTypes, in.Type) {
		v.Add("type", "must be one of "+strings.Join(models.EventTypes, ", "))
	}
	if len(in.Path) > 2048 {
		v.Add("path", "is too long")
	}
	if len(in.Referrer) > 2048 {
		v.Add("referrer", "is too long")
	}
	if len(in.Metadata) > 0 && string(in.Metadata) != "null" {
		var obj map[string]json.RawMessage
		if json.Unmarshal(in.Metadata, &obj) != nil {
			v.Add("metadata", "must be a JSON object")
		}
	}
	return v.Err()
}

type registerInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (in *registerInput) validate() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	v := runtime.ValidationErrors{}
	if !validEmail(in.Email) {
		v.Add("email", "must be a valid email address")
	}
	switch {
	case length(in.Password) < auth.MinPasswordLength:
		v.Add("password", "is too short")
	case len(in.Password) > maxBcryptPasswordBytes:
		v.Add("password", "is too long")
	}
	checkLength(v, "name", in.Name, 1, maxPersonNameLength)
	return v.Err()
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type roleInput struct {
	Role string `json:"role"`
}

type specialtiesInput struct {
	Keys []string `json:"keys"`
}

type redditInput struct {
	Title     string `json:"title"`
	Subreddit string `json:"subreddit"`
}
