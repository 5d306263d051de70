// Package models declares the roastery tables as tagged Go structs.
package models

import (
	"encoding/json"
	"time"

	"github.com/marshallshelly/roastery/internal/i18n"
	"github.com/marshallshelly/roastery/pkg/registry"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Roast levels accepted for beans.
var RoastLevels = []string{"light", "medium", "medium-dark", "dark", "omni"}

// Analytics event types accepted from clients.
const (
	EventPageView       = "page_view"
	EventRoasterView    = "roaster_view"
	EventWebsiteClick   = "website_click"
	EventInstagramClick = "instagram_click"
	EventSearch         = "search"
	EventFavouriteAdd   = "favourite_add"
)

// EventTypes lists every accepted analytics event type.
var EventTypes = []string{
	EventPageView, EventRoasterView, EventWebsiteClick,
	EventInstagramClick, EventSearch, EventFavouriteAdd,
}

type User struct {
	ID           int       `po:"id,serial,primaryKey" json:"id"`
	Email        string    `po:"email,varchar(320),unique,notNull" json:"email"`
	PasswordHash string    `po:"password_hash,text,notNull" json:"-"`
	Name         string    `po:"name,varchar(120),notNull" json:"name"`
	Role         string    `po:"role,varchar(16),notNull,default('user')" json:"role"`
	CreatedAt    time.Time `po:"created_at,timestamptz,notNull,default(NOW())" json:"createdAt"`
	UpdatedAt    time.Time `po:"updated_at,timestamptz,notNull,default(NOW())" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type Country struct {
	ID        int       `po:"id,serial,primaryKey"`
	Code      string    `po:"code,char(2),unique,notNull"`
	Name      i18n.Text `po:"name,jsonb,notNull"`
	CreatedAt time.Time `po:"created_at,timestamptz,notNull,default(NOW())"`
}

func (Country) TableName() string { return "countries" }

type Region struct {
	ID        int       `po:"id,serial,primaryKey"`
	CountryID int       `po:"country_id,integer,notNull,fk:countries.id,onDelete:cascade"`
	Slug      string    `po:"slug,varchar(120),unique,notNull"`
	Name      i18n.Text `po:"name,jsonb,notNull"`
	CreatedAt time.Time `po:"created_at,timestamptz,notNull,default(NOW())"`
}

func (Region) TableName() string { return "regions" }

type Specialty struct {
	ID        int       `po:"id,serial,primaryKey"`
	Key       string    `po:"key,varchar(64),unique,notNull"`
	Name      i18n.Text `po:"name,jsonb,notNull"`
	CreatedAt time.Time `po:"created_at,timestamptz,notNull,default(NOW())"`
}

func (Specialty) TableName() string { return "specialties" }

// Roaster is a coffee roastery listed in the directory.
type Roaster struct {
	ID          int       `po:"id,serial,primaryKey"`
	Slug        string    `po:"slug,varchar(160),unique,notNull"`
	Name        string    `po:"name,varchar(200),notNull"`
	Description i18n.Text `po:"description,jsonb"`
	CountryID   *int      `po:"country_id,integer,fk:countries.id,onDelete:setnull"`
	RegionID    *int      `po:"region_id,integer,fk:regions.id,onDelete:setnull"`
	City        string    `po:"city,text,notNull,default('')"`
	Address     string    `po:"address,text,notNull,default('')"`
	Website     string    `po:"website,text,notNull,default('')"`
	Instagram   string    `po:"instagram,text,notNull,default('')"`
	ImageURL    string    `po:"image_url,text,notNull,default('')"`
	Latitude    *float64  `po:"latitude,double precision"`
	Longitude   *float64  `po:"longitude,double precision"`
	FoundedYear *int      `po:"founded_year,integer"`
	Verified    bool      `po:"verified,boolean,notNull,default(false)"`
	Featured    bool      `po:"featured,boolean,notNull,default(false)"`
	Hidden      bool      `po:"hidden,boolean,notNull,default(false)"`
	Rating      float64   `po:"rating,double precision,notNull,default(0)"`
	ReviewCount int       `po:"review_count,integer,notNull,default(0)"`
	OwnerID     *int      `po:"owner_id,integer,fk:users.id,onDelete:setnull"`
	CreatedAt   time.Time `po:"created_at,timestamptz,notNull,default(NOW())"`
	UpdatedAt   time.Time `po:"updated_at,timestamptz,notNull,default(NOW())"`
}

func (Roaster) TableName() string { return "roasters" }

// RoasterSpecialty links a roaster to a specialty.
type RoasterSpecialty struct {
	RoasterID   int `po:"roaster_id,integer,primaryKey,fk:roasters.id,onDelete:cascade"`
	SpecialtyID int `po:"specialty_id,integer,primaryKey,fk:specialties.id,onDelete:cascade"`
}

func (RoasterSpecialty) TableName() string { return "roaster_specialties" }

type Cafe struct {
	ID        int       `po:"id,serial,primaryKey" json:"id"`
	RoasterID int       `po:"roaster_id,integer,notNull,fk:roasters.id,onDelete:cascade" json:"roasterId"`
	Name      string    `po:"name,varchar(200),notNull" json:"name"`
	Address   string    `po:"address,text,notNull,default('')" json:"address"`
	City      string    `po:"city,text,notNull,default('')" json:"city"`
	Latitude  *float64  `po:"latitude,double precision" json:"latitude"`
	Longitude *float64  `po:"longitude,double precision" json:"longitude"`
	CreatedAt time.Time `po:"created_at,timestamptz,notNull,default(NOW())" json:"createdAt"`
}

func (Cafe) TableName() string { return "cafes" }

type Bean struct {
	ID           int       `po:"id,serial,primaryKey" json:"id"`
	RoasterID    int       `po:"roaster_id,integer,notNull,fk:roasters.id,onDelete:cascade" json:"roasterId"`
	Name         string    `po:"name,varchar(200),notNull" json:"name"`
	Origin       string    `po:"origin,text,notNull,default('')" json:"origin"`
	Process      string    `po:"process,text,notNull,default('')" json:"process"`
	RoastLevel   string    `po:"roast_level,varchar(16),notNull,default('medium')" json:"roastLevel"`
	TastingNotes []string  `po:"tasting_notes,text[]" json:"tastingNotes"`
	PriceCents   *int      `po:"price_cents,integer" json:"priceCents"`
	Currency     string    `po:"currency,char(3),notNull,default('EUR')" json:"currency"`
	CreatedAt    time.Time `po:"created_at,timestamptz,notNull,default(NOW())" json:"createdAt"`
}

func (Bean) TableName() string { return "beans" }

type Review struct {
	ID        int       `po:"id,serial,primaryKey"`
	RoasterID int       `po:"roaster_id,integer,notNull,fk:roasters.id,onDelete:cascade"`
	UserID    int       `po:"user_id,integer,notNull,fk:users.id,onDelete:cascade"`
	Rating    int       `po:"rating,smallint,notNull"`
	Comment   string    `po:"comment,text,notNull,default('')"`
	CreatedAt time.Time `po:"created_at,timestamptz,notNull,default(NOW())"`
}

func (Review) TableName() string { return "reviews" }

type Favourite struct {
	UserID    int       `po:"user_id,integer,primaryKey,fk:users.id,onDelete:cascade"`
	RoasterID int       `po:"roaster_id,integer,primaryKey,fk:roasters.id,onDelete:cascade"`
	CreatedAt time.Time `po:"created_at,timestamptz,notNull,default(NOW())"`
}

func (Favourite) TableName() string { return "favourites" }

// AnalyticsEvent is one client-reported interaction.
type AnalyticsEvent struct {
	ID        int64           `po:"id,bigserial,primaryKey"`
	EventType string          `po:"event_type,varchar(64),notNull"`
	RoasterID *int            `po:"roaster_id,integer,fk:roasters.id,onDelete:setnull"`
	UserID    *int            `po:"user_id,integer,fk:users.id,onDelete:setnull"`
	Path      string          `po:"path,text,notNull,default('')"`
	Referrer  string          `po:"referrer,text,notNull,default('')"`
	UserAgent string          `po:"user_agent,text,notNull,default('')"`
	Metadata  json.RawMessage `po:"metadata,jsonb"`
	CreatedAt time.Time       `po:"created_at,timestamptz,notNull,default(NOW())"`
}

func (AnalyticsEvent) TableName() string { return "analytics_events" }

// ContactMessage is a persisted contact form submission.
type ContactMessage struct {
	ID        int       `po:"id,serial,primaryKey"`
	Name      string    `po:"name,varchar(120),notNull"`
	Email     string    `po:"email,varchar(320),notNull"`
	Subject   string    `po:"subject,varchar(200),notNull,default('')"`
	Message   string    `po:"message,text,notNull"`
	Delivered bool      `po:"delivered,boolean,notNull,default(false)"`
	CreatedAt time.Time `po:"created_at,timestamptz,notNull,default(NOW())"`
}

func (ContactMessage) TableName() string { return "contact_messages" }

// RedditPost records a roaster shared to a subreddit.
type RedditPost struct {
	ID        int       `po:"id,serial,primaryKey" json:"id"`
	RoasterID int       `po:"roaster_id,integer,notNull,fk:roasters.id,onDelete:cascade" json:"roasterId"`
	Subreddit string    `po:"subreddit,varchar(64),notNull" json:"subreddit"`
	RedditID  string    `po:"reddit_id,varchar(32),notNull" json:"redditId"`
	URL       string    `po:"url,text,notNull" json:"url"`
	Title     string    `po:"title,varchar(300),notNull" json:"title"`
	CreatedAt time.Time `po:"created_at,timestamptz,notNull,default(NOW())" json:"createdAt"`
}

func (RedditPost) TableName() string { return "reddit_posts" }

// All returns one zero value per model, parents before children.
func All() []any {
	return []any{
		User{}, Country{}, Region{}, Specialty{}, Roaster{}, RoasterSpecialty{},
		Cafe{}, Bean{}, Review{}, Favourite{}, AnalyticsEvent{},
		ContactMessage{}, RedditPost{},
	}
}

// RegisterAll registers every model in the global schema registry.
func RegisterAll() error {
	for _, m := range All() {
		if err := registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}
