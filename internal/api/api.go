// Package api serves the roastery JSON API over gorilla/mux.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/marshallshelly/roastery/internal/auth"
	"github.com/marshallshelly/roastery/internal/config"
	"github.com/marshallshelly/roastery/internal/i18n"
	"github.com/marshallshelly/roastery/internal/mail"
	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/internal/reddit"
	"github.com/marshallshelly/roastery/internal/store"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

// Store is the persistence the handlers need. *store.Store implements it.
type Store interface {
	Ping(ctx context.Context) error

	ListRoasters(ctx context.Context, f store.RoasterFilter) ([]models.Roaster, int64, error)
	GetRoaster(ctx context.Context, idOrSlug string) (*models.Roaster, error)
	GetRoasterByID(ctx context.Context, id int) (*models.Roaster, error)
	GetRoasterDetail(ctx context.Context, idOrSlug string) (*store.RoasterDetail, error)
	CreateRoaster(ctx context.Context, r *models.Roaster) (*models.Roaster, error)
	UpdateRoaster(ctx context.Context, id int, r *models.Roaster) (*models.Roaster, error)
	DeleteRoaster(ctx context.Context, id int) error
	SetRoasterSpecialties(ctx context.Context, roasterID int, keys []string) ([]models.Specialty, error)
	SlugTaken(ctx context.Context, slug string, exceptID int) (bool, error)

	ListCountries(ctx context.Context) ([]store.CountryWithCount, error)
	GetCountryByCode(ctx context.Context, code string) (*models.Country, error)
	ListRegions(ctx context.Context, countryCode string) ([]models.Region, error)
	CreateCountry(ctx context.Context, c *models.Country) (*models.Country, error)
	CreateRegion(ctx context.Context, r *models.Region) (*models.Region, error)

	ListSpecialties(ctx context.Context) ([]models.Specialty, error)
	CreateSpecialty(ctx context.Context, sp *models.Specialty) (*models.Specialty, error)
	UpdateSpecialty(ctx context.Context, id int, sp *models.Specialty) (*models.Specialty, error)
	DeleteSpecialty(ctx context.Context, id int) error

	ListCafes(ctx context.Context, roasterID int) ([]models.Cafe, error)
	CreateCafe(ctx context.Context, c *models.Cafe) (*models.Cafe, error)
	UpdateCafe(ctx context.Context, id int, c *models.Cafe) (*models.Cafe, error)
	DeleteCafe(ctx context.Context, id int) error
	ListBeans(ctx context.Context, roasterID int) ([]models.Bean, error)
	CreateBean(ctx context.Context, b *models.Bean) (*models.Bean, error)
	UpdateBean(ctx context.Context, id int, b *models.Bean) (*models.Bean, error)
	DeleteBean(ctx context.Context, id int) error

	ListReviews(ctx context.Context, roasterID int) ([]store.ReviewWithAuthor, error)
	GetReview(ctx context.Context, id int) (*models.Review, error)
	CreateReview(ctx context.Context, rv *models.Review) (*models.Review, error)
	DeleteReview(ctx context.Context, id int) error

	ListFavourites(ctx context.Context, userID int) ([]models.Roaster, error)
	AddFavourite(ctx context.Context, userID, roasterID int) error
	RemoveFavourite(ctx context.Context, userID, roasterID int) error
	IsFavourite(ctx context.Context, userID, roasterID int) (bool, error)

	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUser(ctx context.Context, id int) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, p store.Page) ([]models.User, int64, error)
	UpdateUserRole(ctx context.Context, id int, role string) (*models.User, error)
	DeleteUser(ctx context.Context, id int) error

	RecordEvent(ctx context.Context, e *models.AnalyticsEvent) error
	AnalyticsSummary(ctx context.Context, since time.Time) (*store.AnalyticsSummary, error)

	CreateContactMessage(ctx context.Context, m *models.ContactMessage) (*models.ContactMessage, error)
	MarkContactDelivered(ctx context.Context, id int) error
	RecordRedditPost(ctx context.Context, p *models.RedditPost) (*models.RedditPost, error)
	ListRedditPosts(ctx context.Context, roasterID int) ([]models.RedditPost, error)
}

// RedditPoster submits link posts. *reddit.Client implements it.
type RedditPoster interface {
	SubmitLink(ctx context.Context, s reddit.Submission) (*reddit.Post, error)
}

// Deps are the collaborators of a Server. Mailer defaults to a NoopMailer
// and a nil Reddit disables sharing.
type Deps struct {
	Store  Store
	Mailer mail.Mailer
	Reddit RedditPoster
	Logger *zap.Logger
}

// Server holds the handlers and their dependencies.
type Server struct {
	cfg       *config.Config
	store     Store
	tokens    *auth.TokenIssuer
	localizer *i18n.Localizer
	mailer    mail.Mailer
	reddit    RedditPoster
	logger    *zap.Logger
	now       func() time.Time
}

// New builds a Server from validated configuration.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mailer := deps.Mailer
	if mailer == nil {
		mailer = mail.NoopMailer{Logger: logger}
	}
	return &Server{
		cfg:       cfg,
		store:     deps.Store,
		tokens:    auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		localizer: i18n.NewLocalizer(cfg.Locale.Default, cfg.Locale.Supported),
		mailer:    mailer,
		reddit:    deps.Reddit,
		logger:    logger,
		now:       time.Now,
	}
}

// Handler returns the root handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "route not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	// Routes live on the root router: a subrouter's method mismatch falls
	// through to NotFoundHandler instead of MethodNotAllowedHandler.
	router.Use(auth.Authenticate(s.tokens))
	s.routes(router)

	var h http.Handler = router
	h = s.cors(h)
	h = s.recoverer(h)
	h = s.accessLog(h)
	h = requestID(h)
	return h
}

func user(h http.HandlerFunc) http.Handler { return auth.RequireUser(h) }

func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return auth.RequireAdmin(s.currentRole)(h)
}

// currentRole is the stored role of a user, for admin checks.
func (s *Server) currentRole(ctx context.Context, userID int) (string, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, runtime.ErrNotFound) {
		return "", auth.ErrUnknownUser
	}
	if err != nil {
		s.logger.Error("failed to load user role", zap.Int("user_id", userID), zap.Error(err))
		return "", err
	}
	return u.Role, nil
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	// Public
	r.HandleFunc("/api/roasters", s.handleListRoasters).Methods(http.MethodGet)
	r.HandleFunc("/api/roasters/{idOrSlug}", s.handleGetRoaster).Methods(http.MethodGet)
	r.HandleFunc("/api/roasters/{id:[0-9]+}/reviews", s.handleListReviews).Methods(http.MethodGet)
	r.HandleFunc("/api/roasters/{id:[0-9]+}/beans", s.handleListBeans).Methods(http.MethodGet)
	r.HandleFunc("/api/roasters/{id:[0-9]+}/cafes", s.handleListCafes).Methods(http.MethodGet)
	r.HandleFunc("/api/countries", s.handleListCountries).Methods(http.MethodGet)
	r.HandleFunc("/api/countries/{code}", s.handleGetCountry).Methods(http.MethodGet)
	r.HandleFunc("/api/countries/{code}/regions", s.handleListCountryRegions).Methods(http.MethodGet)
	r.HandleFunc("/api/regions", s.handleListRegions).Methods(http.MethodGet)
	r.HandleFunc("/api/specialties", s.handleListSpecialties).Methods(http.MethodGet)
	r.HandleFunc("/api/contact", s.handleContact).Methods(http.MethodPost)
	r.HandleFunc("/api/analytics/events", s.handleRecordEvent).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)

	// Authenticated
	r.Handle("/api/auth/me", user(s.handleMe)).Methods(http.MethodGet)
	r.Handle("/api/favourites", user(s.handleListFavourites)).Methods(http.MethodGet)
	r.Handle("/api/favourites/{roasterId:[0-9]+}", user(s.handleAddFavourite)).Methods(http.MethodPut)
	r.Handle("/api/favourites/{roasterId:[0-9]+}", user(s.handleRemoveFavourite)).Methods(http.MethodDelete)
	r.Handle("/api/roasters/{id:[0-9]+}/reviews", user(s.handleCreateReview)).Methods(http.MethodPost)
	r.Handle("/api/reviews/{id:[0-9]+}", user(s.handleDeleteReview)).Methods(http.MethodDelete)

	// Admin
	r.Handle("/api/roasters", s.admin(s.handleCreateRoaster)).Methods(http.MethodPost)
	r.Handle("/api/roasters/{id:[0-9]+}", s.admin(s.handleUpdateRoaster)).Methods(http.MethodPut)
	r.Handle("/api/roasters/{id:[0-9]+}", s.admin(s.handleDeleteRoaster)).Methods(http.MethodDelete)
	r.Handle("/api/roasters/{id:[0-9]+}/specialties", s.admin(s.handleSetRoasterSpecialties)).Methods(http.MethodPut)
	r.Handle("/api/roasters/{id:[0-9]+}/beans", s.admin(s.handleCreateBean)).Methods(http.MethodPost)
	r.Handle("/api/beans/{id:[0-9]+}", s.admin(s.handleUpdateBean)).Methods(http.MethodPut)
	r.Handle("/api/beans/{id:[0-9]+}", s.admin(s.handleDeleteBean)).Methods(http.MethodDelete)
	r.Handle("/api/roasters/{id:[0-9]+}/cafes", s.admin(s.handleCreateCafe)).Methods(http.MethodPost)
	r.Handle("/api/cafes/{id:[0-9]+}", s.admin(s.handleUpdateCafe)).Methods(http.MethodPut)
	r.Handle("/api/cafes/{id:[0-9]+}", s.admin(s.handleDeleteCafe)).Methods(http.MethodDelete)
	r.Handle("/api/specialties", s.admin(s.handleCreateSpecialty)).Methods(http.MethodPost)
	r.Handle("/api/specialties/{id:[0-9]+}", s.admin(s.handleUpdateSpecialty)).Methods(http.MethodPut)
	r.Handle("/api/specialties/{id:[0-9]+}", s.admin(s.handleDeleteSpecialty)).Methods(http.MethodDelete)
	r.Handle("/api/countries", s.admin(s.handleCreateCountry)).Methods(http.MethodPost)
	r.Handle("/api/countries/{code}/regions", s.admin(s.handleCreateRegion)).Methods(http.MethodPost)
	r.Handle("/api/admin/users", s.admin(s.handleListUsers)).Methods(http.MethodGet)
	r.Handle("/api/admin/users/{id:[0-9]+}/role", s.admin(s.handleUpdateUserRole)).Methods(http.MethodPut)
	r.Handle("/api/admin/users/{id:[0-9]+}", s.admin(s.handleDeleteUser)).Methods(http.MethodDelete)
	r.Handle("/api/admin/analytics", s.admin(s.handleAnalyticsSummary)).Methods(http.MethodGet)
	r.Handle("/api/admin/roasters/{id:[0-9]+}/reddit", s.admin(s.handleShareToReddit)).Methods(http.MethodPost)
	r.Handle("/api/admin/roasters/{id:[0-9]+}/reddit", s.admin(s.handleListRedditPosts)).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "database unavailable", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
