package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/marshallshelly/roastery/internal/auth"
	"github.com/marshallshelly/roastery/internal/config"
	"github.com/marshallshelly/roastery/internal/i18n"
	"github.com/marshallshelly/roastery/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testEnv struct {
	srv     *Server
	store   *fakeStore
	mailer  *recordingMailer
	handler http.Handler
}

func newTestEnv(t *testing.T, deps Deps, extraEnv map[string]string) *testEnv {
	t.Helper()
	env := map[string]string{
		"JWT_SECRET":        testSecret,
		"ADMIN_EMAILS":      "boss@example.com",
		"SUPPORTED_LOCALES": "en,fr",
		"PUBLIC_URL":        "https://roastery.test/",
		"REDDIT_SUBREDDIT":  "coffee",
	}
	for k, v := range extraEnv {
		env[k] = v
	}
	cfg, err := config.LoadWith(env)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	st := newFakeStore()
	mailer := &recordingMailer{}
	deps.Store = st
	if deps.Mailer == nil {
		deps.Mailer = mailer
	}
	srv := New(cfg, deps)
	srv.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return &testEnv{srv: srv, store: st, mailer: mailer, handler: srv.Handler()}
}

func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	token, _, err := e.srv.tokens.Issue(auth.Principal{UserID: u.ID, Role: u.Role})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)

	rec := env.do(t, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	env.store.pingErr = errors.New("connection refused")
	rec = env.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListRoasters(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	env.store.addRoaster(models.Roaster{Slug: "april", Name: "April", Description: i18n.Text{"en": "Light roasts", "fr": "Torréfaction claire"}})
	env.store.addRoaster(models.Roaster{Slug: "bonanza", Name: "Bonanza", Featured: true})
	env.store.addRoaster(models.Roaster{Slug: "secret", Name: "Secret", Hidden: true})
	admin := env.store.addUser(models.User{Email: "boss@example.com", Name: "Boss", Role: models.RoleAdmin})

	t.Run("paginates and localizes", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/roasters?limit=1&lang=fr", nil, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "fr", rec.Header().Get("Content-Language"))

		got := decode[ListResponse[RoasterSummary]](t, rec)
		require.Len(t, got.Data, 1)
		assert.Equal(t, "April", got.Data[0].Name)
		assert.Equal(t, "Torréfaction claire", got.Data[0].Description)
		assert.Equal(t, PageMeta{Page: 1, Limit: 1, Total: 2, TotalPages: 2}, got.Meta)
	})

	t.Run("falls back to default locale", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/roasters", nil)
		req.Header.Set("Accept-Language", "ja")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		got := decode[ListResponse[RoasterSummary]](t, rec)
		assert.Equal(t, "Light roasts", got.Data[0].Description)
	})

	t.Run("hidden only for admins who ask", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/roasters?includeHidden=true", nil, "")
		assert.EqualValues(t, 2, decode[ListResponse[RoasterSummary]](t, rec).Meta.Total)

		rec = env.do(t, http.MethodGet, "/api/roasters?includeHidden=true", nil, env.token(t, admin))
		assert.EqualValues(t, 3, decode[ListResponse[RoasterSummary]](t, rec).Meta.Total)
	})

	t.Run("featured filter", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/roasters?featured=true", nil, "")
		got := decode[ListResponse[RoasterSummary]](t, rec)
		require.Len(t, got.Data, 1)
		assert.Equal(t, "bonanza", got.Data[0].Slug)
	})

	for _, query := range []string{"limit=0", "limit=101", "page=0", "page=x", "sort=price", "featured=maybe"} {
		t.Run("rejects "+query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/roasters?"+query, nil, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[errorBody](t, rec).Details)
		})
	}
}

func TestGetRoaster(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	visible := env.store.addRoaster(models.Roaster{Slug: "april", Name: "April"})
	hidden := env.store.addRoaster(models.Roaster{Slug: "secret", Name: "Secret", Hidden: true})
	member := env.store.addUser(models.User{Email: "ana@example.com", Name: "Ana"})
	admin := env.store.addUser(models.User{Email: "boss@example.com", Name: "Boss", Role: models.RoleAdmin})

	rec := env.do(t, http.MethodGet, "/api/roasters/april", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "April", got["name"])
	assert.NotContains(t, got, "isFavourite")
	assert.Equal(t, []any{}, got["beans"])

	require.NoError(t, env.store.AddFavourite(t.Context(), member.ID, visible.ID))
	rec = env.do(t, http.MethodGet, "/api/roasters/april", nil, env.token(t, member))
	assert.Equal(t, true, decode[map[string]any](t, rec)["isFavourite"])

	rec = env.do(t, http.MethodGet, "/api/roasters/secret", nil, env.token(t, member))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/roasters/secret", nil, env.token(t, admin))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(hidden.ID), decode[map[string]any](t, rec)["id"])

	rec = env.do(t, http.MethodGet, "/api/roasters/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)

	rec := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "Ana@Example.com", "password": "correct horse", "name": "Ana",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := decode[AuthResponse](t, rec)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "ana@example.com", registered.User.Email)
	assert.Equal(t, models.RoleUser, registered.User.Role)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "ana@example.com", "password": "another one", "name": "Ana 2",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "boss@example.com", "password": "bossword!", "name": "Boss",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.RoleAdmin, decode[AuthResponse](t, rec).User.Role)

	rec = env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "not-an-email", "password": "short", "name": "",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"email", "name", "password"}, keys(decode[errorBody](t, rec).Details))

	passwords := []struct {
		name     string
		password string
		status   int
	}{
		{name: "five multibyte characters", password: "珈琲焙煎所", status: http.StatusBadRequest},
		{name: "eight multibyte characters", password: "珈琲焙煎所の合言", status: http.StatusCreated},
		{name: "over the bcrypt byte limit", password: strings.Repeat("珈", 25), status: http.StatusBadRequest},
	}
	for i, tt := range passwords {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
				"email": "kenji" + strconv.Itoa(i) + "@example.com", "password": tt.password, "name": "Kenji",
			}, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusBadRequest {
				assert.Equal(t, []string{"password"}, keys(decode[errorBody](t, rec).Details))
			}
		})
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ana@example.com", "password": "wrong password"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "nobody@example.com", "password": "correct horse"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ANA@example.com", "password": "correct horse"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[AuthResponse](t, rec).Token

	rec = env.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana", decode[models.User](t, rec).Name)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/auth/me", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/auth/me", nil, "garbage").Code)
}

func keys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

func TestMalformedBody(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "", want: "request body is empty"},
		{name: "syntax", body: "{", want: "invalid JSON body"},
		{name: "unknown field", body: `{"email":"a@b.c","role":"admin"}`, want: "unknown field"},
		{name: "trailing", body: `{"email":"a@b.c"} {}`, want: "trailing data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/auth/login", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[errorBody](t, rec).Error, tt.want)
		})
	}
}

func TestReviews(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	roaster := env.store.addRoaster(models.Roaster{Slug: "april", Name: "April"})
	hidden := env.store.addRoaster(models.Roaster{Slug: "secret", Name: "Secret", Hidden: true})
	ana := env.store.addUser(models.User{Email: "ana@example.com", Name: "Ana"})
	ben := env.store.addUser(models.User{Email: "ben@example.com", Name: "Ben"})
	admin := env.store.addUser(models.User{Email: "boss@example.com", Name: "Boss", Role: models.RoleAdmin})
	path := "/api/roasters/" + strconv.Itoa(roaster.ID) + "/reviews"

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, path, map[string]any{"rating": 5}, "").Code)

	rec := env.do(t, http.MethodPost, path, map[string]any{"rating": 6, "comment": strings.Repeat("x", 2001)}, env.token(t, ana))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"comment", "rating"}, keys(decode[errorBody](t, rec).Details))

	rec = env.do(t, http.MethodPost, path, map[string]any{"rating": 4, "comment": " Great espresso "}, env.token(t, ana))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ReviewView](t, rec)
	assert.Equal(t, "Ana", created.AuthorName)
	assert.Equal(t, "Great espresso", created.Comment)

	rec = env.do(t, http.MethodPost, path, map[string]any{"rating": 1}, env.token(t, ana))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/roasters/"+strconv.Itoa(hidden.ID)+"/reviews", map[string]any{"rating": 3}, env.token(t, ana))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, path, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ReviewView](t, rec), 1)

	reviewPath := "/api/reviews/" + strconv.Itoa(created.ID)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, reviewPath, nil, env.token(t, ben)).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, reviewPath, nil, env.token(t, admin)).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, reviewPath, nil, env.token(t, ana)).Code)
}

func TestFavourites(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	roaster := env.store.addRoaster(models.Roaster{Slug: "april", Name: "April"})
	ana := env.store.addUser(models.User{Email: "ana@example.com", Name: "Ana"})
	token := env.token(t, ana)
	path := "/api/favourites/" + strconv.Itoa(roaster.ID)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPut, path, nil, token).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPut, path, nil, token).Code)

	rec := env.do(t, http.MethodGet, "/api/favourites", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]RoasterSummary](t, rec), 1)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, nil, token).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, nil, token).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/api/favourites/999", nil, token).Code)
}

func TestAdminCreateRoaster(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	env.store.addRoaster(models.Roaster{Slug: "cafe-creme", Name: "Café Crème"})
	member := env.store.addUser(models.User{Email: "ana@example.com", Name: "Ana"})
	admin := env.store.addUser(models.User{Email: "boss@example.com", Name: "Boss", Role: models.RoleAdmin})

	body := map[string]any{
		"name":        "Café Crème",
		"description": map[string]string{"en": "Paris roaster", "fr": "Torréfacteur parisien"},
		"website":     "https://cafecreme.example",
		"latitude":    48.85,
		"foundedYear": 2015,
	}
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/roasters", body, env.token(t, member)).Code)

	rec := env.do(t, http.MethodPost, "/api/roasters", body, env.token(t, admin))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[RoasterDetail](t, rec)
	assert.Equal(t, "cafe-creme-2", created.Slug)
	assert.Equal(t, "Paris roaster", created.Description)
	assert.Equal(t, "Torréfacteur parisien", created.Translations["fr"])

	rec = env.do(t, http.MethodPost, "/api/roasters", map[string]any{
		"name":        "Bad",
		"slug":        "Bad Slug",
		"website":     "ftp://example.com",
		"latitude":    91,
		"longitude":   -181,
		"foundedYear": 2027,
	}, env.token(t, admin))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"foundedYear", "latitude", "longitude", "slug", "website"}, keys(decode[errorBody](t, rec).Details))

	rec = env.do(t, http.MethodPost, "/api/roasters", map[string]any{"name": "Other", "slug": "cafe-creme"}, env.token(t, admin))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/roasters", map[string]any{"name": "☕☕"}, env.token(t, admin))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Details, "slug")
}

func TestAdminUsers(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	admin := env.store.addUser(models.User{Email: "boss@example.com", Name: "Boss", Role: models.RoleAdmin})
	ana := env.store.addUser(models.User{Email: "ana@example.com", Name: "Ana"})
	token := env.token(t, admin)

	rec := env.do(t, http.MethodDelete, "/api/admin/users/"+strconv.Itoa(admin.ID), nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/admin/users/"+strconv.Itoa(ana.ID), nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/admin/users/"+strconv.Itoa(ana.ID), nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/admin/users/"+strconv.Itoa(admin.ID)+"/role", map[string]string{"role": "superuser"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUserRoles(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	admin := env.store.addUser(models.User{Email: "boss@example.com", Name: "Boss", Role: models.RoleAdmin})
	ana := env.store.addUser(models.User{Email: "ana@example.com", Name: "Ana"})
	env.store.addUser(models.User{Email: "bo@example.com", Name: "Bo"})
	token := env.token(t, admin)

	rec := env.do(t, http.MethodGet, "/api/admin/users?limit=2&page=2", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[ListResponse[models.User]](t, rec)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "Bo", list.Data[0].Name)
	assert.Equal(t, PageMeta{Page: 2, Limit: 2, Total: 3, TotalPages: 2}, list.Meta)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/admin/users?limit=101", nil, token).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/admin/users", nil, env.token(t, ana)).Code)

	tests := []struct {
		name   string
		id     int
		role   string
		status int
		msg    string
	}{
		{name: "promote", id: ana.ID, role: models.RoleAdmin, status: http.StatusOK},
		{name: "demote another admin", id: ana.ID, role: models.RoleUser, status: http.StatusOK},
		{name: "remove own admin role", id: admin.ID, role: models.RoleUser, status: http.StatusBadRequest, msg: "you cannot remove your own admin role"},
		{name: "keep own admin role", id: admin.ID, role: models.RoleAdmin, status: http.StatusOK},
		{name: "unknown role", id: ana.ID, role: "owner", status: http.StatusBadRequest, msg: "validation failed"},
		{name: "missing user", id: 999, role: models.RoleAdmin, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, "/api/admin/users/"+strconv.Itoa(tt.id)+"/role", map[string]string{"role": tt.role}, token)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.msg != "" {
				assert.Equal(t, tt.msg, decode[errorBody](t, rec).Error)
				return
			}
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.role, decode[models.User](t, rec).Role)
			}
		})
	}
	assert.Equal(t, models.RoleAdmin, env.store.users[admin.ID].Role)
}

func TestAdminAccessFollowsStoredRole(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	boss := env.store.addUser(models.User{Email: "boss@example.com", Name: "Boss", Role: models.RoleAdmin})
	ana := env.store.addUser(models.User{Email: "ana@example.com", Name: "Ana"})
	secret := env.store.addRoaster(models.Roaster{Slug: "secret", Name: "Secret", Hidden: true})
	token := env.token(t, boss)
	usersPath := "/api/admin/users/" + strconv.Itoa(ana.ID)

	rec := env.do(t, http.MethodGet, "/api/roasters/secret", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	env.store.users[boss.ID].Role = models.RoleUser

	rec = env.do(t, http.MethodDelete, usersPath, nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, env.store.users, ana.ID)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/roasters/secret", nil, token).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/roasters/"+strconv.Itoa(secret.ID)+"/beans", nil, token).Code)

	rec = env.do(t, http.MethodGet, "/api/roasters?includeHidden=true", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[ListResponse[RoasterSummary]](t, rec).Data)

	delete(env.store.users, boss.ID)
	rec = env.do(t, http.MethodDelete, usersPath, nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, env.store.users, ana.ID)
}

func TestContact(t *testing.T) {
	valid := map[string]string{
		"name":    "Ana",
		"email":   "ana@example.com",
		"subject": "Wholesale",
		"message": "Do you supply cafés in Lyon?",
	}

	t.Run("delivers over smtp", func(t *testing.T) {
		env := newTestEnv(t, Deps{}, map[string]string{
			"SMTP_HOST":         "smtp.example.com",
			"SMTP_FROM":         "site@roastery.test",
			"CONTACT_RECIPIENT": "owner@roastery.test",
		})
		rec := env.do(t, http.MethodPost, "/api/contact", valid, "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		got := decode[contactResult](t, rec)
		assert.True(t, got.Delivered)
		assert.True(t, env.store.delivered[got.ID])

		require.Len(t, env.mailer.sent, 1)
		assert.Equal(t, []string{"owner@roastery.test"}, env.mailer.sent[0].To)
		assert.Equal(t, "[Roastery contact] Wholesale", env.mailer.sent[0].Subject)
	})

	t.Run("delivery failure keeps the message", func(t *testing.T) {
		env := newTestEnv(t, Deps{Mailer: &recordingMailer{err: errors.New("421 try later")}}, nil)
		rec := env.do(t, http.MethodPost, "/api/contact", valid, "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Len(t, env.store.contacts, 1)
		assert.Empty(t, env.store.delivered)
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t, Deps{}, nil)
		rec := env.do(t, http.MethodPost, "/api/contact", map[string]string{
			"name":    strings.Repeat("n", 121),
			"email":   "ana@",
			"subject": strings.Repeat("s", 201),
			"message": "too short",
		}, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"email", "message", "name", "subject"}, keys(decode[errorBody](t, rec).Details))
		assert.Empty(t, env.store.contacts)
	})
}

func TestRecordEvent(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	roaster := env.store.addRoaster(models.Roaster{Slug: "april", Name: "April"})
	ana := env.store.addUser(models.User{Email: "ana@example.com", Name: "Ana"})

	rec := env.do(t, http.MethodPost, "/api/analytics/events", map[string]any{
		"type": models.EventRoasterView, "roasterId": roaster.ID, "metadata": map[string]string{"source": "map"},
	}, env.token(t, ana))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, env.store.events, 1)
	require.NotNil(t, env.store.events[0].UserID)
	assert.Equal(t, ana.ID, *env.store.events[0].UserID)
	assert.JSONEq(t, `{"source":"map"}`, string(env.store.events[0].Metadata))

	rec = env.do(t, http.MethodPost, "/api/analytics/events", map[string]any{"type": "scroll"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/analytics/events", map[string]any{"type": "search", "metadata": []int{1}}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/analytics/events", map[string]any{"type": "roaster_view", "roasterId": 999}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "referenced record does not exist", decode[errorBody](t, rec).Error)

	admin := env.store.addUser(models.User{Email: "boss@example.com", Name: "Boss", Role: models.RoleAdmin})
	rec = env.do(t, http.MethodGet, "/api/admin/analytics?days=7", nil, env.token(t, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[AnalyticsView](t, rec)
	assert.Equal(t, 7, summary.Days)
	assert.EqualValues(t, 1, summary.Total)
	assert.Equal(t, map[string]int64{models.EventRoasterView: 1}, summary.ByType)
	assert.Equal(t, time.Date(2026, 2, 22, 12, 0, 0, 0, time.UTC), summary.Since)

	rec = env.do(t, http.MethodGet, "/api/admin/analytics", nil, env.token(t, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, decode[AnalyticsView](t, rec).Days)

	for _, days := range []string{"0", "366", "-1", "week"} {
		t.Run("rejects days="+days, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/admin/analytics?days="+days, nil, env.token(t, admin))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[errorBody](t, rec).Details, "days")
		})
	}
	rec = env.do(t, http.MethodGet, "/api/admin/analytics?days=365", nil, env.token(t, admin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShareToReddit(t *testing.T) {
	addAdmin := func(env *testEnv) *models.User {
		return env.store.addUser(models.User{Email: "boss@example.com", Name: "Boss", Role: models.RoleAdmin})
	}

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, Deps{}, nil)
		admin := addAdmin(env)
		roaster := env.store.addRoaster(models.Roaster{Slug: "april", Name: "April"})
		rec := env.do(t, http.MethodPost, "/api/admin/roasters/"+strconv.Itoa(roaster.ID)+"/reddit", nil, env.token(t, admin))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("posts the public link", func(t *testing.T) {
		poster := &fakeReddit{}
		env := newTestEnv(t, Deps{Reddit: poster}, nil)
		admin := addAdmin(env)
		roaster := env.store.addRoaster(models.Roaster{Slug: "april", Name: "April", City: "Copenhagen"})

		rec := env.do(t, http.MethodPost, "/api/admin/roasters/"+strconv.Itoa(roaster.ID)+"/reddit", nil, env.token(t, admin))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.Len(t, poster.submissions, 1)
		assert.Equal(t, "https://roastery.test/roasters/april", poster.submissions[0].URL)
		assert.Equal(t, "April (Copenhagen)", poster.submissions[0].Title)
		assert.Equal(t, "coffee", poster.submissions[0].Subreddit)

		rec = env.do(t, http.MethodPost, "/api/admin/roasters/"+strconv.Itoa(roaster.ID)+"/reddit",
			map[string]string{"title": "Best in town", "subreddit": "r/espresso"}, env.token(t, admin))
		require.Equal(t, http.StatusCreated, rec.Code)
		post := decode[models.RedditPost](t, rec)
		assert.Equal(t, "espresso", post.Subreddit)
		assert.Equal(t, "abc123", post.RedditID)
		assert.Len(t, env.store.redditPosts, 2)

		rec = env.do(t, http.MethodGet, "/api/admin/roasters/"+strconv.Itoa(roaster.ID)+"/reddit", nil, env.token(t, admin))
		require.Equal(t, http.StatusOK, rec.Code)
		posts := decode[[]models.RedditPost](t, rec)
		require.Len(t, posts, 2)
		assert.Equal(t, "coffee", posts[0].Subreddit)
		assert.Equal(t, "espresso", posts[1].Subreddit)
	})

	t.Run("list is per roaster", func(t *testing.T) {
		env := newTestEnv(t, Deps{}, nil)
		admin := addAdmin(env)
		april := env.store.addRoaster(models.Roaster{Slug: "april", Name: "April"})
		other := env.store.addRoaster(models.Roaster{Slug: "other", Name: "Other"})
		env.store.addRedditPost(models.RedditPost{RoasterID: april.ID, Subreddit: "coffee", RedditID: "a1", Title: "April"})

		rec := env.do(t, http.MethodGet, "/api/admin/roasters/"+strconv.Itoa(other.ID)+"/reddit", nil, env.token(t, admin))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())

		rec = env.do(t, http.MethodGet, "/api/admin/roasters/"+strconv.Itoa(april.ID)+"/reddit", nil, env.token(t, admin))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]models.RedditPost](t, rec), 1)
	})

	t.Run("upstream failure", func(t *testing.T) {
		env := newTestEnv(t, Deps{Reddit: &fakeReddit{err: errors.New("SUBREDDIT_NOEXIST")}}, nil)
		admin := addAdmin(env)
		roaster := env.store.addRoaster(models.Roaster{Slug: "april", Name: "April"})
		rec := env.do(t, http.MethodPost, "/api/admin/roasters/"+strconv.Itoa(roaster.ID)+"/reddit", nil, env.token(t, admin))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Empty(t, env.store.redditPosts)
	})
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	rec := env.do(t, http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	for _, tt := range []struct{ method, path string }{
		{http.MethodPatch, "/api/roasters"},
		{http.MethodDelete, "/api/countries"},
		{http.MethodPatch, "/api/roasters/5"},
		{http.MethodPost, "/api/health"},
		{http.MethodGet, "/api/beans/3"},
	} {
		rec := env.do(t, tt.method, tt.path, nil, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tt.method, tt.path)
		assert.Equal(t, "method not allowed", decode[errorBody](t, rec).Error)
	}
}
