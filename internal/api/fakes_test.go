package api

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marshallshelly/roastery/internal/mail"
	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/internal/reddit"
	"github.com/marshallshelly/roastery/internal/store"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

// fakeStore keeps rows in memory.
type fakeStore struct {
	mu                 sync.Mutex
	nextID             int
	pingErr            error
	panicOnCountries   bool
	roasters           map[int]*models.Roaster
	users              map[int]*models.User
	reviews            map[int]*models.Review
	favourites         map[[2]int]bool
	countries          map[int]*models.Country
	regions            map[int]*models.Region
	specialties        map[int]*models.Specialty
	roasterSpecialties map[int][]int
	beans              map[int]*models.Bean
	cafes              map[int]*models.Cafe
	contacts           []models.ContactMessage
	delivered          map[int]bool
	events             []models.AnalyticsEvent
	redditPosts        []models.RedditPost
}

var _ Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		roasters:           map[int]*models.Roaster{},
		users:              map[int]*models.User{},
		reviews:            map[int]*models.Review{},
		favourites:         map[[2]int]bool{},
		countries:          map[int]*models.Country{},
		regions:            map[int]*models.Region{},
		specialties:        map[int]*models.Specialty{},
		roasterSpecialties: map[int][]int{},
		beans:              map[int]*models.Bean{},
		cafes:              map[int]*models.Cafe{},
		delivered:          map[int]bool{},
	}
}

func notFound(table string) error { return fmt.Errorf("%s: %w", table, runtime.ErrNotFound) }

func (f *fakeStore) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addRoaster(r models.Roaster) *models.Roaster {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.id()
	f.roasters[r.ID] = &r
	return &r
}

func (f *fakeStore) addUser(u models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = f.id()
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	f.users[u.ID] = &u
	return &u
}

func (f *fakeStore) addCountry(c models.Country) *models.Country {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id()
	f.countries[c.ID] = &c
	return &c
}

func (f *fakeStore) addRegion(r models.Region) *models.Region {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.id()
	f.regions[r.ID] = &r
	return &r
}

func (f *fakeStore) addSpecialty(sp models.Specialty) *models.Specialty {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp.ID = f.id()
	f.specialties[sp.ID] = &sp
	return &sp
}

func (f *fakeStore) addRedditPost(p models.RedditPost) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	f.redditPosts = append(f.redditPosts, p)
}

// rows copies the values of m ordered by key.
func rows[T any](m map[int]*T, keep func(*T) bool) []T {
	out := []T{}
	for _, id := range slices.Sorted(maps.Keys(m)) {
		if keep == nil || keep(m[id]) {
			out = append(out, *m[id])
		}
	}
	return out
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) ListRoasters(_ context.Context, flt store.RoasterFilter) ([]models.Roaster, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Roaster
	for _, r := range f.roasters {
		if r.Hidden && !flt.IncludeHidden {
			continue
		}
		if flt.Featured != nil && r.Featured != *flt.Featured {
			continue
		}
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	p := flt.Page.Normalize()
	start := min((p.Page-1)*p.Limit, len(all))
	end := min(start+p.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (f *fakeStore) GetRoaster(ctx context.Context, idOrSlug string) (*models.Roaster, error) {
	if id, err := strconv.Atoi(idOrSlug); err == nil {
		if r, err := f.GetRoasterByID(ctx, id); err == nil {
			return r, nil
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roasters {
		if r.Slug == idOrSlug {
			c := *r
			return &c, nil
		}
	}
	return nil, notFound("roasters")
}

func (f *fakeStore) GetRoasterByID(_ context.Context, id int) (*models.Roaster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roasters[id]
	if !ok {
		return nil, notFound("roasters")
	}
	c := *r
	return &c, nil
}

func (f *fakeStore) GetRoasterDetail(ctx context.Context, idOrSlug string) (*store.RoasterDetail, error) {
	r, err := f.GetRoaster(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	return &store.RoasterDetail{Roaster: *r}, nil
}

func (f *fakeStore) CreateRoaster(_ context.Context, r *models.Roaster) (*models.Roaster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.roasters {
		if existing.Slug == r.Slug {
			return nil, fmt.Errorf("%w: roasters_slug_key", runtime.ErrDuplicateKey)
		}
	}
	c := *r
	c.ID = f.id()
	f.roasters[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeStore) SlugTaken(_ context.Context, slug string, exceptID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roasters {
		if r.Slug == slug && r.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == store.NormalizeEmail(u.Email) {
			return nil, fmt.Errorf("failed to create user: %w", runtime.ErrDuplicateKey)
		}
	}
	c := *u
	c.ID = f.id()
	c.Email = store.NormalizeEmail(c.Email)
	f.users[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeStore) GetUser(_ context.Context, id int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, notFound("users")
	}
	c := *u
	return &c, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == store.NormalizeEmail(email) {
			c := *u
			return &c, nil
		}
	}
	return nil, notFound("users")
}

func (f *fakeStore) DeleteUser(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return notFound("users")
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) IsFavourite(_ context.Context, userID, roasterID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.favourites[[2]int{userID, roasterID}], nil
}

func (f *fakeStore) AddFavourite(_ context.Context, userID, roasterID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favourites[[2]int{userID, roasterID}] = true
	return nil
}

func (f *fakeStore) RemoveFavourite(_ context.Context, userID, roasterID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.favourites, [2]int{userID, roasterID})
	return nil
}

func (f *fakeStore) ListFavourites(_ context.Context, userID int) ([]models.Roaster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Roaster
	for key := range f.favourites {
		if key[0] == userID {
			out = append(out, *f.roasters[key[1]])
		}
	}
	return out, nil
}

func (f *fakeStore) CreateReview(_ context.Context, rv *models.Review) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.reviews {
		if existing.UserID == rv.UserID && existing.RoasterID == rv.RoasterID {
			return nil, fmt.Errorf("failed to create review: %w", runtime.ErrDuplicateKey)
		}
	}
	c := *rv
	c.ID = f.id()
	c.CreatedAt = time.Now()
	f.reviews[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeStore) GetReview(_ context.Context, id int) (*models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rv, ok := f.reviews[id]
	if !ok {
		return nil, notFound("reviews")
	}
	c := *rv
	return &c, nil
}

func (f *fakeStore) DeleteReview(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reviews[id]; !ok {
		return notFound("reviews")
	}
	delete(f.reviews, id)
	return nil
}

func (f *fakeStore) ListReviews(_ context.Context, roasterID int) ([]store.ReviewWithAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ReviewWithAuthor
	for _, rv := range f.reviews {
		if rv.RoasterID == roasterID {
			out = append(out, store.ReviewWithAuthor{Review: *rv, AuthorName: f.users[rv.UserID].Name})
		}
	}
	return out, nil
}

func (f *fakeStore) CreateContactMessage(_ context.Context, m *models.ContactMessage) (*models.ContactMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *m
	c.ID = f.id()
	f.contacts = append(f.contacts, c)
	return &c, nil
}

func (f *fakeStore) MarkContactDelivered(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered[id] = true
	return nil
}

func (f *fakeStore) RecordEvent(_ context.Context, e *models.AnalyticsEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.RoasterID != nil {
		if _, ok := f.roasters[*e.RoasterID]; !ok {
			return fmt.Errorf("%w: fk_analytics_events_roaster_id", runtime.ErrForeignKeyViolation)
		}
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeStore) RecordRedditPost(_ context.Context, p *models.RedditPost) (*models.RedditPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *p
	c.ID = f.id()
	f.redditPosts = append(f.redditPosts, c)
	return &c, nil
}

func (f *fakeStore) AnalyticsSummary(_ context.Context, since time.Time) (*store.AnalyticsSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := &store.AnalyticsSummary{Since: since, ByType: map[string]int64{}}
	for _, e := range f.events {
		sum.Total++
		sum.ByType[e.EventType]++
	}
	return sum, nil
}

func (f *fakeStore) UpdateRoaster(_ context.Context, id int, r *models.Roaster) (*models.Roaster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.roasters[id]
	if !ok {
		return nil, notFound("roasters")
	}
	for _, other := range f.roasters {
		if other.ID != id && other.Slug == r.Slug {
			return nil, fmt.Errorf("%w: roasters_slug_key", runtime.ErrDuplicateKey)
		}
	}
	c := *r
	c.ID = id
	c.Rating = existing.Rating
	c.ReviewCount = existing.ReviewCount
	c.CreatedAt = existing.CreatedAt
	f.roasters[id] = &c
	out := c
	return &out, nil
}

func (f *fakeStore) DeleteRoaster(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roasters[id]; !ok {
		return notFound("roasters")
	}
	delete(f.roasters, id)
	delete(f.roasterSpecialties, id)
	return nil
}

func (f *fakeStore) SetRoasterSpecialties(_ context.Context, roasterID int, keys []string) ([]models.Specialty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.roasters[roasterID]; !ok {
		return nil, notFound("roasters")
	}
	var ids []int
	out := []models.Specialty{}
	for _, k := range keys {
		if slices.ContainsFunc(out, func(sp models.Specialty) bool { return sp.Key == k }) {
			continue
		}
		var found *models.Specialty
		for _, sp := range f.specialties {
			if sp.Key == k {
				found = sp
			}
		}
		if found == nil {
			return nil, &runtime.ValidationError{Field: "specialties", Message: fmt.Sprintf("unknown specialty %q", k)}
		}
		ids = append(ids, found.ID)
		out = append(out, *found)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	f.roasterSpecialties[roasterID] = ids
	return out, nil
}

func (f *fakeStore) ListCountries(context.Context) ([]store.CountryWithCount, error) {
	if f.panicOnCountries {
		panic("countries table is gone")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	countries := rows(f.countries, nil)
	sort.Slice(countries, func(i, j int) bool { return countries[i].Code < countries[j].Code })
	out := make([]store.CountryWithCount, len(countries))
	for i, c := range countries {
		out[i].Country = c
		for _, r := range f.roasters {
			if r.CountryID != nil && *r.CountryID == c.ID && !r.Hidden {
				out[i].RoasterCount++
			}
		}
	}
	return out, nil
}

func (f *fakeStore) countryByCode(code string) *models.Country {
	for _, c := range f.countries {
		if c.Code == strings.ToUpper(strings.TrimSpace(code)) {
			return c
		}
	}
	return nil
}

func (f *fakeStore) GetCountryByCode(_ context.Context, code string) (*models.Country, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.countryByCode(code)
	if c == nil {
		return nil, notFound("countries")
	}
	out := *c
	return &out, nil
}

func (f *fakeStore) ListRegions(_ context.Context, countryCode string) ([]models.Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	countryID := -1
	if countryCode != "" {
		if c := f.countryByCode(countryCode); c != nil {
			countryID = c.ID
		}
	}
	out := rows(f.regions, func(r *models.Region) bool { return countryCode == "" || r.CountryID == countryID })
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (f *fakeStore) CreateCountry(_ context.Context, c *models.Country) (*models.Country, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countryByCode(c.Code) != nil {
		return nil, fmt.Errorf("%w: countries_code_key", runtime.ErrDuplicateKey)
	}
	out := *c
	out.ID = f.id()
	f.countries[out.ID] = &out
	created := out
	return &created, nil
}

func (f *fakeStore) CreateRegion(_ context.Context, r *models.Region) (*models.Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.regions {
		if existing.Slug == r.Slug {
			return nil, fmt.Errorf("%w: regions_slug_key", runtime.ErrDuplicateKey)
		}
	}
	out := *r
	out.ID = f.id()
	f.regions[out.ID] = &out
	created := out
	return &created, nil
}

func (f *fakeStore) ListSpecialties(context.Context) ([]models.Specialty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := rows(f.specialties, nil)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (f *fakeStore) specialtyKeyTaken(key string, exceptID int) bool {
	for _, sp := range f.specialties {
		if sp.Key == key && sp.ID != exceptID {
			return true
		}
	}
	return false
}

func (f *fakeStore) CreateSpecialty(_ context.Context, sp *models.Specialty) (*models.Specialty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.specialtyKeyTaken(sp.Key, 0) {
		return nil, fmt.Errorf("%w: specialties_key_key", runtime.ErrDuplicateKey)
	}
	out := *sp
	out.ID = f.id()
	f.specialties[out.ID] = &out
	created := out
	return &created, nil
}

func (f *fakeStore) UpdateSpecialty(_ context.Context, id int, sp *models.Specialty) (*models.Specialty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.specialties[id]
	if !ok {
		return nil, notFound("specialties")
	}
	if f.specialtyKeyTaken(sp.Key, id) {
		return nil, fmt.Errorf("%w: specialties_key_key", runtime.ErrDuplicateKey)
	}
	existing.Key, existing.Name = sp.Key, sp.Name
	out := *existing
	return &out, nil
}

func (f *fakeStore) DeleteSpecialty(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.specialties[id]; !ok {
		return notFound("specialties")
	}
	delete(f.specialties, id)
	return nil
}

func (f *fakeStore) ListCafes(_ context.Context, roasterID int) ([]models.Cafe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return rows(f.cafes, func(c *models.Cafe) bool { return c.RoasterID == roasterID }), nil
}

func (f *fakeStore) CreateCafe(_ context.Context, c *models.Cafe) (*models.Cafe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := *c
	out.ID = f.id()
	f.cafes[out.ID] = &out
	created := out
	return &created, nil
}

func (f *fakeStore) UpdateCafe(_ context.Context, id int, c *models.Cafe) (*models.Cafe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.cafes[id]
	if !ok {
		return nil, notFound("cafes")
	}
	updated := *c
	updated.ID, updated.RoasterID, updated.CreatedAt = id, existing.RoasterID, existing.CreatedAt
	f.cafes[id] = &updated
	out := updated
	return &out, nil
}

func (f *fakeStore) DeleteCafe(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cafes[id]; !ok {
		return notFound("cafes")
	}
	delete(f.cafes, id)
	return nil
}

func (f *fakeStore) ListBeans(_ context.Context, roasterID int) ([]models.Bean, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := rows(f.beans, func(b *models.Bean) bool { return b.RoasterID == roasterID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) CreateBean(_ context.Context, b *models.Bean) (*models.Bean, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := *b
	out.ID = f.id()
	f.beans[out.ID] = &out
	created := out
	return &created, nil
}

func (f *fakeStore) UpdateBean(_ context.Context, id int, b *models.Bean) (*models.Bean, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.beans[id]
	if !ok {
		return nil, notFound("beans")
	}
	updated := *b
	updated.ID, updated.RoasterID, updated.CreatedAt = id, existing.RoasterID, existing.CreatedAt
	f.beans[id] = &updated
	out := updated
	return &out, nil
}

func (f *fakeStore) DeleteBean(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.beans[id]; !ok {
		return notFound("beans")
	}
	delete(f.beans, id)
	return nil
}

func (f *fakeStore) ListUsers(_ context.Context, p store.Page) ([]models.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := rows(f.users, nil)
	p = p.Normalize()
	start := min((p.Page-1)*p.Limit, len(all))
	end := min(start+p.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}

func (f *fakeStore) UpdateUserRole(_ context.Context, id int, role string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, notFound("users")
	}
	u.Role = role
	out := *u
	return &out, nil
}

func (f *fakeStore) ListRedditPosts(_ context.Context, roasterID int) ([]models.RedditPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RedditPost
	for _, p := range f.redditPosts {
		if p.RoasterID == roasterID {
			out = append(out, p)
		}
	}
	return out, nil
}

// recordingMailer captures messages and fails when err is set.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return fmt.Errorf("%w: %w", mail.ErrDelivery, m.err)
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeReddit struct {
	submissions []reddit.Submission
	err         error
}

func (f *fakeReddit) SubmitLink(_ context.Context, s reddit.Submission) (*reddit.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submissions = append(f.submissions, s)
	return &reddit.Post{ID: "abc123", Name: "t3_abc123", URL: "https://www.reddit.com/r/" + s.Subreddit + "/comments/abc123/"}, nil
}
