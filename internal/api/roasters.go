package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/marshallshelly/roastery/internal/auth"
	"github.com/marshallshelly/roastery/internal/i18n"
	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/internal/slug"
	"github.com/marshallshelly/roastery/internal/store"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

// lang resolves the response locale for r and advertises it.
func (s *Server) lang(w http.ResponseWriter, r *http.Request) string {
	lang := s.localizer.ResolveRequest(r)
	w.Header().Set("Content-Language", lang)
	w.Header().Add("Vary", "Accept-Language")
	return lang
}

// isAdmin reports whether the caller is currently an admin. A token's admin
// claim is confirmed against the stored role.
func (s *Server) isAdmin(ctx context.Context) bool {
	p, ok := auth.FromContext(ctx)
	if !ok || !p.IsAdmin() {
		return false
	}
	role, err := s.currentRole(ctx, p.UserID)
	return err == nil && role == models.RoleAdmin
}

// visibleRoaster returns roaster id, treating hidden roasters as missing for
// everyone but admins.
func (s *Server) visibleRoaster(ctx context.Context, id int) (*models.Roaster, error) {
	r, err := s.store.GetRoasterByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Hidden && !s.isAdmin(ctx) {
		return nil, fmt.Errorf("roaster %d is hidden: %w", id, runtime.ErrNotFound)
	}
	return r, nil
}

func (s *Server) handleListRoasters(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	f := store.RoasterFilter{
		Query:        q.Get("q"),
		CountryCode:  q.Get("country"),
		RegionSlug:   q.Get("region"),
		SpecialtyKey: q.Get("specialty"),
		Sort:         q.Get("sort"),
		Page:         page,
	}
	switch f.Sort {
	case "", store.SortName, store.SortRating, store.SortNewest:
	default:
		s.fail(w, r, &runtime.ValidationError{Field: "sort", Message: "must be one of name, rating, newest"})
		return
	}
	if f.Featured, err = queryBool(r, "featured"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.Verified, err = queryBool(r, "verified"); err != nil {
		s.fail(w, r, err)
		return
	}
	if s.isAdmin(r.Context()) {
		includeHidden, err := queryBool(r, "includeHidden")
		if err != nil {
			s.fail(w, r, err)
			return
		}
		f.IncludeHidden = includeHidden != nil && *includeHidden
	}

	roasters, total, err := s.store.ListRoasters(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	lang := s.lang(w, r)
	respondJSON(w, http.StatusOK, ListResponse[RoasterSummary]{
		Data: i18n.LocalizeResults(roasters, lang, s.roasterSummary),
		Meta: newPageMeta(page, total),
	})
}

func (s *Server) handleGetRoaster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.store.GetRoasterDetail(ctx, mux.Vars(r)["idOrSlug"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, authenticated := auth.FromContext(ctx)
	admin := s.isAdmin(ctx)
	if d.Roaster.Hidden && !admin {
		s.fail(w, r, runtime.ErrNotFound)
		return
	}

	out := s.roasterDetail(d, s.lang(w, r))
	if authenticated {
		fav, err := s.store.IsFavourite(ctx, p.UserID, d.Roaster.ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out.IsFavourite = &fav
	}
	if admin {
		out.OwnerID = d.Roaster.OwnerID
		out.Translations = d.Roaster.Description
	}
	respondJSON(w, http.StatusOK, out)
}

// adminRoaster renders a written roaster with its raw translations.
func (s *Server) adminRoaster(w http.ResponseWriter, r *http.Request, roaster *models.Roaster) RoasterDetail {
	out := s.roasterDetail(&store.RoasterDetail{Roaster: *roaster}, s.lang(w, r))
	out.OwnerID = roaster.OwnerID
	out.Translations = roaster.Description
	return out
}

// assignSlug derives a free slug from the name when none was given.
func (s *Server) assignSlug(ctx context.Context, m *models.Roaster, exceptID int) error {
	if m.Slug != "" {
		return nil
	}
	base := slug.Make(m.Name)
	if base == "" {
		return &runtime.ValidationError{Field: "slug", Message: "cannot be derived from name, set it explicitly"}
	}
	unique, err := slug.Unique(base, func(candidate string) (bool, error) {
		return s.store.SlugTaken(ctx, candidate, exceptID)
	})
	if err != nil {
		return fmt.Errorf("failed to derive slug: %w", err)
	}
	m.Slug = unique
	return nil
}

func (s *Server) handleCreateRoaster(w http.ResponseWriter, r *http.Request) {
	var in roasterInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(s.now()); err != nil {
		s.fail(w, r, err)
		return
	}
	m := in.model()
	if err := s.assignSlug(r.Context(), m, 0); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.store.CreateRoaster(r.Context(), m)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.adminRoaster(w, r, created))
}

func (s *Server) handleUpdateRoaster(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in roasterInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(s.now()); err != nil {
		s.fail(w, r, err)
		return
	}
	m := in.model()
	if err := s.assignSlug(r.Context(), m, id); err != nil {
		s.fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateRoaster(r.Context(), id, m)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.adminRoaster(w, r, updated))
}

func (s *Server) handleDeleteRoaster(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteRoaster(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetRoasterSpecialties(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in specialtiesInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	keys := make([]string, 0, len(in.Keys))
	for _, k := range in.Keys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	specialties, err := s.store.SetRoasterSpecialties(r.Context(), id, keys)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, i18n.LocalizeResults(specialties, s.lang(w, r), s.specialtyView))
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.visibleRoaster(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	reviews, err := s.store.ListReviews(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]ReviewView, len(reviews))
	for i, rv := range reviews {
		out[i] = reviewView(rv)
	}
	respondJSON(w, http.StatusOK, out)
}
