package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/marshallshelly/roastery/internal/auth"
	"github.com/marshallshelly/roastery/internal/i18n"
	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/internal/store"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

// principal returns the authenticated caller. Routes behind RequireUser
// always have one.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, status int, u *models.User) {
	token, expires, err := s.tokens.Issue(auth.Principal{UserID: u.ID, Role: u.Role})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, status, AuthResponse{Token: token, ExpiresAt: expires, User: *u})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	role := models.RoleUser
	if s.cfg.IsAdminEmail(in.Email) {
		role = models.RoleAdmin
	}
	u, err := s.store.CreateUser(r.Context(), &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         role,
	})
	if errors.Is(err, runtime.ErrDuplicateKey) {
		s.fail(w, r, &statusError{status: http.StatusConflict, message: "email is already registered"})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("user registered", zap.Int("user_id", u.ID), zap.String("role", u.Role))
	s.issue(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.store.GetUserByEmail(r.Context(), in.Email)
	if errors.Is(err, runtime.ErrNotFound) {
		s.fail(w, r, auth.ErrInvalidCredentials)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := auth.CheckPassword(u.PasswordHash, in.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	s.issue(w, r, http.StatusOK, u)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(r.Context(), principal(r).UserID)
	if errors.Is(err, runtime.ErrNotFound) {
		s.fail(w, r, &statusError{status: http.StatusUnauthorized, message: "account no longer exists"})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) handleListFavourites(w http.ResponseWriter, r *http.Request) {
	roasters, err := s.store.ListFavourites(r.Context(), principal(r).UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, i18n.LocalizeResults(roasters, s.lang(w, r), s.roasterSummary))
}

func (s *Server) handleAddFavourite(w http.ResponseWriter, r *http.Request) {
	roasterID, err := pathInt(r, "roasterId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.visibleRoaster(r.Context(), roasterID); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.AddFavourite(r.Context(), principal(r).UserID, roasterID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavourite(w http.ResponseWriter, r *http.Request) {
	roasterID, err := pathInt(r, "roasterId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.RemoveFavourite(r.Context(), principal(r).UserID, roasterID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	roasterID, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in reviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.validate(); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := r.Context()
	if _, err := s.visibleRoaster(ctx, roasterID); err != nil {
		s.fail(w, r, err)
		return
	}
	p := principal(r)
	author, err := s.store.GetUser(ctx, p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rv, err := s.store.CreateReview(ctx, &models.Review{
		RoasterID: roasterID,
		UserID:    p.UserID,
		Rating:    in.Rating,
		Comment:   in.Comment,
	})
	if errors.Is(err, runtime.ErrDuplicateKey) {
		s.fail(w, r, &statusError{status: http.StatusConflict, message: "you have already reviewed this roaster"})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, reviewView(store.ReviewWithAuthor{Review: *rv, AuthorName: author.Name}))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rv, err := s.store.GetReview(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rv.UserID != principal(r).UserID && !s.isAdmin(r.Context()) {
		s.fail(w, r, forbidden("only the author or an admin can delete a review"))
		return
	}
	if err := s.store.DeleteReview(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
