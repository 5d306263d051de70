package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/internal/reddit"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

// Analytics window bounds, in days.
const (
	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	users, total, err := s.store.ListUsers(r.Context(), page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ListResponse[models.User]{Data: nonNil(users), Meta: newPageMeta(page, total)})
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in roleInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if in.Role != models.RoleUser && in.Role != models.RoleAdmin {
		s.fail(w, r, &runtime.ValidationError{Field: "role", Message: "must be user or admin"})
		return
	}
	if id == principal(r).UserID && in.Role != models.RoleAdmin {
		s.fail(w, r, badRequest("you cannot remove your own admin role"))
		return
	}
	u, err := s.store.UpdateUserRole(r.Context(), id, in.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("user role changed",
		zap.Int("user_id", u.ID),
		zap.String("role", u.Role),
		zap.Int("by", principal(r).UserID),
	)
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if id == principal(r).UserID {
		s.fail(w, r, badRequest("you cannot delete your own account"))
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", defaultAnalyticsDays, 1, maxAnalyticsDays)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	sum, err := s.store.AnalyticsSummary(r.Context(), since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := AnalyticsView{
		Since:       sum.Since,
		Days:        days,
		Total:       sum.Total,
		ByType:      sum.ByType,
		TopRoasters: make([]RoasterViewCount, len(sum.TopRoasters)),
	}
	if out.ByType == nil {
		out.ByType = map[string]int64{}
	}
	for i, rv := range sum.TopRoasters {
		out.TopRoasters[i] = RoasterViewCount{RoasterID: rv.RoasterID, Slug: rv.Slug, Name: rv.Name, Views: rv.Views}
	}
	respondJSON(w, http.StatusOK, out)
}

// roasterLink is the public page of a roaster.
func (s *Server) roasterLink(r *models.Roaster) string {
	return s.cfg.PublicURL + "/roasters/" + r.Slug
}

func (s *Server) handleShareToReddit(w http.ResponseWriter, r *http.Request) {
	if s.reddit == nil {
		s.fail(w, r, fmt.Errorf("reddit %w", errDisabled))
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in redditInput
	if err := decodeJSON(w, r, &in); err != nil && !errors.Is(err, errEmptyBody) {
		s.fail(w, r, err)
		return
	}

	ctx := r.Context()
	roaster, err := s.store.GetRoasterByID(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	subreddit := strings.TrimPrefix(strings.TrimSpace(in.Subreddit), "r/")
	if subreddit == "" {
		subreddit = s.cfg.Reddit.Subreddit
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = roaster.Name
		if roaster.City != "" {
			title = fmt.Sprintf("%s (%s)", roaster.Name, roaster.City)
		}
	}
	v := runtime.ValidationErrors{}
	if subreddit == "" {
		v.Add("subreddit", "is required when REDDIT_SUBREDDIT is not set")
	}
	checkLength(v, "title", title, 1, maxRedditTitleLength)
	if err := v.Err(); err != nil {
		s.fail(w, r, err)
		return
	}

	link := s.roasterLink(roaster)
	post, err := s.reddit.SubmitLink(ctx, reddit.Submission{Subreddit: subreddit, Title: title, URL: link})
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: reddit: %w", errUpstream, err))
		return
	}
	postURL := post.URL
	if postURL == "" {
		postURL = link
	}
	rec, err := s.store.RecordRedditPost(ctx, &models.RedditPost{
		RoasterID: roaster.ID,
		Subreddit: subreddit,
		RedditID:  post.ID,
		URL:       postURL,
		Title:     title,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("roaster shared to reddit",
		zap.Int("roaster_id", roaster.ID),
		zap.String("subreddit", subreddit),
		zap.String("reddit_id", post.ID),
	)
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListRedditPosts(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	posts, err := s.store.ListRedditPosts(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(posts))
}
