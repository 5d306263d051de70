package store

import (
	"context"

	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/pkg/builder"
)

// CreateContactMessage stores a contact form submission.
func (s *Store) CreateContactMessage(ctx context.Context, m *models.ContactMessage) (*models.ContactMessage, error) {
	return builder.Insert[models.ContactMessage](s.db).Values(*m).Returning("*").One(ctx)
}

// MarkContactDelivered flags a contact message as mailed.
func (s *Store) MarkContactDelivered(ctx context.Context, id int) error {
	n, err := builder.Update[models.ContactMessage](s.db).
		Set("delivered", true).
		Where(builder.Eq("id", id)).
		Exec(ctx)
	return mustAffect("contact_messages", n, err)
}

// RecordRedditPost stores a successful Reddit share.
func (s *Store) RecordRedditPost(ctx context.Context, p *models.RedditPost) (*models.RedditPost, error) {
	return builder.Insert[models.RedditPost](s.db).Values(*p).Returning("*").One(ctx)
}

// ListRedditPosts returns the Reddit shares of a roaster, newest first.
func (s *Store) ListRedditPosts(ctx context.Context, roasterID int) ([]models.RedditPost, error) {
	return builder.Select[models.RedditPost](s.db).
		Where(builder.Eq("roaster_id", roasterID)).
		OrderByDesc("created_at").
		OrderByDesc("id").
		All(ctx)
}
