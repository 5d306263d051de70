package store

import (
	"context"
	"fmt"
	"time"

	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/pkg/builder"
)

// RoasterViews is one row of the most-viewed roasters ranking.
type RoasterViews struct {
	RoasterID int
	Slug      string
	Name      string
	Views     int64
}

// AnalyticsSummary aggregates events since a point in time.
type AnalyticsSummary struct {
	Since       time.Time
	Total       int64
	ByType      map[string]int64
	TopRoasters []RoasterViews
}

// TopRoastersLimit caps the ranking in AnalyticsSummary.
const TopRoastersLimit = 10

// RecordEvent stores an analytics event.
func (s *Store) RecordEvent(ctx context.Context, e *models.AnalyticsEvent) error {
	_, err := builder.Insert[models.AnalyticsEvent](s.db).Values(*e).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// AnalyticsSummary counts events per type since since and ranks roasters by
// roaster_view events.
func (s *Store) AnalyticsSummary(ctx context.Context, since time.Time) (*AnalyticsSummary, error) {
	q, err := s.querier()
	if err != nil {
		return nil, err
	}

	summary := &AnalyticsSummary{Since: since, ByType: make(map[string]int64)}

	rows, err := q.Query(ctx,
		`SELECT event_type, COUNT(*) FROM analytics_events
		 WHERE created_at >= $1
		 GROUP BY event_type`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	for rows.Next() {
		var eventType string
		var n int64
		if err := rows.Scan(&eventType, &n); err != nil {
			rows.Close()
			return nil, err
		}
		summary.ByType[eventType] = n
		summary.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx,
		`SELECT r.id, r.slug, r.name, COUNT(*) AS views
		 FROM analytics_events e JOIN roasters r ON r.id = e.roaster_id
		 WHERE e.event_type = $1 AND e.created_at >= $2
		 GROUP BY r.id, r.slug, r.name
		 ORDER BY views DESC, r.name
		 LIMIT $3`, models.EventRoasterView, since, TopRoastersLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank roasters: %w", err)
	}
	defer rows.Close()

	summary.TopRoasters = make([]RoasterViews, 0, TopRoastersLimit)
	for rows.Next() {
		var rv RoasterViews
		if err := rows.Scan(&rv.RoasterID, &rv.Slug, &rv.Name, &rv.Views); err != nil {
			return nil, err
		}
		summary.TopRoasters = append(summary.TopRoasters, rv)
	}
	return summary, rows.Err()
}
