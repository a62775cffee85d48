package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-studio/internal/models"
)

// AnalyticsRepository работает с таблицей proposal_analytics.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository создаёт экземпляр репозитория.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Record сохраняет событие.
func (r *AnalyticsRepository) Record(ctx context.Context, e *models.ProposalAnalyticsEvent) error {
	query := `
		INSERT INTO proposal_analytics (proposal_id, share_id, event_type, section, duration_seconds, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		e.ProposalID, e.ShareID, e.EventType, e.Section, e.DurationSeconds, e.IPAddress, e.UserAgent,
	).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("analytics repository: record %w", err)
	}

	return nil
}

// Summary собирает сводку по предложению. Просмотры по дням считаются начиная с since.
func (r *AnalyticsRepository) Summary(ctx context.Context, proposalID uuid.UUID, since time.Time) (*models.AnalyticsSummary, error) {
	summary := &models.AnalyticsSummary{
		ProposalID:  proposalID,
		Events:      []models.EventTypeCount{},
		ViewsPerDay: []models.DailyViews{},
	}

	totalsQuery := `
		SELECT
			COUNT(*) FILTER (WHERE event_type = 'view') AS total_views,
			COUNT(DISTINCT ip_address) FILTER (WHERE event_type = 'view') AS unique_viewers,
			COALESCE(SUM(duration_seconds) FILTER (WHERE event_type = 'time_spent'), 0) AS total_time,
			MAX(created_at) FILTER (WHERE event_type = 'view') AS last_viewed_at
		FROM proposal_analytics
		WHERE proposal_id = $1
	`

	var lastViewed sql.NullTime
	if err := r.db.QueryRowxContext(ctx, totalsQuery, proposalID).Scan(
		&summary.TotalViews,
		&summary.UniqueViewers,
		&summary.TotalTimeSeconds,
		&lastViewed,
	); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analytics repository: totals %w", err)
	}
	if lastViewed.Valid {
		summary.LastViewedAt = &lastViewed.Time
	}

	eventsQuery := `
		SELECT event_type, COUNT(*) AS count
		FROM proposal_analytics
		WHERE proposal_id = $1
		GROUP BY event_type
		ORDER BY event_type
	`
	if err := r.db.SelectContext(ctx, &summary.Events, eventsQuery, proposalID); err != nil {
		return nil, fmt.Errorf("analytics repository: events %w", err)
	}

	dailyQuery := `
		SELECT date_trunc('day', created_at) AS day, COUNT(*) AS views
		FROM proposal_analytics
		WHERE proposal_id = $1 AND event_type = 'view' AND created_at >= $2
		GROUP BY day
		ORDER BY day
	`
	if err := r.db.SelectContext(ctx, &summary.ViewsPerDay, dailyQuery, proposalID, since); err != nil {
		return nil, fmt.Errorf("analytics repository: views per day %w", err)
	}

	return summary, nil
}
