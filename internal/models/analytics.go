package models

import (
	"time"

	"github.com/google/uuid"
)

// ProposalAnalyticsEvent фиксирует действие клиента с предложением.
type ProposalAnalyticsEvent struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ProposalID      uuid.UUID  `db:"proposal_id" json:"proposal_id"`
	ShareID         *uuid.UUID `db:"share_id" json:"share_id,omitempty"`
	EventType       string     `db:"event_type" json:"event_type"`
	Section         *string    `db:"section" json:"section,omitempty"`
	DurationSeconds *int       `db:"duration_seconds" json:"duration_seconds,omitempty"`
	IPAddress       *string    `db:"ip_address" json:"-"`
	UserAgent       *string    `db:"user_agent" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// DailyViews число просмотров за день.
type DailyViews struct {
	Day   time.Time `db:"day" json:"day"`
	Views int       `db:"views" json:"views"`
}

// EventTypeCount число событий одного типа.
type EventTypeCount struct {
	EventType string `db:"event_type" json:"event_type"`
	Count     int    `db:"count" json:"count"`
}

// AnalyticsSummary агрегированная статистика по предложению.
type AnalyticsSummary struct {
	ProposalID       uuid.UUID        `json:"proposal_id"`
	TotalViews       int              `json:"total_views"`
	UniqueViewers    int              `json:"unique_viewers"`
	TotalTimeSeconds int              `json:"total_time_seconds"`
	LastViewedAt     *time.Time       `json:"last_viewed_at,omitempty"`
	Events           []EventTypeCount `json:"events"`
	ViewsPerDay      []DailyViews     `json:"views_per_day"`
}

// Dashboard сводка по всем предложениям пользователя.
type Dashboard struct {
	Statuses            []ProposalStatusCount `json:"statuses"`
	TotalProposals      int                   `json:"total_proposals"`
	PipelineValue       float64               `json:"pipeline_value"`
	SignedValue         float64               `json:"signed_value"`
	PaidValue           float64               `json:"paid_value"`
	RecentNotifications []Notification        `json:"recent_notifications"`
}
