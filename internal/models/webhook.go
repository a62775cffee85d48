package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// WebhookConfiguration описывает пользовательский исходящий вебхук.
type WebhookConfiguration struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	UserID          uuid.UUID      `db:"user_id" json:"user_id"`
	Name            string         `db:"name" json:"name"`
	URL             string         `db:"url" json:"url"`
	Secret          string         `db:"secret" json:"-"`
	Events          pq.StringArray `db:"events" json:"events"`
	IsActive        bool           `db:"is_active" json:"is_active"`
	LastTriggeredAt *time.Time     `db:"last_triggered_at" json:"last_triggered_at,omitempty"`
	LastStatusCode  *int           `db:"last_status_code" json:"last_status_code,omitempty"`
	FailureCount    int            `db:"failure_count" json:"failure_count"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Subscribed сообщает, подписан ли вебхук на событие.
func (w *WebhookConfiguration) Subscribed(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookDelivery результат одной доставки.
type WebhookDelivery struct {
	WebhookID  uuid.UUID `json:"webhook_id"`
	Event      string    `json:"event"`
	StatusCode int       `json:"status_code"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}
