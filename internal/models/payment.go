package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentLink ссылка на оплату предложения у внешнего провайдера.
type PaymentLink struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ProposalID uuid.UUID  `db:"proposal_id" json:"proposal_id"`
	UserID     uuid.UUID  `db:"user_id" json:"user_id"`
	Provider   string     `db:"provider" json:"provider"`
	Amount     float64    `db:"amount" json:"amount"`
	Currency   string     `db:"currency" json:"currency"`
	Status     string     `db:"status" json:"status"`
	ExternalID *string    `db:"external_id" json:"external_id,omitempty"`
	URL        *string    `db:"url" json:"url,omitempty"`
	PaidAt     *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// PaymentWebhookEvent запись об уже обработанном событии провайдера.
type PaymentWebhookEvent struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Provider    string    `db:"provider" json:"provider"`
	EventID     string    `db:"event_id" json:"event_id"`
	EventType   string    `db:"event_type" json:"event_type"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}
