package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription подписка пользователя у платёжного провайдера.
type Subscription struct {
	ID                     uuid.UUID  `db:"id" json:"id"`
	UserID                 uuid.UUID  `db:"user_id" json:"user_id"`
	Provider               string     `db:"provider" json:"provider"`
	ExternalSubscriptionID string     `db:"external_subscription_id" json:"external_subscription_id"`
	ExternalCustomerID     *string    `db:"external_customer_id" json:"external_customer_id,omitempty"`
	Plan                   string     `db:"plan" json:"plan"`
	Status                 string     `db:"status" json:"status"`
	CurrentPeriodEnd       *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// IsActive сообщает, даёт ли подписка доступ к платным функциям на момент now.
func (s *Subscription) IsActive(now time.Time) bool {
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusTrialing {
		return false
	}
	return s.CurrentPeriodEnd == nil || s.CurrentPeriodEnd.After(now)
}

// SubscriptionUpdate изменения подписки, пришедшие от провайдера.
type SubscriptionUpdate struct {
	Provider               string
	ExternalSubscriptionID string
	ExternalCustomerID     *string
	UserID                 *uuid.UUID
	Plan                   string
	Status                 string
	CurrentPeriodEnd       *time.Time
}
