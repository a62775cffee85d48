package models

import (
	"time"

	"github.com/google/uuid"
)

// SecureShare описывает ссылку для анонимного просмотра предложения.
type SecureShare struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ProposalID     uuid.UUID  `db:"proposal_id" json:"proposal_id"`
	Token          string     `db:"token" json:"token"`
	CreatedBy      uuid.UUID  `db:"created_by" json:"created_by"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expires_at"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	AccessCount    int        `db:"access_count" json:"access_count"`
	LastAccessedAt *time.Time `db:"last_accessed_at" json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// IsExpired сообщает, истекла ли ссылка на момент now.
func (s *SecureShare) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
