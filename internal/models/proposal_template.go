package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProposalTemplate заготовка предложения. Системные шаблоны не имеют владельца.
type ProposalTemplate struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	UserID      *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description,omitempty"`
	Category    string          `db:"category" json:"category"`
	Content     json.RawMessage `db:"content" json:"content"`
	Theme       Theme           `db:"theme" json:"theme"`
	IsSystem    bool            `db:"is_system" json:"is_system"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
