package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Proposal описывает коммерческое предложение, собранное из секций.
// Content хранится как есть: массив секций, объект с числовыми ключами
// или старый плоский формат. Нормализация выполняется пакетом content.
type Proposal struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	Title         string          `db:"title" json:"title"`
	ClientName    *string         `db:"client_name" json:"client_name,omitempty"`
	ClientEmail   *string         `db:"client_email" json:"client_email,omitempty"`
	ClientCompany *string         `db:"client_company" json:"client_company,omitempty"`
	Status        string          `db:"status" json:"status"`
	Content       json.RawMessage `db:"content" json:"content"`
	Theme         Theme           `db:"theme" json:"theme"`
	BrandKitID    *uuid.UUID      `db:"brand_kit_id" json:"brand_kit_id,omitempty"`
	Currency      string          `db:"currency" json:"currency"`
	TotalAmount   float64         `db:"total_amount" json:"total_amount"`
	ValidUntil    *time.Time      `db:"valid_until" json:"valid_until,omitempty"`
	SentAt        *time.Time      `db:"sent_at" json:"sent_at,omitempty"`
	ViewedAt      *time.Time      `db:"viewed_at" json:"viewed_at,omitempty"`
	SignedAt      *time.Time      `db:"signed_at" json:"signed_at,omitempty"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Theme описывает визуальное оформление предложения.
type Theme struct {
	PrimaryColor    string `json:"primary_color,omitempty"`
	SecondaryColor  string `json:"secondary_color,omitempty"`
	AccentColor     string `json:"accent_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	HeadingFont     string `json:"heading_font,omitempty"`
	BodyFont        string `json:"body_font,omitempty"`
	LogoURL         string `json:"logo_url,omitempty"`
}

// Value сериализует тему в JSONB.
func (t Theme) Value() (driver.Value, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan читает тему из JSONB.
func (t *Theme) Scan(src any) error {
	if src == nil {
		*t = Theme{}
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("theme: неподдерживаемый тип %T", src)
	}

	if len(raw) == 0 {
		*t = Theme{}
		return nil
	}
	return json.Unmarshal(raw, t)
}

// ProposalFilter задаёт параметры выборки списка предложений.
type ProposalFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// ProposalStatusCount используется в сводке дашборда.
type ProposalStatusCount struct {
	Status string  `db:"status" json:"status"`
	Count  int     `db:"count" json:"count"`
	Amount float64 `db:"amount" json:"amount"`
}
