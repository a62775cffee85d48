package models

import (
	"time"

	"github.com/google/uuid"
)

// User описывает владельца аккаунта.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Profile хранит реквизиты компании, которые подставляются в предложения.
type Profile struct {
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	DisplayName     string     `db:"display_name" json:"display_name"`
	CompanyName     *string    `db:"company_name" json:"company_name,omitempty"`
	Website         *string    `db:"website" json:"website,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Address         *string    `db:"address" json:"address,omitempty"`
	LogoMediaID     *uuid.UUID `db:"logo_media_id" json:"logo_media_id,omitempty"`
	DefaultCurrency string     `db:"default_currency" json:"default_currency"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Session представляет сохранённую сессию пользователя.
type Session struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	UserAgent    *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress    *string   `db:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
