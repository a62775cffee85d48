package models

import (
	"time"

	"github.com/google/uuid"
)

// BrandKit описывает сохранённый набор цветов и шрифтов.
type BrandKit struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	Name            string     `db:"name" json:"name"`
	PrimaryColor    string     `db:"primary_color" json:"primary_color"`
	SecondaryColor  string     `db:"secondary_color" json:"secondary_color"`
	AccentColor     string     `db:"accent_color" json:"accent_color"`
	TextColor       string     `db:"text_color" json:"text_color"`
	BackgroundColor string     `db:"background_color" json:"background_color"`
	HeadingFont     string     `db:"heading_font" json:"heading_font"`
	BodyFont        string     `db:"body_font" json:"body_font"`
	LogoMediaID     *uuid.UUID `db:"logo_media_id" json:"logo_media_id,omitempty"`
	IsDefault       bool       `db:"is_default" json:"is_default"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Theme возвращает тему предложения, построенную из бренд-кита.
func (b *BrandKit) Theme(logoURL string) Theme {
	return Theme{
		PrimaryColor:    b.PrimaryColor,
		SecondaryColor:  b.SecondaryColor,
		AccentColor:     b.AccentColor,
		TextColor:       b.TextColor,
		BackgroundColor: b.BackgroundColor,
		HeadingFont:     b.HeadingFont,
		BodyFont:        b.BodyFont,
		LogoURL:         logoURL,
	}
}
