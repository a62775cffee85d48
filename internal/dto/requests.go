package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-studio/internal/models"
)

// RegisterRequest represents the request to create an account
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	CompanyName string `json:"company_name"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdateProfileRequest represents the request to update the current profile
type UpdateProfileRequest struct {
	DisplayName     *string    `json:"display_name"`
	CompanyName     *string    `json:"company_name"`
	Website         *string    `json:"website"`
	Phone           *string    `json:"phone"`
	Address         *string    `json:"address"`
	LogoMediaID     *uuid.UUID `json:"logo_media_id"`
	DefaultCurrency *string    `json:"default_currency"`
}

// CreateProposalRequest represents the request to create a proposal
type CreateProposalRequest struct {
	Title         string          `json:"title" binding:"required"`
	ClientName    *string         `json:"client_name"`
	ClientEmail   *string         `json:"client_email"`
	ClientCompany *string         `json:"client_company"`
	Content       json.RawMessage `json:"content"`
	Theme         *models.Theme   `json:"theme"`
	Currency      string          `json:"currency"`
	ValidUntil    *time.Time      `json:"valid_until"`
	TemplateID    *uuid.UUID      `json:"template_id"`
	BrandKitID    *uuid.UUID      `json:"brand_kit_id"`
}

// UpdateProposalRequest represents a partial proposal update
type UpdateProposalRequest struct {
	Title         *string         `json:"title"`
	ClientName    *string         `json:"client_name"`
	ClientEmail   *string         `json:"client_email"`
	ClientCompany *string         `json:"client_company"`
	Content       json.RawMessage `json:"content"`
	Theme         *models.Theme   `json:"theme"`
	Currency      *string         `json:"currency"`
	ValidUntil    *time.Time      `json:"valid_until"`
}

// UpdateProposalStatusRequest represents the request to update proposal status
type UpdateProposalStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ApplyBrandKitRequest выбирает бренд-кит для предложения.
type ApplyBrandKitRequest struct {
	BrandKitID uuid.UUID `json:"brand_kit_id" binding:"required"`
}

// SendProposalRequest сопроводительное сообщение клиенту.
type SendProposalRequest struct {
	Message string `json:"message"`
}

// ShareRequest срок жизни ссылки в днях, 0 означает значение по умолчанию.
type ShareRequest struct {
	ExpiresInDays int `json:"expires_in_days" binding:"gte=0"`
}

// TTL переводит дни в длительность.
func (r ShareRequest) TTL() time.Duration {
	return time.Duration(r.ExpiresInDays) * 24 * time.Hour
}

// AddSignerRequest represents a new signer
type AddSignerRequest struct {
	Name  string  `json:"name" binding:"required"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

// SignRequest подпись рисунком (data URL) или набранным именем.
type SignRequest struct {
	SignatureImage string `json:"signature_image"`
	TypedName      string `json:"typed_name"`
}

// TrackEventRequest событие просмотра со страницы клиента.
type TrackEventRequest struct {
	EventType       string  `json:"event_type" binding:"required"`
	Section         *string `json:"section"`
	DurationSeconds *int    `json:"duration_seconds"`
}

// BrandKitRequest поля бренд-кита, nil означает "не менять".
type BrandKitRequest struct {
	Name            *string    `json:"name"`
	PrimaryColor    *string    `json:"primary_color"`
	SecondaryColor  *string    `json:"secondary_color"`
	AccentColor     *string    `json:"accent_color"`
	TextColor       *string    `json:"text_color"`
	BackgroundColor *string    `json:"background_color"`
	HeadingFont     *string    `json:"heading_font"`
	BodyFont        *string    `json:"body_font"`
	LogoMediaID     *uuid.UUID `json:"logo_media_id"`
	ClearLogo       bool       `json:"clear_logo"`
	IsDefault       *bool      `json:"is_default"`
}

// WebhookRequest represents webhook configuration fields
type WebhookRequest struct {
	Name     *string  `json:"name"`
	URL      *string  `json:"url"`
	Events   []string `json:"events"`
	IsActive *bool    `json:"is_active"`
}

// ToggleWebhookRequest явное значение флага, пустое тело переключает его.
type ToggleWebhookRequest struct {
	IsActive *bool `json:"is_active"`
}

// CreatePaymentLinkRequest represents the request to create a payment link
type CreatePaymentLinkRequest struct {
	Provider string   `json:"provider" binding:"required"`
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency"`
}

// CheckoutRequest выбирает провайдера подписки.
type CheckoutRequest struct {
	Provider string `json:"provider" binding:"required"`
}

// AIGenerateRequest represents the request to draft a section
type AIGenerateRequest struct {
	SectionType   string `json:"section_type"`
	Prompt        string `json:"prompt" binding:"required"`
	ProposalTitle string `json:"proposal_title"`
	ClientName    string `json:"client_name"`
	Tone          string `json:"tone"`
}

// AIImproveRequest represents the request to rewrite text
type AIImproveRequest struct {
	Text        string `json:"text" binding:"required"`
	Instruction string `json:"instruction"`
}

// CreateTemplateRequest represents the request to save a template
type CreateTemplateRequest struct {
	Name           string          `json:"name" binding:"required"`
	Description    *string         `json:"description"`
	Category       string          `json:"category"`
	Content        json.RawMessage `json:"content"`
	Theme          *models.Theme   `json:"theme"`
	FromProposalID *uuid.UUID      `json:"from_proposal_id"`
}
