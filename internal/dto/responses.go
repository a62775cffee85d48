package dto

import (
	"github.com/ignatzorin/proposal-studio/internal/content"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPagination считает has_more по общему количеству.
func NewPagination(total, limit, offset int) Pagination {
	return Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// AuthResponse пользователь, профиль и пара токенов.
type AuthResponse struct {
	User    *models.User       `json:"user"`
	Profile *models.Profile    `json:"profile"`
	Tokens  *service.TokenPair `json:"tokens"`
}

// ProfileResponse текущий пользователь с профилем.
type ProfileResponse struct {
	User    *models.User    `json:"user"`
	Profile *models.Profile `json:"profile"`
}

// ProposalResponse предложение с нормализованными секциями.
type ProposalResponse struct {
	*models.Proposal
	Sections []content.Section `json:"sections"`
}

// PaginatedProposalsResponse represents paginated proposals list
type PaginatedProposalsResponse struct {
	Data       []models.Proposal `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// AITextResponse ответ генерации текста.
type AITextResponse struct {
	Text string `json:"text"`
}

// WebhookAckResponse ответ платёжному провайдеру.
type WebhookAckResponse struct {
	Status string `json:"status"`
}
