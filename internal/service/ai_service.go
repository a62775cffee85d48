package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/ai"
	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/telemetry"
	"github.com/ignatzorin/proposal-studio/internal/validation"
)

const maxToneLength = 50

// CopyWriter пишет черновики текста предложения.
type CopyWriter interface {
	GenerateSection(ctx context.Context, in ai.GenerateInput) (string, error)
	Improve(ctx context.Context, text, instruction string) (string, error)
}

// AIService оборачивает AI-провайдера проверкой ввода и маппингом ошибок.
type AIService struct {
	writer CopyWriter
}

// NewAIService создаёт сервис. writer может быть nil, тогда сервис недоступен.
func NewAIService(writer CopyWriter) *AIService {
	return &AIService{writer: writer}
}

// Generate пишет черновик секции.
func (s *AIService) Generate(ctx context.Context, userID uuid.UUID, in ai.GenerateInput) (string, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	if err := validation.ValidatePrompt("prompt", in.Prompt); err != nil {
		return "", apperror.Validation(err.Error())
	}
	if len([]rune(in.Tone)) > maxToneLength {
		return "", apperror.Validation("tone слишком длинный")
	}
	if s.writer == nil {
		return "", apperror.ErrAIUnavailable
	}

	ctx, span := telemetry.StartSpan(ctx, "ai.generate")
	text, err := s.writer.GenerateSection(ctx, in)
	telemetry.EndSpan(span, err)
	if err != nil {
		return "", s.mapError(err, userID, "generate")
	}
	return text, nil
}

// Improve переписывает текст по инструкции.
func (s *AIService) Improve(ctx context.Context, userID uuid.UUID, text, instruction string) (string, error) {
	text = strings.TrimSpace(text)
	if err := validation.ValidatePrompt("text", text); err != nil {
		return "", apperror.Validation(err.Error())
	}
	if instruction = strings.TrimSpace(instruction); instruction != "" {
		if err := validation.ValidatePrompt("instruction", instruction); err != nil {
			return "", apperror.Validation(err.Error())
		}
	}
	if s.writer == nil {
		return "", apperror.ErrAIUnavailable
	}

	ctx, span := telemetry.StartSpan(ctx, "ai.improve")
	out, err := s.writer.Improve(ctx, text, instruction)
	telemetry.EndSpan(span, err)
	if err != nil {
		return "", s.mapError(err, userID, "improve")
	}
	return out, nil
}

func (s *AIService) mapError(err error, userID uuid.UUID, op string) error {
	logger.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"op":      op,
	}).WithError(err).Warn("ai service: запрос к провайдеру не выполнен")

	switch {
	case errors.Is(err, ai.ErrRateLimited):
		return apperror.ErrAIRateLimited
	case errors.Is(err, ai.ErrCreditsExhausted):
		return apperror.ErrAICreditsExhausted
	default:
		return apperror.Wrap(err, apperror.ErrCodeBadGateway, apperror.ErrAIUnavailable.Message)
	}
}
