package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
)

// Notifier доставляет события владельцу по WebSocket.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// EventDispatcher рассылает события в пользовательские вебхуки.
type EventDispatcher interface {
	Dispatch(ctx context.Context, userID uuid.UUID, event string, data any)
}

// SubscriptionChecker проверяет наличие платной подписки.
type SubscriptionChecker interface {
	HasActiveSubscription(ctx context.Context, userID uuid.UUID) (bool, error)
}

// mapRepoErr переводит sentinel-ошибку репозитория в AppError.
func mapRepoErr(err, repoNotFound error, notFound *apperror.AppError) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repoNotFound) {
		return notFound
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.Internal(err)
}

// notify отправляет событие владельцу, ошибки только логируются.
func notify(n Notifier, userID uuid.UUID, event string, data any) {
	if n == nil {
		return
	}
	if err := n.BroadcastToUser(userID, event, data); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"user_id": userID,
			"event":   event,
		}).WithError(err).Warn("не удалось отправить событие владельцу")
	}
}

// dispatch передаёт событие в вебхуки, если диспетчер задан.
func dispatch(ctx context.Context, d EventDispatcher, userID uuid.UUID, event string, data any) {
	if d == nil {
		return
	}
	d.Dispatch(ctx, userID, event, data)
}

// randomToken возвращает n случайных байт в base64url без паддинга.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("не удалось сгенерировать токен: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// randomHex возвращает n случайных байт в hex.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("не удалось сгенерировать секрет: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// optionalString обрезает пробелы и возвращает nil для пустой строки.
func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// clampPage нормализует параметры пагинации.
func clampPage(limit, offset, def, max int) (int, int) {
	if limit <= 0 || limit > max {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// MediaLookup нужен для проверки владельца логотипов.
type MediaLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error)
}

// ensureOwnedMedia проверяет, что файл существует и принадлежит пользователю.
func ensureOwnedMedia(ctx context.Context, repo MediaLookup, mediaID *uuid.UUID, userID uuid.UUID) error {
	if mediaID == nil || repo == nil {
		return nil
	}
	media, err := repo.GetByID(ctx, *mediaID)
	if err != nil {
		return mapRepoErr(err, repository.ErrMediaNotFound, apperror.ErrMediaNotFound)
	}
	if media.UserID == nil || *media.UserID != userID {
		return apperror.ErrMediaNotFound
	}
	return nil
}
