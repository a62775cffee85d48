package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/validation"
)

const webhookSecretBytes = 32

// WebhookRepository описывает хранилище конфигураций вебхуков.
type WebhookRepository interface {
	Create(ctx context.Context, w *models.WebhookConfiguration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookConfiguration, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WebhookConfiguration, error)
	Update(ctx context.Context, w *models.WebhookConfiguration) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// WebhookDeliverer синхронная доставка для тестового события.
type WebhookDeliverer interface {
	Deliver(ctx context.Context, hook *models.WebhookConfiguration, event string, data any) models.WebhookDelivery
}

// WebhookInput поля вебхука. Для обновления nil означает "не менять".
type WebhookInput struct {
	Name     *string
	URL      *string
	Events   []string
	IsActive *bool
}

// CreatedWebhook вебхук вместе с секретом, который показывается один раз.
type CreatedWebhook struct {
	*models.WebhookConfiguration
	Secret string `json:"secret"`
}

// WebhookService управляет исходящими вебхуками пользователя.
type WebhookService struct {
	repo      WebhookRepository
	deliverer WebhookDeliverer
	httpsOnly bool
}

// NewWebhookService создаёт сервис. httpsOnly включается в production.
func NewWebhookService(repo WebhookRepository, deliverer WebhookDeliverer, httpsOnly bool) *WebhookService {
	return &WebhookService{repo: repo, deliverer: deliverer, httpsOnly: httpsOnly}
}

// Create создаёт вебхук и генерирует секрет подписи.
func (s *WebhookService) Create(ctx context.Context, userID uuid.UUID, in WebhookInput) (*CreatedWebhook, error) {
	if in.Name == nil || in.URL == nil {
		return nil, apperror.Validation("name и url обязательны")
	}

	hook := &models.WebhookConfiguration{UserID: userID, IsActive: true}
	if err := s.apply(hook, in); err != nil {
		return nil, err
	}
	if len(hook.Events) == 0 {
		return nil, apperror.Validation("укажите хотя бы одно событие")
	}

	secret, err := randomHex(webhookSecretBytes)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	hook.Secret = secret

	if err := s.repo.Create(ctx, hook); err != nil {
		return nil, apperror.Internal(err)
	}
	return &CreatedWebhook{WebhookConfiguration: hook, Secret: secret}, nil
}

// List возвращает вебхуки пользователя.
func (s *WebhookService) List(ctx context.Context, userID uuid.UUID) ([]models.WebhookConfiguration, error) {
	hooks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if hooks == nil {
		hooks = []models.WebhookConfiguration{}
	}
	return hooks, nil
}

// Get возвращает вебхук владельца.
func (s *WebhookService) Get(ctx context.Context, id, userID uuid.UUID) (*models.WebhookConfiguration, error) {
	hook, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrWebhookNotFound, apperror.ErrWebhookNotFound)
	}
	if hook.UserID != userID {
		return nil, apperror.ErrWebhookNotFound
	}
	return hook, nil
}

// Update частично обновляет вебхук.
func (s *WebhookService) Update(ctx context.Context, id, userID uuid.UUID, in WebhookInput) (*models.WebhookConfiguration, error) {
	hook, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(hook, in); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, hook); err != nil {
		return nil, mapRepoErr(err, repository.ErrWebhookNotFound, apperror.ErrWebhookNotFound)
	}
	return hook, nil
}

// Toggle меняет флаг активности и возвращает сохранённое состояние.
func (s *WebhookService) Toggle(ctx context.Context, id, userID uuid.UUID, active *bool) (*models.WebhookConfiguration, error) {
	hook, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	next := !hook.IsActive
	if active != nil {
		next = *active
	}
	if err := s.repo.SetActive(ctx, id, next); err != nil {
		return nil, mapRepoErr(err, repository.ErrWebhookNotFound, apperror.ErrWebhookNotFound)
	}

	return s.Get(ctx, id, userID)
}

// Delete удаляет вебхук.
func (s *WebhookService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoErr(err, repository.ErrWebhookNotFound, apperror.ErrWebhookNotFound)
	}
	return nil
}

// Test синхронно отправляет событие webhook.test, в том числе неактивному вебхуку.
func (s *WebhookService) Test(ctx context.Context, id, userID uuid.UUID) (*models.WebhookDelivery, error) {
	hook, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	result := s.deliverer.Deliver(ctx, hook, models.WebhookEventTest, map[string]any{
		"webhook_id": hook.ID,
		"message":    "тестовое событие",
	})
	return &result, nil
}

func (s *WebhookService) apply(hook *models.WebhookConfiguration, in WebhookInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validation.ValidateLength("name", name, 1, validation.MaxWebhookNameLength); err != nil {
			return apperror.Validation(err.Error())
		}
		hook.Name = name
	}
	if in.URL != nil {
		link := strings.TrimSpace(*in.URL)
		if err := validation.ValidateURL("url", link, s.httpsOnly); err != nil {
			return apperror.Validation(err.Error())
		}
		hook.URL = link
	}
	if in.Events != nil {
		if err := validation.ValidateEventList(in.Events, models.ValidWebhookEvents); err != nil {
			return apperror.Validation(err.Error())
		}
		hook.Events = pq.StringArray(in.Events)
	}
	if in.IsActive != nil {
		hook.IsActive = *in.IsActive
	}
	return nil
}
