package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/repository/common"
)

// ErrWebhookNotFound возвращается, когда вебхук не найден.
var ErrWebhookNotFound = errors.New("webhook not found")

// WebhookRepository работает с таблицей webhook_configurations.
type WebhookRepository struct {
	db *sqlx.DB
}

// NewWebhookRepository создаёт экземпляр репозитория.
func NewWebhookRepository(db *sqlx.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// Create сохраняет настройку вебхука.
func (r *WebhookRepository) Create(ctx context.Context, w *models.WebhookConfiguration) error {
	query := `
		INSERT INTO webhook_configurations (user_id, name, url, secret, events, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, failure_count, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		w.UserID, w.Name, w.URL, w.Secret, w.Events, w.IsActive,
	).Scan(&w.ID, &w.FailureCount, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return fmt.Errorf("webhook repository: create %w", err)
	}

	return nil
}

// GetByID возвращает вебхук.
func (r *WebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookConfiguration, error) {
	return common.GetByID[models.WebhookConfiguration](ctx, r.db, "webhook_configurations", id, ErrWebhookNotFound)
}

// ListByUser возвращает вебхуки пользователя.
func (r *WebhookRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WebhookConfiguration, error) {
	var hooks []models.WebhookConfiguration
	query := `SELECT * FROM webhook_configurations WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &hooks, query, userID); err != nil {
		return nil, fmt.Errorf("webhook repository: list %w", err)
	}
	return hooks, nil
}

// ListActiveForEvent возвращает активные вебхуки пользователя, подписанные на событие.
func (r *WebhookRepository) ListActiveForEvent(ctx context.Context, userID uuid.UUID, event string) ([]models.WebhookConfiguration, error) {
	var hooks []models.WebhookConfiguration
	query := `SELECT * FROM webhook_configurations WHERE user_id = $1 AND is_active AND $2 = ANY(events)`
	if err := r.db.SelectContext(ctx, &hooks, query, userID, event); err != nil {
		return nil, fmt.Errorf("webhook repository: list active %w", err)
	}
	return hooks, nil
}

// Update сохраняет имя, адрес, события и флаг активности.
func (r *WebhookRepository) Update(ctx context.Context, w *models.WebhookConfiguration) error {
	query := `
		UPDATE webhook_configurations
		SET name = $2, url = $3, events = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, w.ID, w.Name, w.URL, w.Events, w.IsActive).Scan(&w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWebhookNotFound
		}
		return fmt.Errorf("webhook repository: update %w", err)
	}
	return nil
}

// SetActive включает или выключает вебхук.
func (r *WebhookRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE webhook_configurations SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("webhook repository: set active %w", err)
	}
	return expectRows(result, ErrWebhookNotFound)
}

// RecordDelivery сохраняет результат доставки. Успех сбрасывает счётчик ошибок.
func (r *WebhookRepository) RecordDelivery(ctx context.Context, id uuid.UUID, statusCode int, success bool, at time.Time) error {
	query := `
		UPDATE webhook_configurations
		SET last_triggered_at = $2,
			last_status_code = NULLIF($3, 0),
			failure_count = CASE WHEN $4 THEN 0 ELSE failure_count + 1 END
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, at, statusCode, success); err != nil {
		return fmt.Errorf("webhook repository: record delivery %w", err)
	}
	return nil
}

// Delete удаляет вебхук.
func (r *WebhookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM webhook_configurations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("webhook repository: delete %w", err)
	}
	return expectRows(result, ErrWebhookNotFound)
}
