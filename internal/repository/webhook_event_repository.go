package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WebhookEventRepository ведёт журнал обработанных событий платёжных провайдеров.
type WebhookEventRepository struct {
	db *sqlx.DB
}

// NewWebhookEventRepository создаёт экземпляр репозитория.
func NewWebhookEventRepository(db *sqlx.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// TryRecord записывает событие. Возвращает false, если оно уже было записано.
func (r *WebhookEventRepository) TryRecord(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	query := `
		INSERT INTO payment_webhook_events (provider, event_id, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, event_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, provider, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("webhook event repository: record %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("webhook event repository: record rows affected %w", err)
	}
	return n > 0, nil
}

// Forget удаляет запись, чтобы провайдер мог повторить доставку после ошибки обработки.
func (r *WebhookEventRepository) Forget(ctx context.Context, provider, eventID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payment_webhook_events WHERE provider = $1 AND event_id = $2`, provider, eventID); err != nil {
		return fmt.Errorf("webhook event repository: forget %w", err)
	}
	return nil
}
