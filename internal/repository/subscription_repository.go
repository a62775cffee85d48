package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-studio/internal/models"
)

// ErrSubscriptionNotFound возвращается, когда подписка не найдена.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// SubscriptionRepository работает с таблицей subscriptions.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository создаёт экземпляр репозитория.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByExternalID возвращает подписку по идентификатору провайдера.
func (r *SubscriptionRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	var s models.Subscription
	if err := r.db.GetContext(ctx, &s, `SELECT * FROM subscriptions WHERE external_subscription_id = $1`, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("subscription repository: get by external id %w", err)
	}
	return &s, nil
}

// GetLatestForUser возвращает последнюю обновлённую подписку пользователя.
// Активные подписки имеют приоритет.
func (r *SubscriptionRepository) GetLatestForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE user_id = $1
		ORDER BY (status IN ('active', 'trialing')) DESC, updated_at DESC
		LIMIT 1
	`
	var s models.Subscription
	if err := r.db.GetContext(ctx, &s, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("subscription repository: get latest %w", err)
	}
	return &s, nil
}

// Create сохраняет новую подписку.
func (r *SubscriptionRepository) Create(ctx context.Context, s *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, provider, external_subscription_id, external_customer_id, plan, status, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		s.UserID, s.Provider, s.ExternalSubscriptionID, s.ExternalCustomerID, s.Plan, s.Status, s.CurrentPeriodEnd,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("subscription repository: create %w", err)
	}
	return nil
}

// Update сохраняет статус, тариф и период подписки.
func (r *SubscriptionRepository) Update(ctx context.Context, s *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET external_customer_id = $2, plan = $3, status = $4, current_period_end = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		s.ID, s.ExternalCustomerID, s.Plan, s.Status, s.CurrentPeriodEnd,
	).Scan(&s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSubscriptionNotFound
		}
		return fmt.Errorf("subscription repository: update %w", err)
	}
	return nil
}
