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

var (
	// ErrPaymentLinkNotFound возвращается, когда платёжная ссылка не найдена.
	ErrPaymentLinkNotFound = errors.New("payment link not found")
	// ErrPaymentLinkNotPending возвращается при смене статуса не ожидающей ссылки.
	ErrPaymentLinkNotPending = errors.New("payment link is not pending")
)

// PaymentLinkRepository работает с таблицей payment_links.
type PaymentLinkRepository struct {
	db *sqlx.DB
}

// NewPaymentLinkRepository создаёт экземпляр репозитория.
func NewPaymentLinkRepository(db *sqlx.DB) *PaymentLinkRepository {
	return &PaymentLinkRepository{db: db}
}

// Create сохраняет ссылку в статусе pending.
func (r *PaymentLinkRepository) Create(ctx context.Context, l *models.PaymentLink) error {
	query := `
		INSERT INTO payment_links (proposal_id, user_id, provider, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		l.ProposalID, l.UserID, l.Provider, l.Amount, l.Currency, l.Status,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return fmt.Errorf("payment link repository: create %w", err)
	}

	return nil
}

// SetExternal сохраняет идентификатор и адрес оплаты у провайдера.
func (r *PaymentLinkRepository) SetExternal(ctx context.Context, id uuid.UUID, externalID, url string) error {
	query := `UPDATE payment_links SET external_id = $2, url = $3, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, externalID, url)
	if err != nil {
		return fmt.Errorf("payment link repository: set external %w", err)
	}
	return expectRows(result, ErrPaymentLinkNotFound)
}

// GetByID возвращает ссылку.
func (r *PaymentLinkRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentLink, error) {
	return common.GetByID[models.PaymentLink](ctx, r.db, "payment_links", id, ErrPaymentLinkNotFound)
}

// GetByExternalID ищет ссылку по идентификатору у провайдера.
func (r *PaymentLinkRepository) GetByExternalID(ctx context.Context, provider, externalID string) (*models.PaymentLink, error) {
	var l models.PaymentLink
	query := `SELECT * FROM payment_links WHERE provider = $1 AND external_id = $2`
	if err := r.db.GetContext(ctx, &l, query, provider, externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentLinkNotFound
		}
		return nil, fmt.Errorf("payment link repository: get by external id %w", err)
	}
	return &l, nil
}

// ListByProposal возвращает ссылки предложения.
func (r *PaymentLinkRepository) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.PaymentLink, error) {
	var links []models.PaymentLink
	query := `SELECT * FROM payment_links WHERE proposal_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &links, query, proposalID); err != nil {
		return nil, fmt.Errorf("payment link repository: list %w", err)
	}
	return links, nil
}

// Cancel отменяет ожидающую оплаты ссылку.
func (r *PaymentLinkRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE payment_links SET status = 'cancelled', updated_at = NOW() WHERE id = $1 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("payment link repository: cancel %w", err)
	}
	return expectRows(result, ErrPaymentLinkNotPending)
}

// MarkPaid в одной транзакции переводит ссылку и её предложение в статус paid.
// Возвращает false, если ссылка уже была оплачена.
func (r *PaymentLinkRepository) MarkPaid(ctx context.Context, id, proposalID uuid.UUID, at time.Time) (bool, error) {
	changed := false
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE payment_links
			SET status = 'paid', paid_at = $2, updated_at = NOW()
			WHERE id = $1 AND status <> 'paid'
		`, id, at)
		if err != nil {
			return fmt.Errorf("payment link repository: mark paid %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("payment link repository: mark paid rows affected %w", err)
		}
		if n == 0 {
			return nil
		}

		result, err = tx.ExecContext(ctx, `
			UPDATE proposals
			SET status = 'paid', paid_at = COALESCE(paid_at, $2), updated_at = NOW()
			WHERE id = $1
		`, proposalID, at)
		if err != nil {
			return fmt.Errorf("payment link repository: mark proposal paid %w", err)
		}
		if err := expectRows(result, ErrProposalNotFound); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}
