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
)

// ErrShareNotFound возвращается, когда ссылка не найдена.
var ErrShareNotFound = errors.New("share not found")

// ShareRepository работает с таблицей secure_proposal_shares.
type ShareRepository struct {
	db *sqlx.DB
}

// NewShareRepository создаёт экземпляр репозитория.
func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

const shareColumns = `id, proposal_id, token, created_by, expires_at, is_active, access_count, last_accessed_at, created_at`

// Create сохраняет новую ссылку.
func (r *ShareRepository) Create(ctx context.Context, s *models.SecureShare) error {
	query := `
		INSERT INTO secure_proposal_shares (proposal_id, token, created_by, expires_at, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, access_count, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		s.ProposalID, s.Token, s.CreatedBy, s.ExpiresAt,
	).Scan(&s.ID, &s.IsActive, &s.AccessCount, &s.CreatedAt); err != nil {
		return fmt.Errorf("share repository: create %w", err)
	}

	return nil
}

// GetByID возвращает ссылку по идентификатору.
func (r *ShareRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecureShare, error) {
	return r.getOne(ctx, `SELECT `+shareColumns+` FROM secure_proposal_shares WHERE id = $1`, id)
}

// GetByToken возвращает ссылку по токену, включая отозванные и истёкшие.
func (r *ShareRepository) GetByToken(ctx context.Context, token string) (*models.SecureShare, error) {
	return r.getOne(ctx, `SELECT `+shareColumns+` FROM secure_proposal_shares WHERE token = $1`, token)
}

// GetActiveForProposal возвращает самую свежую действующую ссылку.
func (r *ShareRepository) GetActiveForProposal(ctx context.Context, proposalID uuid.UUID) (*models.SecureShare, error) {
	query := `
		SELECT ` + shareColumns + `
		FROM secure_proposal_shares
		WHERE proposal_id = $1 AND is_active AND expires_at > NOW()
		ORDER BY expires_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, proposalID)
}

func (r *ShareRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.SecureShare, error) {
	var s models.SecureShare
	if err := r.db.GetContext(ctx, &s, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("share repository: get %w", err)
	}
	return &s, nil
}

// ListByProposal возвращает все ссылки предложения.
func (r *ShareRepository) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.SecureShare, error) {
	query := `SELECT ` + shareColumns + ` FROM secure_proposal_shares WHERE proposal_id = $1 ORDER BY created_at DESC`

	var shares []models.SecureShare
	if err := r.db.SelectContext(ctx, &shares, query, proposalID); err != nil {
		return nil, fmt.Errorf("share repository: list %w", err)
	}
	return shares, nil
}

// Revoke отключает ссылку.
func (r *ShareRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE secure_proposal_shares SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("share repository: revoke %w", err)
	}
	return expectRows(result, ErrShareNotFound)
}

// Extend переносит срок действия ссылки.
func (r *ShareRepository) Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE secure_proposal_shares SET expires_at = $2 WHERE id = $1`, id, expiresAt)
	if err != nil {
		return fmt.Errorf("share repository: extend %w", err)
	}
	return expectRows(result, ErrShareNotFound)
}

// RecordAccess увеличивает счётчик открытий.
func (r *ShareRepository) RecordAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE secure_proposal_shares SET access_count = access_count + 1, last_accessed_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("share repository: record access %w", err)
	}
	return expectRows(result, ErrShareNotFound)
}
