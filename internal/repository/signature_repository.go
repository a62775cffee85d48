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

var (
	// ErrSignerNotFound возвращается, когда подписант не найден.
	ErrSignerNotFound = errors.New("signer not found")
	// ErrSignerAlreadySigned возвращается при повторной подписи или удалении подписавшего.
	ErrSignerAlreadySigned = errors.New("signer already signed")
)

// SignatureRepository работает с таблицей proposal_signatures.
type SignatureRepository struct {
	db *sqlx.DB
}

// NewSignatureRepository создаёт экземпляр репозитория.
func NewSignatureRepository(db *sqlx.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

const signatureColumns = `id, proposal_id, signer_name, signer_email, signer_role, sort_order, signature_type,
	signature_path, typed_name, signed_at, ip_address, user_agent, created_at`

// Create добавляет подписанта в конец списка.
func (r *SignatureRepository) Create(ctx context.Context, s *models.ProposalSignature) error {
	query := `
		INSERT INTO proposal_signatures (proposal_id, signer_name, signer_email, signer_role, sort_order)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(sort_order) + 1, 0) FROM proposal_signatures WHERE proposal_id = $1))
		RETURNING id, sort_order, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		s.ProposalID, s.SignerName, s.SignerEmail, s.SignerRole,
	).Scan(&s.ID, &s.SortOrder, &s.CreatedAt); err != nil {
		return fmt.Errorf("signature repository: create %w", err)
	}

	return nil
}

// GetByID возвращает подписанта.
func (r *SignatureRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProposalSignature, error) {
	var s models.ProposalSignature
	query := `SELECT ` + signatureColumns + ` FROM proposal_signatures WHERE id = $1`
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSignerNotFound
		}
		return nil, fmt.Errorf("signature repository: get by id %w", err)
	}

	return &s, nil
}

// ListByProposal возвращает подписантов в порядке подписи.
func (r *SignatureRepository) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.ProposalSignature, error) {
	query := `SELECT ` + signatureColumns + ` FROM proposal_signatures WHERE proposal_id = $1 ORDER BY sort_order, created_at`

	var signers []models.ProposalSignature
	if err := r.db.SelectContext(ctx, &signers, query, proposalID); err != nil {
		return nil, fmt.Errorf("signature repository: list %w", err)
	}

	return signers, nil
}

// Sign сохраняет подпись. Повторная подпись возвращает ErrSignerAlreadySigned.
func (r *SignatureRepository) Sign(ctx context.Context, s *models.ProposalSignature) error {
	query := `
		UPDATE proposal_signatures
		SET signature_type = $2, signature_path = $3, typed_name = $4, signed_at = $5, ip_address = $6, user_agent = $7
		WHERE id = $1 AND signed_at IS NULL
	`

	result, err := r.db.ExecContext(
		ctx, query,
		s.ID, s.SignatureType, s.SignaturePath, s.TypedName, s.SignedAt, s.IPAddress, s.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("signature repository: sign %w", err)
	}

	return expectRows(result, ErrSignerAlreadySigned)
}

// CountPending возвращает число подписантов без подписи.
func (r *SignatureRepository) CountPending(ctx context.Context, proposalID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM proposal_signatures WHERE proposal_id = $1 AND signed_at IS NULL`
	if err := r.db.GetContext(ctx, &count, query, proposalID); err != nil {
		return 0, fmt.Errorf("signature repository: count pending %w", err)
	}
	return count, nil
}

// Delete удаляет подписанта, если он ещё не подписал.
func (r *SignatureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM proposal_signatures WHERE id = $1 AND signed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("signature repository: delete %w", err)
	}
	return expectRows(result, ErrSignerAlreadySigned)
}
