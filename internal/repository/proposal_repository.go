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

// ErrProposalNotFound возвращается, когда предложение не найдено.
var ErrProposalNotFound = errors.New("proposal not found")

// ProposalRepository работает с таблицей proposals.
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository создаёт экземпляр репозитория.
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

const proposalColumns = `id, user_id, title, client_name, client_email, client_company, status, content, theme,
	brand_kit_id, currency, total_amount, valid_until, sent_at, viewed_at, signed_at, paid_at, created_at, updated_at`

// Create сохраняет новое предложение.
func (r *ProposalRepository) Create(ctx context.Context, p *models.Proposal) error {
	query := `
		INSERT INTO proposals (user_id, title, client_name, client_email, client_company, status, content, theme,
			brand_kit_id, currency, total_amount, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		p.UserID, p.Title, p.ClientName, p.ClientEmail, p.ClientCompany, p.Status, jsonOrEmptyArray(p.Content), p.Theme,
		p.BrandKitID, p.Currency, p.TotalAmount, p.ValidUntil,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("proposal repository: create %w", err)
	}

	return nil
}

// GetByID возвращает предложение по идентификатору.
func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	var p models.Proposal
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("proposal repository: get by id %w", err)
	}

	return &p, nil
}

// List возвращает предложения пользователя и их общее количество.
func (r *ProposalRepository) List(ctx context.Context, userID uuid.UUID, filter models.ProposalFilter) ([]models.Proposal, int, error) {
	where := ` WHERE user_id = $1`
	args := []interface{}{userID}
	argIndex := 2

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.Search != "" {
		where += fmt.Sprintf(" AND (title ILIKE $%d OR client_name ILIKE $%d OR client_company ILIKE $%d)", argIndex, argIndex, argIndex)
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM proposals`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("proposal repository: count %w", err)
	}

	query := `SELECT ` + proposalColumns + ` FROM proposals` + where +
		fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	var proposals []models.Proposal
	if err := r.db.SelectContext(ctx, &proposals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("proposal repository: list %w", err)
	}

	return proposals, total, nil
}

// Update сохраняет изменяемые владельцем поля.
func (r *ProposalRepository) Update(ctx context.Context, p *models.Proposal) error {
	query := `
		UPDATE proposals
		SET title = $2, client_name = $3, client_email = $4, client_company = $5, content = $6, theme = $7,
			brand_kit_id = $8, currency = $9, total_amount = $10, valid_until = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		p.ID, p.Title, p.ClientName, p.ClientEmail, p.ClientCompany, jsonOrEmptyArray(p.Content), p.Theme,
		p.BrandKitID, p.Currency, p.TotalAmount, p.ValidUntil,
	).Scan(&p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProposalNotFound
		}
		return fmt.Errorf("proposal repository: update %w", err)
	}

	return nil
}

// UpdateStatus выставляет статус без изменения временных меток жизненного цикла.
func (r *ProposalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE proposals SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("proposal repository: update status %w", err)
	}
	return expectRows(result, ErrProposalNotFound)
}

// MarkSent отмечает отправку. Статус меняется только у черновика.
func (r *ProposalRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE proposals
		SET status = CASE WHEN status = 'draft' THEN 'sent' ELSE status END,
			sent_at = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("proposal repository: mark sent %w", err)
	}
	return expectRows(result, ErrProposalNotFound)
}

// MarkViewed переводит отправленное предложение в статус viewed.
// Возвращает true, если статус изменился.
func (r *ProposalRepository) MarkViewed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE proposals
		SET status = 'viewed', viewed_at = COALESCE(viewed_at, $2), updated_at = NOW()
		WHERE id = $1 AND status = 'sent'
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("proposal repository: mark viewed %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("proposal repository: mark viewed rows affected %w", err)
	}
	return n > 0, nil
}

// MarkSigned переводит предложение в статус signed, если оно ещё не оплачено.
func (r *ProposalRepository) MarkSigned(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE proposals
		SET status = 'signed', signed_at = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'sent', 'viewed')
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("proposal repository: mark signed %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("proposal repository: mark signed rows affected %w", err)
	}
	return n > 0, nil
}

// Delete удаляет предложение вместе со ссылками, подписями и аналитикой.
func (r *ProposalRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM proposals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("proposal repository: delete %w", err)
	}
	return expectRows(result, ErrProposalNotFound)
}

// CountActive возвращает число неархивных предложений пользователя.
func (r *ProposalRepository) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM proposals WHERE user_id = $1 AND status <> 'archived'`
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("proposal repository: count active %w", err)
	}
	return count, nil
}

// StatusSummary возвращает количество и сумму предложений по статусам.
func (r *ProposalRepository) StatusSummary(ctx context.Context, userID uuid.UUID) ([]models.ProposalStatusCount, error) {
	query := `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount
		FROM proposals
		WHERE user_id = $1
		GROUP BY status
		ORDER BY status
	`

	var rows []models.ProposalStatusCount
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("proposal repository: status summary %w", err)
	}
	return rows, nil
}

// CreateWithSigners сохраняет предложение вместе с подписантами в одной транзакции.
func (r *ProposalRepository) CreateWithSigners(ctx context.Context, p *models.Proposal, signers []models.ProposalSignature) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO proposals (user_id, title, client_name, client_email, client_company, status, content, theme,
				brand_kit_id, currency, total_amount, valid_until)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(
			ctx, query,
			p.UserID, p.Title, p.ClientName, p.ClientEmail, p.ClientCompany, p.Status,
			jsonOrEmptyArray(p.Content), p.Theme, p.BrandKitID, p.Currency, p.TotalAmount, p.ValidUntil,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("proposal repository: create with signers %w", err)
		}

		if len(signers) == 0 {
			return nil
		}

		inserter := common.NewBatchInserter(tx,
			`INSERT INTO proposal_signatures (proposal_id, signer_name, signer_email, signer_role, sort_order)`,
			5, 100)
		for _, s := range signers {
			if err := inserter.Add(ctx, p.ID, s.SignerName, s.SignerEmail, s.SignerRole, s.SortOrder); err != nil {
				return fmt.Errorf("proposal repository: create signers %w", err)
			}
		}
		return inserter.Flush(ctx)
	})
}

// jsonOrEmptyArray отдаёт JSON строкой: lib/pq передаёт []byte как bytea.
func jsonOrEmptyArray(raw []byte) string {
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}

// expectRows превращает нулевое число затронутых строк в notFound.
func expectRows(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
