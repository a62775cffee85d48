package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/repository/common"
)

// ErrTemplateNotFound возвращается, когда шаблон не найден.
var ErrTemplateNotFound = errors.New("template not found")

// ProposalTemplateRepository работает с таблицей proposal_templates.
type ProposalTemplateRepository struct {
	db *sqlx.DB
}

// NewProposalTemplateRepository создаёт экземпляр репозитория.
func NewProposalTemplateRepository(db *sqlx.DB) *ProposalTemplateRepository {
	return &ProposalTemplateRepository{db: db}
}

// Create сохраняет пользовательский шаблон.
func (r *ProposalTemplateRepository) Create(ctx context.Context, t *models.ProposalTemplate) error {
	query := `
		INSERT INTO proposal_templates (user_id, name, description, category, content, theme, is_system)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		t.UserID, t.Name, t.Description, t.Category, jsonOrEmptyArray(t.Content), t.Theme,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("template repository: create %w", err)
	}
	return nil
}

// UpsertSystem создаёт или обновляет системный шаблон по имени.
// Возвращает true, если шаблон был создан.
func (r *ProposalTemplateRepository) UpsertSystem(ctx context.Context, t *models.ProposalTemplate) (bool, error) {
	query := `
		INSERT INTO proposal_templates (user_id, name, description, category, content, theme, is_system)
		VALUES (NULL, $1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (name) WHERE is_system DO UPDATE
		SET description = EXCLUDED.description,
			category = EXCLUDED.category,
			content = EXCLUDED.content,
			theme = EXCLUDED.theme,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`
	var inserted bool
	if err := r.db.QueryRowxContext(
		ctx, query,
		t.Name, t.Description, t.Category, jsonOrEmptyArray(t.Content), t.Theme,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt, &inserted); err != nil {
		return false, fmt.Errorf("template repository: upsert system %w", err)
	}
	t.IsSystem = true
	return inserted, nil
}

// GetByID возвращает шаблон.
func (r *ProposalTemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProposalTemplate, error) {
	return common.GetByID[models.ProposalTemplate](ctx, r.db, "proposal_templates", id, ErrTemplateNotFound)
}

// ListAvailable возвращает системные шаблоны и шаблоны пользователя.
func (r *ProposalTemplateRepository) ListAvailable(ctx context.Context, userID uuid.UUID, category string) ([]models.ProposalTemplate, error) {
	query := `SELECT * FROM proposal_templates WHERE (is_system OR user_id = $1)`
	args := []interface{}{userID}
	if category != "" {
		query += ` AND category = $2`
		args = append(args, category)
	}
	query += ` ORDER BY is_system DESC, name`

	templates := []models.ProposalTemplate{}
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, fmt.Errorf("template repository: list %w", err)
	}
	return templates, nil
}

// Delete удаляет пользовательский шаблон.
func (r *ProposalTemplateRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM proposal_templates WHERE id = $1 AND user_id = $2 AND NOT is_system`, id, userID)
	if err != nil {
		return fmt.Errorf("template repository: delete %w", err)
	}
	return expectRows(result, ErrTemplateNotFound)
}
