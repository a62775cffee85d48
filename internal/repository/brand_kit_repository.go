package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/repository/common"
)

// ErrBrandKitNotFound возвращается, когда бренд-кит не найден.
var ErrBrandKitNotFound = errors.New("brand kit not found")

// BrandKitRepository работает с таблицей brand_kits.
type BrandKitRepository struct {
	db *sqlx.DB
}

// NewBrandKitRepository создаёт экземпляр репозитория.
func NewBrandKitRepository(db *sqlx.DB) *BrandKitRepository {
	return &BrandKitRepository{db: db}
}

// Create сохраняет бренд-кит. Новый кит по умолчанию снимает флаг с предыдущего.
func (r *BrandKitRepository) Create(ctx context.Context, kit *models.BrandKit) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if kit.IsDefault {
			if err := clearDefaultBrandKit(ctx, tx, kit.UserID); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO brand_kits (user_id, name, primary_color, secondary_color, accent_color, text_color,
				background_color, heading_font, body_font, logo_media_id, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(
			ctx, query,
			kit.UserID, kit.Name, kit.PrimaryColor, kit.SecondaryColor, kit.AccentColor, kit.TextColor,
			kit.BackgroundColor, kit.HeadingFont, kit.BodyFont, kit.LogoMediaID, kit.IsDefault,
		).Scan(&kit.ID, &kit.CreatedAt, &kit.UpdatedAt); err != nil {
			return fmt.Errorf("brand kit repository: create %w", err)
		}
		return nil
	})
}

// GetByID возвращает бренд-кит.
func (r *BrandKitRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BrandKit, error) {
	return common.GetByID[models.BrandKit](ctx, r.db, "brand_kits", id, ErrBrandKitNotFound)
}

// GetDefault возвращает бренд-кит пользователя по умолчанию.
func (r *BrandKitRepository) GetDefault(ctx context.Context, userID uuid.UUID) (*models.BrandKit, error) {
	var kit models.BrandKit
	if err := r.db.GetContext(ctx, &kit, `SELECT * FROM brand_kits WHERE user_id = $1 AND is_default`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBrandKitNotFound
		}
		return nil, fmt.Errorf("brand kit repository: get default %w", err)
	}
	return &kit, nil
}

// ListByUser возвращает бренд-киты пользователя, кит по умолчанию первым.
func (r *BrandKitRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.BrandKit, error) {
	var kits []models.BrandKit
	query := `SELECT * FROM brand_kits WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`
	if err := r.db.SelectContext(ctx, &kits, query, userID); err != nil {
		return nil, fmt.Errorf("brand kit repository: list %w", err)
	}
	return kits, nil
}

// Update сохраняет изменения бренд-кита.
func (r *BrandKitRepository) Update(ctx context.Context, kit *models.BrandKit) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if kit.IsDefault {
			if err := clearDefaultBrandKit(ctx, tx, kit.UserID); err != nil {
				return err
			}
		}

		query := `
			UPDATE brand_kits
			SET name = $2, primary_color = $3, secondary_color = $4, accent_color = $5, text_color = $6,
				background_color = $7, heading_font = $8, body_font = $9, logo_media_id = $10, is_default = $11,
				updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`
		if err := tx.QueryRowxContext(
			ctx, query,
			kit.ID, kit.Name, kit.PrimaryColor, kit.SecondaryColor, kit.AccentColor, kit.TextColor,
			kit.BackgroundColor, kit.HeadingFont, kit.BodyFont, kit.LogoMediaID, kit.IsDefault,
		).Scan(&kit.UpdatedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBrandKitNotFound
			}
			return fmt.Errorf("brand kit repository: update %w", err)
		}
		return nil
	})
}

// Delete удаляет бренд-кит.
func (r *BrandKitRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM brand_kits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("brand kit repository: delete %w", err)
	}
	return expectRows(result, ErrBrandKitNotFound)
}

func clearDefaultBrandKit(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) error {
	query := `UPDATE brand_kits SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default`
	if _, err := tx.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("brand kit repository: clear default %w", err)
	}
	return nil
}
