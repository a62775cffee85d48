package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-studio/internal/content"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/validation"
)

// BrandKitRepository описывает хранилище бренд-китов.
type BrandKitRepository interface {
	Create(ctx context.Context, kit *models.BrandKit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BrandKit, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.BrandKit, error)
	Update(ctx context.Context, kit *models.BrandKit) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// BrandKitInput поля бренд-кита. Для обновления nil означает "не менять".
type BrandKitInput struct {
	Name            *string
	PrimaryColor    *string
	SecondaryColor  *string
	AccentColor     *string
	TextColor       *string
	BackgroundColor *string
	HeadingFont     *string
	BodyFont        *string
	LogoMediaID     *uuid.UUID
	ClearLogo       bool
	IsDefault       *bool
}

// BrandKitService управляет бренд-китами пользователя.
type BrandKitService struct {
	repo  BrandKitRepository
	media MediaLookup
}

// NewBrandKitService создаёт сервис бренд-китов.
func NewBrandKitService(repo BrandKitRepository, media MediaLookup) *BrandKitService {
	return &BrandKitService{repo: repo, media: media}
}

// Create создаёт бренд-кит, пустые цвета и шрифты берутся из темы по умолчанию.
func (s *BrandKitService) Create(ctx context.Context, userID uuid.UUID, in BrandKitInput) (*models.BrandKit, error) {
	def := content.DefaultTheme
	kit := &models.BrandKit{
		UserID:          userID,
		PrimaryColor:    def.PrimaryColor,
		SecondaryColor:  def.SecondaryColor,
		AccentColor:     def.AccentColor,
		TextColor:       def.TextColor,
		BackgroundColor: def.BackgroundColor,
		HeadingFont:     def.HeadingFont,
		BodyFont:        def.BodyFont,
	}
	if in.Name == nil {
		return nil, apperror.Validation("name обязателен")
	}

	if err := s.apply(ctx, kit, in); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, kit); err != nil {
		return nil, apperror.Internal(err)
	}
	return kit, nil
}

// List возвращает бренд-киты пользователя.
func (s *BrandKitService) List(ctx context.Context, userID uuid.UUID) ([]models.BrandKit, error) {
	kits, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if kits == nil {
		kits = []models.BrandKit{}
	}
	return kits, nil
}

// Get возвращает бренд-кит владельца.
func (s *BrandKitService) Get(ctx context.Context, id, userID uuid.UUID) (*models.BrandKit, error) {
	kit, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrBrandKitNotFound, apperror.ErrBrandKitNotFound)
	}
	if kit.UserID != userID {
		return nil, apperror.ErrBrandKitNotFound
	}
	return kit, nil
}

// Update частично обновляет бренд-кит.
func (s *BrandKitService) Update(ctx context.Context, id, userID uuid.UUID, in BrandKitInput) (*models.BrandKit, error) {
	kit, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if err := s.apply(ctx, kit, in); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, kit); err != nil {
		return nil, mapRepoErr(err, repository.ErrBrandKitNotFound, apperror.ErrBrandKitNotFound)
	}
	return kit, nil
}

// Delete удаляет бренд-кит. Предложения сохраняют скопированную тему.
func (s *BrandKitService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoErr(err, repository.ErrBrandKitNotFound, apperror.ErrBrandKitNotFound)
	}
	return nil
}

func (s *BrandKitService) apply(ctx context.Context, kit *models.BrandKit, in BrandKitInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validation.ValidateLength("name", name, 1, validation.MaxBrandKitNameLength); err != nil {
			return apperror.Validation(err.Error())
		}
		kit.Name = name
	}

	colors := []struct {
		field string
		value *string
		dst   *string
	}{
		{"primary_color", in.PrimaryColor, &kit.PrimaryColor},
		{"secondary_color", in.SecondaryColor, &kit.SecondaryColor},
		{"accent_color", in.AccentColor, &kit.AccentColor},
		{"text_color", in.TextColor, &kit.TextColor},
		{"background_color", in.BackgroundColor, &kit.BackgroundColor},
	}
	for _, c := range colors {
		if c.value == nil {
			continue
		}
		v := strings.TrimSpace(*c.value)
		if err := validation.ValidateHexColor(c.field, v); err != nil {
			return apperror.Validation(err.Error())
		}
		*c.dst = strings.ToLower(v)
	}

	fonts := []struct {
		field string
		value *string
		dst   *string
	}{
		{"heading_font", in.HeadingFont, &kit.HeadingFont},
		{"body_font", in.BodyFont, &kit.BodyFont},
	}
	for _, f := range fonts {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if err := validation.ValidateFont(f.field, v); err != nil {
			return apperror.Validation(err.Error())
		}
		*f.dst = v
	}

	switch {
	case in.ClearLogo:
		kit.LogoMediaID = nil
	case in.LogoMediaID != nil:
		if err := ensureOwnedMedia(ctx, s.media, in.LogoMediaID, kit.UserID); err != nil {
			return err
		}
		kit.LogoMediaID = in.LogoMediaID
	}

	if in.IsDefault != nil {
		kit.IsDefault = *in.IsDefault
	}
	return nil
}
