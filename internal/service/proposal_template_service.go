package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/validation"
)

const (
	defaultTemplateCategory = "general"
	maxCategoryLength       = 50
	templatesCacheTTL       = 5 * time.Minute
)

// ProposalTemplateRepository описывает хранилище шаблонов.
type ProposalTemplateRepository interface {
	Create(ctx context.Context, t *models.ProposalTemplate) error
	UpsertSystem(ctx context.Context, t *models.ProposalTemplate) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProposalTemplate, error)
	ListAvailable(ctx context.Context, userID uuid.UUID, category string) ([]models.ProposalTemplate, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// CreateTemplateInput параметры нового шаблона. Если задан FromProposalID,
// содержимое и тема копируются из предложения.
type CreateTemplateInput struct {
	Name           string
	Description    *string
	Category       string
	Content        json.RawMessage
	Theme          *models.Theme
	FromProposalID *uuid.UUID
}

// ProposalTemplateService управляет системными и пользовательскими шаблонами.
type ProposalTemplateService struct {
	repo      ProposalTemplateRepository
	proposals ProposalReader
	cache     *CacheService
}

// NewProposalTemplateService создаёт сервис шаблонов.
func NewProposalTemplateService(repo ProposalTemplateRepository, proposals ProposalReader, cache *CacheService) *ProposalTemplateService {
	return &ProposalTemplateService{repo: repo, proposals: proposals, cache: cache}
}

// List возвращает системные шаблоны и шаблоны пользователя.
func (s *ProposalTemplateService) List(ctx context.Context, userID uuid.UUID, category string) ([]models.ProposalTemplate, error) {
	category = strings.TrimSpace(category)
	load := func() (any, error) {
		return s.repo.ListAvailable(ctx, userID, category)
	}

	if s.cache == nil {
		templates, err := load()
		if err != nil {
			return nil, apperror.Internal(err)
		}
		return templates.([]models.ProposalTemplate), nil
	}

	value, err := s.cache.GetOrSet(ctx, TemplatesCacheKey(userID, category), templatesCacheTTL, load)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return value.([]models.ProposalTemplate), nil
}

// Get возвращает системный шаблон или шаблон владельца.
func (s *ProposalTemplateService) Get(ctx context.Context, id, userID uuid.UUID) (*models.ProposalTemplate, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrTemplateNotFound, apperror.ErrTemplateNotFound)
	}
	if !t.IsSystem && (t.UserID == nil || *t.UserID != userID) {
		return nil, apperror.ErrTemplateNotFound
	}
	return t, nil
}

// Create сохраняет пользовательский шаблон.
func (s *ProposalTemplateService) Create(ctx context.Context, userID uuid.UUID, in CreateTemplateInput) (*models.ProposalTemplate, error) {
	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateLength("name", name, 1, validation.MaxTemplateNameLength); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidateOptionalText("description", in.Description, validation.MaxCompanyFieldLength); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	category := strings.ToLower(strings.TrimSpace(in.Category))
	if category == "" {
		category = defaultTemplateCategory
	}
	if err := validation.ValidateLength("category", category, 1, maxCategoryLength); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	owner := userID
	t := &models.ProposalTemplate{
		UserID:      &owner,
		Name:        name,
		Description: optionalString(in.Description),
		Category:    category,
		Content:     in.Content,
	}

	if in.FromProposalID != nil {
		p, err := loadOwnedProposal(ctx, s.proposals, *in.FromProposalID, userID)
		if err != nil {
			return nil, err
		}
		t.Content = p.Content
		t.Theme = p.Theme
	} else if in.Theme != nil {
		if err := validateTheme(*in.Theme); err != nil {
			return nil, err
		}
		t.Theme = *in.Theme
	}

	if _, err := totalFromContent(t.Content); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, apperror.Internal(err)
	}
	s.invalidate(userID)
	return t, nil
}

// Delete удаляет пользовательский шаблон. Системные шаблоны удалить нельзя.
func (s *ProposalTemplateService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	t, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if t.IsSystem {
		return apperror.New(apperror.ErrCodeForbidden, "системный шаблон нельзя удалить")
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return mapRepoErr(err, repository.ErrTemplateNotFound, apperror.ErrTemplateNotFound)
	}
	s.invalidate(userID)
	return nil
}

func (s *ProposalTemplateService) invalidate(userID uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateByPrefix("templates:" + userID.String())
	}
}
