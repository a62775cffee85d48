package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/content"
	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/validation"
)

// shareTokenBytes длина токена ссылки до кодирования.
const shareTokenBytes = 32

// maxTimeSpentSeconds предел длительности одного события time_spent.
const maxTimeSpentSeconds = 24 * 60 * 60

// ShareRepository описывает хранилище публичных ссылок.
type ShareRepository interface {
	Create(ctx context.Context, s *models.SecureShare) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SecureShare, error)
	GetByToken(ctx context.Context, token string) (*models.SecureShare, error)
	GetActiveForProposal(ctx context.Context, proposalID uuid.UUID) (*models.SecureShare, error)
	ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.SecureShare, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	RecordAccess(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ShareProposalStore часть хранилища предложений, нужная ссылкам.
type ShareProposalStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	MarkViewed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// SharedProposal предложение, открытое по действующей ссылке.
type SharedProposal struct {
	Share    *models.SecureShare
	Proposal *models.Proposal
}

// PublicSigner подписант без персональных данных.
type PublicSigner struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Role          *string    `json:"role,omitempty"`
	Signed        bool       `json:"signed"`
	SignedAt      *time.Time `json:"signed_at,omitempty"`
	SignatureType *string    `json:"signature_type,omitempty"`
	TypedName     *string    `json:"typed_name,omitempty"`
	HasImage      bool       `json:"has_image"`
}

// PublicPaymentLink действующая ссылка на оплату.
type PublicPaymentLink struct {
	ID       uuid.UUID `json:"id"`
	Provider string    `json:"provider"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	URL      string    `json:"url"`
}

// PublicProposal то, что видит клиент по ссылке.
type PublicProposal struct {
	ID            uuid.UUID           `json:"id"`
	Title         string              `json:"title"`
	ClientName    *string             `json:"client_name,omitempty"`
	ClientCompany *string             `json:"client_company,omitempty"`
	Status        string              `json:"status"`
	Currency      string              `json:"currency"`
	TotalAmount   float64             `json:"total_amount"`
	ValidUntil    *time.Time          `json:"valid_until,omitempty"`
	Theme         models.Theme        `json:"theme"`
	Sections      []content.Section   `json:"sections"`
	Signers       []PublicSigner      `json:"signers"`
	PaymentLinks  []PublicPaymentLink `json:"payment_links"`
	ExpiresAt     time.Time           `json:"expires_at"`
}

// TrackEventInput событие, присланное страницей клиента.
type TrackEventInput struct {
	EventType       string
	Section         *string
	DurationSeconds *int
}

// ShareService управляет публичными ссылками на предложения.
type ShareService struct {
	repo       ShareRepository
	proposals  ShareProposalStore
	signers    SignerLister
	payments   PaymentLinkLister
	documents  *DocumentBuilder
	events     EventRecorder
	defaultTTL time.Duration
	maxTTL     time.Duration
	hub        Notifier
	dispatcher EventDispatcher
	cache      *CacheService
	now        func() time.Time
}

// NewShareService создаёт сервис ссылок.
func NewShareService(
	repo ShareRepository,
	proposals ShareProposalStore,
	signers SignerLister,
	payments PaymentLinkLister,
	documents *DocumentBuilder,
	events EventRecorder,
	defaultTTL, maxTTL time.Duration,
) *ShareService {
	return &ShareService{
		repo:       repo,
		proposals:  proposals,
		signers:    signers,
		payments:   payments,
		documents:  documents,
		events:     events,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
		now:        time.Now,
	}
}

// SetHub устанавливает WebSocket hub для уведомлений владельца.
func (s *ShareService) SetHub(hub Notifier) { s.hub = hub }

// SetDispatcher подключает исходящие вебхуки.
func (s *ShareService) SetDispatcher(d EventDispatcher) { s.dispatcher = d }

// SetCache подключает кэш дашборда.
func (s *ShareService) SetCache(c *CacheService) { s.cache = c }

// Create выпускает новую ссылку на предложение.
func (s *ShareService) Create(ctx context.Context, proposalID, userID uuid.UUID, ttl time.Duration) (*models.SecureShare, error) {
	p, err := loadOwnedProposal(ctx, s.proposals, proposalID, userID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.ProposalStatusArchived {
		return nil, apperror.ErrStatusTransition
	}
	return s.issue(ctx, p, ttl)
}

// EnsureActive возвращает действующую ссылку или выпускает новую со сроком по умолчанию.
func (s *ShareService) EnsureActive(ctx context.Context, p *models.Proposal) (*models.SecureShare, error) {
	share, err := s.repo.GetActiveForProposal(ctx, p.ID)
	if err == nil {
		return share, nil
	}
	if !errors.Is(err, repository.ErrShareNotFound) {
		return nil, apperror.Internal(err)
	}
	return s.issue(ctx, p, 0)
}

// List возвращает все ссылки предложения.
func (s *ShareService) List(ctx context.Context, proposalID, userID uuid.UUID) ([]models.SecureShare, error) {
	if _, err := loadOwnedProposal(ctx, s.proposals, proposalID, userID); err != nil {
		return nil, err
	}
	shares, err := s.repo.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return shares, nil
}

// Revoke отключает ссылку.
func (s *ShareService) Revoke(ctx context.Context, shareID, userID uuid.UUID) error {
	share, err := s.getOwned(ctx, shareID, userID)
	if err != nil {
		return err
	}
	return mapRepoErr(s.repo.Revoke(ctx, share.ID), repository.ErrShareNotFound, apperror.ErrShareNotFound)
}

// Extend продлевает ссылку на ttl от текущего момента.
func (s *ShareService) Extend(ctx context.Context, shareID, userID uuid.UUID, ttl time.Duration) (*models.SecureShare, error) {
	share, err := s.getOwned(ctx, shareID, userID)
	if err != nil {
		return nil, err
	}
	if !share.IsActive {
		return nil, apperror.ErrShareNotFound
	}

	expiresAt := s.now().Add(s.clampTTL(ttl))
	if err := s.repo.Extend(ctx, share.ID, expiresAt); err != nil {
		return nil, mapRepoErr(err, repository.ErrShareNotFound, apperror.ErrShareNotFound)
	}
	share.ExpiresAt = expiresAt
	return share, nil
}

// Lookup проверяет токен без учёта просмотра.
// Неизвестная или отозванная ссылка даёт 404, истёкшая 410.
func (s *ShareService) Lookup(ctx context.Context, token string) (*SharedProposal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.ErrShareNotFound
	}

	share, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrShareNotFound, apperror.ErrShareNotFound)
	}
	if !share.IsActive {
		return nil, apperror.ErrShareNotFound
	}
	if share.IsExpired(s.now()) {
		return nil, apperror.ErrShareExpired
	}

	p, err := s.proposals.GetByID(ctx, share.ProposalID)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrProposalNotFound, apperror.ErrShareNotFound)
	}
	if p.Status == models.ProposalStatusArchived {
		return nil, apperror.ErrShareNotFound
	}

	return &SharedProposal{Share: share, Proposal: p}, nil
}

// Resolve открывает предложение по ссылке и фиксирует просмотр.
func (s *ShareService) Resolve(ctx context.Context, token string, meta ViewerMeta) (*SharedProposal, error) {
	shared, err := s.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.RecordAccess(ctx, shared.Share.ID, now); err != nil {
		return nil, mapRepoErr(err, repository.ErrShareNotFound, apperror.ErrShareNotFound)
	}
	shared.Share.AccessCount++
	shared.Share.LastAccessedAt = &now

	shareID := shared.Share.ID
	recordEvent(ctx, s.events, &models.ProposalAnalyticsEvent{
		ProposalID: shared.Proposal.ID,
		ShareID:    &shareID,
		EventType:  models.AnalyticsEventView,
	}, meta)

	changed, err := s.proposals.MarkViewed(ctx, shared.Proposal.ID, now)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"proposal_id": shared.Proposal.ID,
		}).WithError(err).Warn("share service: не удалось отметить просмотр")
		return shared, nil
	}
	if changed {
		p := shared.Proposal
		p.Status = models.ProposalStatusViewed
		if p.ViewedAt == nil {
			p.ViewedAt = &now
		}
		if s.cache != nil {
			s.cache.InvalidateUserCache(p.UserID)
		}

		payload := map[string]any{
			"proposal_id": p.ID,
			"title":       p.Title,
			"viewed_at":   now,
		}
		notify(s.hub, p.UserID, models.WSEventProposalViewed, payload)
		dispatch(ctx, s.dispatcher, p.UserID, models.WebhookEventProposalViewed, payload)
	}

	return shared, nil
}

// PublicView возвращает данные предложения для страницы клиента.
func (s *ShareService) PublicView(ctx context.Context, token string, meta ViewerMeta) (*PublicProposal, error) {
	shared, err := s.Resolve(ctx, token, meta)
	if err != nil {
		return nil, err
	}
	p := shared.Proposal

	sections, err := content.Normalize(p.Content)
	if err != nil {
		sections = []content.Section{}
	}

	view := &PublicProposal{
		ID:            p.ID,
		Title:         p.Title,
		ClientName:    p.ClientName,
		ClientCompany: p.ClientCompany,
		Status:        p.Status,
		Currency:      p.Currency,
		TotalAmount:   p.TotalAmount,
		ValidUntil:    p.ValidUntil,
		Theme:         p.Theme,
		Sections:      sections,
		Signers:       []PublicSigner{},
		PaymentLinks:  []PublicPaymentLink{},
		ExpiresAt:     shared.Share.ExpiresAt,
	}

	signers, err := s.signers.ListByProposal(ctx, p.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	for _, sg := range signers {
		view.Signers = append(view.Signers, PublicSigner{
			ID:            sg.ID,
			Name:          sg.SignerName,
			Role:          sg.SignerRole,
			Signed:        sg.IsSigned(),
			SignedAt:      sg.SignedAt,
			SignatureType: sg.SignatureType,
			TypedName:     sg.TypedName,
			HasImage:      sg.HasImage(),
		})
	}

	if s.payments != nil {
		links, err := s.payments.ListByProposal(ctx, p.ID)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		for _, l := range links {
			if l.Status != models.PaymentLinkStatusPending || l.URL == nil {
				continue
			}
			view.PaymentLinks = append(view.PaymentLinks, PublicPaymentLink{
				ID:       l.ID,
				Provider: l.Provider,
				Amount:   l.Amount,
				Currency: l.Currency,
				URL:      *l.URL,
			})
		}
	}

	return view, nil
}

// RenderHTML открывает предложение по ссылке и возвращает HTML страницу.
func (s *ShareService) RenderHTML(ctx context.Context, token string, meta ViewerMeta) (string, error) {
	shared, err := s.Resolve(ctx, token, meta)
	if err != nil {
		return "", err
	}
	return s.documents.Render(ctx, shared.Proposal)
}

// Export отдаёт клиенту HTML для скачивания. Скачивание считается просмотром.
func (s *ShareService) Export(ctx context.Context, token string, meta ViewerMeta) (string, string, error) {
	shared, err := s.Resolve(ctx, token, meta)
	if err != nil {
		return "", "", err
	}

	html, err := s.documents.Render(ctx, shared.Proposal)
	if err != nil {
		return "", "", err
	}

	shareID := shared.Share.ID
	recordEvent(ctx, s.events, &models.ProposalAnalyticsEvent{
		ProposalID: shared.Proposal.ID,
		ShareID:    &shareID,
		EventType:  models.AnalyticsEventDownload,
	}, meta)

	return html, exportFilename(shared.Proposal), nil
}

// TrackEvent сохраняет событие просмотра секции или времени на странице.
func (s *ShareService) TrackEvent(ctx context.Context, token string, in TrackEventInput, meta ViewerMeta) error {
	if _, ok := models.PublicAnalyticsEvents[in.EventType]; !ok {
		return apperror.Validation("неизвестный тип события")
	}

	e := &models.ProposalAnalyticsEvent{EventType: in.EventType}
	switch in.EventType {
	case models.AnalyticsEventSectionView:
		section := optionalString(in.Section)
		if section == nil {
			return apperror.Validation("section обязателен для section_view")
		}
		if err := validation.ValidateLength("section", *section, 1, 100); err != nil {
			return apperror.Validation(err.Error())
		}
		e.Section = section
	case models.AnalyticsEventTimeSpent:
		if in.DurationSeconds == nil || *in.DurationSeconds <= 0 || *in.DurationSeconds > maxTimeSpentSeconds {
			return apperror.Validation("duration_seconds должен быть от 1 до 86400")
		}
		e.DurationSeconds = in.DurationSeconds
		e.Section = optionalString(in.Section)
	}

	shared, err := s.Lookup(ctx, token)
	if err != nil {
		return err
	}
	shareID := shared.Share.ID
	e.ProposalID = shared.Proposal.ID
	e.ShareID = &shareID
	e.IPAddress = optionalString(&meta.IP)
	e.UserAgent = optionalString(&meta.UserAgent)

	if err := s.events.Record(ctx, e); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func (s *ShareService) issue(ctx context.Context, p *models.Proposal, ttl time.Duration) (*models.SecureShare, error) {
	token, err := randomToken(shareTokenBytes)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	share := &models.SecureShare{
		ProposalID: p.ID,
		Token:      token,
		CreatedBy:  p.UserID,
		ExpiresAt:  s.now().Add(s.clampTTL(ttl)),
		IsActive:   true,
	}
	if err := s.repo.Create(ctx, share); err != nil {
		return nil, apperror.Internal(err)
	}
	return share, nil
}

// clampTTL подставляет срок по умолчанию и ограничивает максимальный.
func (s *ShareService) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if s.maxTTL > 0 && ttl > s.maxTTL {
		ttl = s.maxTTL
	}
	return ttl
}

func (s *ShareService) getOwned(ctx context.Context, shareID, userID uuid.UUID) (*models.SecureShare, error) {
	share, err := s.repo.GetByID(ctx, shareID)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrShareNotFound, apperror.ErrShareNotFound)
	}
	if _, err := loadOwnedProposal(ctx, s.proposals, share.ProposalID, userID); err != nil {
		return nil, apperror.ErrShareNotFound
	}
	return share, nil
}
