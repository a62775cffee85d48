package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/content"
	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/mailer"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/telemetry"
	"github.com/ignatzorin/proposal-studio/internal/validation"
)

// ProposalRepository описывает хранилище предложений.
type ProposalRepository interface {
	Create(ctx context.Context, p *models.Proposal) error
	CreateWithSigners(ctx context.Context, p *models.Proposal, signers []models.ProposalSignature) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	List(ctx context.Context, userID uuid.UUID, filter models.ProposalFilter) ([]models.Proposal, int, error)
	Update(ctx context.Context, p *models.Proposal) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountActive(ctx context.Context, userID uuid.UUID) (int, error)
}

// TemplateLookup нужен для создания предложения из шаблона.
type TemplateLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProposalTemplate, error)
}

// BrandKitLookup нужен для применения бренд-кита.
type BrandKitLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.BrandKit, error)
	GetDefault(ctx context.Context, userID uuid.UUID) (*models.BrandKit, error)
}

// ShareIssuer выдаёт действующую ссылку для отправки клиенту.
type ShareIssuer interface {
	EnsureActive(ctx context.Context, p *models.Proposal) (*models.SecureShare, error)
}

// EventRecorder сохраняет события аналитики.
type EventRecorder interface {
	Record(ctx context.Context, e *models.ProposalAnalyticsEvent) error
}

// CreateProposalInput данные нового предложения.
type CreateProposalInput struct {
	Title         string
	ClientName    *string
	ClientEmail   *string
	ClientCompany *string
	Content       json.RawMessage
	Theme         *models.Theme
	Currency      string
	ValidUntil    *time.Time
	TemplateID    *uuid.UUID
	BrandKitID    *uuid.UUID
}

// UpdateProposalInput изменения предложения. nil означает «не менять».
type UpdateProposalInput struct {
	Title         *string
	ClientName    *string
	ClientEmail   *string
	ClientCompany *string
	Content       json.RawMessage
	Theme         *models.Theme
	Currency      *string
	ValidUntil    *time.Time
}

// SendProposalInput параметры отправки предложения клиенту.
type SendProposalInput struct {
	Message string
}

// SendResult итог отправки.
type SendResult struct {
	Proposal *models.Proposal   `json:"proposal"`
	Share    *models.SecureShare `json:"share"`
	ShareURL string             `json:"share_url"`
}

// ViewerMeta сведения о клиенте, открывшем документ.
type ViewerMeta struct {
	IP        string
	UserAgent string
}

// ProposalService содержит бизнес-логику работы с предложениями.
type ProposalService struct {
	repo          ProposalRepository
	signers       SignerLister
	templates     TemplateLookup
	brandKits     BrandKitLookup
	profiles      ProfileLookup
	documents     *DocumentBuilder
	links         Links
	freeLimit     int
	shares        ShareIssuer
	events        EventRecorder
	mailer        mailer.Mailer
	subscriptions SubscriptionChecker
	dispatcher    EventDispatcher
	cache         *CacheService
	now           func() time.Time
}

// NewProposalService создаёт сервис предложений.
func NewProposalService(
	repo ProposalRepository,
	signers SignerLister,
	templates TemplateLookup,
	brandKits BrandKitLookup,
	profiles ProfileLookup,
	documents *DocumentBuilder,
	links Links,
	freeLimit int,
) *ProposalService {
	return &ProposalService{
		repo:      repo,
		signers:   signers,
		templates: templates,
		brandKits: brandKits,
		profiles:  profiles,
		documents: documents,
		links:     links,
		freeLimit: freeLimit,
		mailer:    mailer.LogMailer{},
		now:       time.Now,
	}
}

// SetShares подключает выдачу публичных ссылок.
func (s *ProposalService) SetShares(shares ShareIssuer) { s.shares = shares }

// SetEvents подключает запись аналитики.
func (s *ProposalService) SetEvents(events EventRecorder) { s.events = events }

// SetMailer подключает отправку писем.
func (s *ProposalService) SetMailer(m mailer.Mailer) { s.mailer = m }

// SetSubscriptions подключает проверку тарифа.
func (s *ProposalService) SetSubscriptions(c SubscriptionChecker) { s.subscriptions = c }

// SetDispatcher подключает исходящие вебхуки.
func (s *ProposalService) SetDispatcher(d EventDispatcher) { s.dispatcher = d }

// SetCache подключает кэш дашборда.
func (s *ProposalService) SetCache(c *CacheService) { s.cache = c }

// Create создаёт черновик предложения.
func (s *ProposalService) Create(ctx context.Context, userID uuid.UUID, in CreateProposalInput) (*models.Proposal, error) {
	title := strings.TrimSpace(in.Title)
	if err := validation.ValidateProposalTitle(title); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := validateClientFields(in.ClientName, in.ClientEmail, in.ClientCompany); err != nil {
		return nil, err
	}

	if err := s.checkPlanLimit(ctx, userID); err != nil {
		return nil, err
	}

	p := &models.Proposal{
		UserID:        userID,
		Title:         title,
		ClientName:    optionalString(in.ClientName),
		ClientEmail:   normalizeEmail(in.ClientEmail),
		ClientCompany: optionalString(in.ClientCompany),
		Status:        models.ProposalStatusDraft,
		ValidUntil:    in.ValidUntil,
	}

	if in.TemplateID != nil {
		if s.templates == nil {
			return nil, apperror.ErrTemplateNotFound
		}
		tpl, err := s.templates.GetByID(ctx, *in.TemplateID)
		if err != nil {
			return nil, mapRepoErr(err, repository.ErrTemplateNotFound, apperror.ErrTemplateNotFound)
		}
		if !tpl.IsSystem && (tpl.UserID == nil || *tpl.UserID != userID) {
			return nil, apperror.ErrTemplateNotFound
		}
		p.Content = tpl.Content
		p.Theme = tpl.Theme
	}

	if len(in.Content) > 0 {
		p.Content = in.Content
	}
	if in.Theme != nil {
		if err := validateTheme(*in.Theme); err != nil {
			return nil, err
		}
		p.Theme = *in.Theme
	}

	total, err := totalFromContent(p.Content)
	if err != nil {
		return nil, err
	}
	p.TotalAmount = total

	currency, err := s.resolveCurrency(ctx, userID, in.Currency)
	if err != nil {
		return nil, err
	}
	p.Currency = currency

	kit, err := s.resolveBrandKit(ctx, userID, in.BrandKitID)
	if err != nil {
		return nil, err
	}
	if kit != nil {
		s.applyKit(p, kit)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, apperror.Internal(err)
	}

	s.invalidate(userID)
	return p, nil
}

// Get возвращает предложение владельца.
func (s *ProposalService) Get(ctx context.Context, id, userID uuid.UUID) (*models.Proposal, error) {
	return s.getOwned(ctx, id, userID)
}

// Sections возвращает нормализованные секции предложения.
func (s *ProposalService) Sections(p *models.Proposal) []content.Section {
	sections, err := content.Normalize(p.Content)
	if err != nil {
		return []content.Section{}
	}
	return sections
}

// List возвращает предложения пользователя и общее количество.
func (s *ProposalService) List(ctx context.Context, userID uuid.UUID, filter models.ProposalFilter) ([]models.Proposal, int, error) {
	if filter.Status != "" {
		if _, ok := models.ValidProposalStatuses[filter.Status]; !ok {
			return nil, 0, apperror.Validation("неизвестный статус предложения")
		}
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset, 20, 100)

	items, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return items, total, nil
}

// Update меняет поля предложения и пересчитывает сумму.
func (s *ProposalService) Update(ctx context.Context, id, userID uuid.UUID, in UpdateProposalInput) (*models.Proposal, error) {
	p, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if isLocked(p.Status) {
		return nil, apperror.ErrProposalLocked
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validation.ValidateProposalTitle(title); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		p.Title = title
	}
	if err := validateClientFields(in.ClientName, in.ClientEmail, in.ClientCompany); err != nil {
		return nil, err
	}
	if in.ClientName != nil {
		p.ClientName = optionalString(in.ClientName)
	}
	if in.ClientEmail != nil {
		p.ClientEmail = normalizeEmail(in.ClientEmail)
	}
	if in.ClientCompany != nil {
		p.ClientCompany = optionalString(in.ClientCompany)
	}
	if in.Content != nil {
		total, err := totalFromContent(in.Content)
		if err != nil {
			return nil, err
		}
		p.Content = in.Content
		p.TotalAmount = total
	}
	if in.Theme != nil {
		if err := validateTheme(*in.Theme); err != nil {
			return nil, err
		}
		p.Theme = *in.Theme
		p.BrandKitID = nil
	}
	if in.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*in.Currency))
		if err := validation.ValidateCurrency(currency); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		p.Currency = currency
	}
	if in.ValidUntil != nil {
		p.ValidUntil = in.ValidUntil
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, mapRepoErr(err, repository.ErrProposalNotFound, apperror.ErrProposalNotFound)
	}

	s.invalidate(userID)
	return p, nil
}

// Delete удаляет предложение.
func (s *ProposalService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.getOwned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoErr(err, repository.ErrProposalNotFound, apperror.ErrProposalNotFound)
	}
	s.invalidate(userID)
	return nil
}

// Duplicate создаёт черновик-копию вместе с подписантами без подписей.
func (s *ProposalService) Duplicate(ctx context.Context, id, userID uuid.UUID) (*models.Proposal, error) {
	src, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPlanLimit(ctx, userID); err != nil {
		return nil, err
	}

	signers, err := s.signers.ListByProposal(ctx, src.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	copies := make([]models.ProposalSignature, 0, len(signers))
	for i, sg := range signers {
		copies = append(copies, models.ProposalSignature{
			SignerName:  sg.SignerName,
			SignerEmail: sg.SignerEmail,
			SignerRole:  sg.SignerRole,
			SortOrder:   i,
		})
	}

	dup := &models.Proposal{
		UserID:        userID,
		Title:         copyTitle(src.Title),
		ClientName:    src.ClientName,
		ClientEmail:   src.ClientEmail,
		ClientCompany: src.ClientCompany,
		Status:        models.ProposalStatusDraft,
		Content:       src.Content,
		Theme:         src.Theme,
		BrandKitID:    src.BrandKitID,
		Currency:      src.Currency,
		TotalAmount:   src.TotalAmount,
		ValidUntil:    src.ValidUntil,
	}

	if err := s.repo.CreateWithSigners(ctx, dup, copies); err != nil {
		return nil, apperror.Internal(err)
	}

	s.invalidate(userID)
	return dup, nil
}

// UpdateStatus выставляет статус, доступный владельцу.
func (s *ProposalService) UpdateStatus(ctx context.Context, id, userID uuid.UUID, status string) (*models.Proposal, error) {
	if _, ok := models.OwnerSettableStatuses[status]; !ok {
		return nil, apperror.Validation("статус можно сменить только на draft, declined или archived")
	}

	p, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if p.Status == status {
		return p, nil
	}
	if !canTransition(p.Status, status) {
		return nil, apperror.ErrStatusTransition
	}
	// Возврат из архива снова занимает место в лимите тарифа.
	if p.Status == models.ProposalStatusArchived {
		if err := s.checkPlanLimit(ctx, userID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, mapRepoErr(err, repository.ErrProposalNotFound, apperror.ErrProposalNotFound)
	}
	p.Status = status

	s.invalidate(userID)
	return p, nil
}

// ApplyBrandKit копирует оформление бренд-кита в предложение.
func (s *ProposalService) ApplyBrandKit(ctx context.Context, id, userID, kitID uuid.UUID) (*models.Proposal, error) {
	p, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if isLocked(p.Status) {
		return nil, apperror.ErrProposalLocked
	}

	kit, err := s.resolveBrandKit(ctx, userID, &kitID)
	if err != nil {
		return nil, err
	}
	s.applyKit(p, kit)

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, mapRepoErr(err, repository.ErrProposalNotFound, apperror.ErrProposalNotFound)
	}
	return p, nil
}

// Send отправляет клиенту письмо со ссылкой на предложение.
func (s *ProposalService) Send(ctx context.Context, id, userID uuid.UUID, in SendProposalInput) (*SendResult, error) {
	p, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if p.ClientEmail == nil || *p.ClientEmail == "" {
		return nil, apperror.Validation("укажите email клиента перед отправкой")
	}
	switch p.Status {
	case models.ProposalStatusArchived, models.ProposalStatusDeclined, models.ProposalStatusPaid:
		return nil, apperror.ErrStatusTransition
	}
	if s.shares == nil {
		return nil, apperror.Internal(errors.New("proposal service: выдача ссылок не подключена"))
	}

	share, err := s.shares.EnsureActive(ctx, p)
	if err != nil {
		return nil, err
	}
	shareURL := s.links.Share(share.Token)

	senderName, replyTo := s.sender(ctx, userID)
	msg, err := mailer.ProposalDeliveryMessage(*p.ClientEmail, replyTo, mailer.ProposalDelivery{
		ClientName:    derefString(p.ClientName),
		SenderName:    senderName,
		ProposalTitle: p.Title,
		ShareURL:      shareURL,
		Message:       strings.TrimSpace(in.Message),
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}

	ctx, span := telemetry.StartSpan(ctx, "proposal.send_email")
	err = s.mailer.Send(ctx, msg)
	telemetry.EndSpan(span, err)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"proposal_id": p.ID,
			"user_id":     userID,
		}).WithError(err).Error("proposal service: не удалось отправить письмо клиенту")
		return nil, apperror.Wrap(err, apperror.ErrCodeBadGateway, apperror.ErrMailDelivery.Message)
	}

	now := s.now()
	if err := s.repo.MarkSent(ctx, p.ID, now); err != nil {
		return nil, mapRepoErr(err, repository.ErrProposalNotFound, apperror.ErrProposalNotFound)
	}
	if p.Status == models.ProposalStatusDraft {
		p.Status = models.ProposalStatusSent
	}
	p.SentAt = &now

	s.invalidate(userID)
	dispatch(ctx, s.dispatcher, userID, models.WebhookEventProposalSent, map[string]any{
		"proposal_id":  p.ID,
		"title":        p.Title,
		"client_email": *p.ClientEmail,
		"share_url":    shareURL,
		"sent_at":      now,
	})

	return &SendResult{Proposal: p, Share: share, ShareURL: shareURL}, nil
}

// Export отдаёт владельцу автономный HTML и фиксирует скачивание.
func (s *ProposalService) Export(ctx context.Context, id, userID uuid.UUID, meta ViewerMeta) (string, string, error) {
	p, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return "", "", err
	}

	html, err := s.documents.Render(ctx, p)
	if err != nil {
		return "", "", err
	}

	recordEvent(ctx, s.events, &models.ProposalAnalyticsEvent{
		ProposalID: p.ID,
		EventType:  models.AnalyticsEventDownload,
	}, meta)

	return html, exportFilename(p), nil
}

func (s *ProposalService) getOwned(ctx context.Context, id, userID uuid.UUID) (*models.Proposal, error) {
	return loadOwnedProposal(ctx, s.repo, id, userID)
}

// ProposalReader читает предложение по идентификатору.
type ProposalReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
}

// loadOwnedProposal возвращает предложение, если оно принадлежит пользователю.
// Чужое предложение неотличимо от отсутствующего.
func loadOwnedProposal(ctx context.Context, repo ProposalReader, id, userID uuid.UUID) (*models.Proposal, error) {
	p, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrProposalNotFound, apperror.ErrProposalNotFound)
	}
	if p.UserID != userID {
		return nil, apperror.ErrProposalNotFound
	}
	return p, nil
}

func (s *ProposalService) checkPlanLimit(ctx context.Context, userID uuid.UUID) error {
	if s.freeLimit <= 0 {
		return nil
	}
	if s.subscriptions != nil {
		active, err := s.subscriptions.HasActiveSubscription(ctx, userID)
		if err != nil {
			return apperror.Internal(err)
		}
		if active {
			return nil
		}
	}

	count, err := s.repo.CountActive(ctx, userID)
	if err != nil {
		return apperror.Internal(err)
	}
	if count >= s.freeLimit {
		return apperror.ErrPlanLimitReached
	}
	return nil
}

func (s *ProposalService) resolveCurrency(ctx context.Context, userID uuid.UUID, requested string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(requested))
	if currency == "" && s.profiles != nil {
		if profile, err := s.profiles.GetProfile(ctx, userID); err == nil {
			currency = profile.DefaultCurrency
		}
	}
	if currency == "" {
		currency = "USD"
	}
	if err := validation.ValidateCurrency(currency); err != nil {
		return "", apperror.Validation(err.Error())
	}
	return currency, nil
}

// resolveBrandKit возвращает указанный кит или кит по умолчанию.
func (s *ProposalService) resolveBrandKit(ctx context.Context, userID uuid.UUID, kitID *uuid.UUID) (*models.BrandKit, error) {
	if s.brandKits == nil {
		return nil, nil
	}
	if kitID == nil {
		kit, err := s.brandKits.GetDefault(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrBrandKitNotFound) {
				return nil, nil
			}
			return nil, apperror.Internal(err)
		}
		return kit, nil
	}

	kit, err := s.brandKits.GetByID(ctx, *kitID)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrBrandKitNotFound, apperror.ErrBrandKitNotFound)
	}
	if kit.UserID != userID {
		return nil, apperror.ErrBrandKitNotFound
	}
	return kit, nil
}

func (s *ProposalService) applyKit(p *models.Proposal, kit *models.BrandKit) {
	logoURL := ""
	if kit.LogoMediaID != nil {
		logoURL = s.links.Media(*kit.LogoMediaID)
	}
	p.Theme = kit.Theme(logoURL)
	id := kit.ID
	p.BrandKitID = &id
}

// sender возвращает имя отправителя и адрес для ответа.
func (s *ProposalService) sender(ctx context.Context, userID uuid.UUID) (string, string) {
	if s.profiles == nil {
		return "", ""
	}
	var name, email string
	if user, err := s.profiles.GetByID(ctx, userID); err == nil {
		email = user.Email
		name = user.Username
	}
	if profile, err := s.profiles.GetProfile(ctx, userID); err == nil {
		if company := derefString(profile.CompanyName); company != "" {
			name = company
		} else if profile.DisplayName != "" {
			name = profile.DisplayName
		}
	}
	return name, email
}

func (s *ProposalService) invalidate(userID uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateUserCache(userID)
	}
}

// recordEvent сохраняет событие аналитики, ошибки только логируются.
func recordEvent(ctx context.Context, rec EventRecorder, e *models.ProposalAnalyticsEvent, meta ViewerMeta) {
	if rec == nil {
		return
	}
	e.IPAddress = optionalString(&meta.IP)
	e.UserAgent = optionalString(&meta.UserAgent)
	if err := rec.Record(ctx, e); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"proposal_id": e.ProposalID,
			"event":       e.EventType,
		}).WithError(err).Warn("не удалось записать событие аналитики")
	}
}

// totalFromContent проверяет формат содержимого и считает итог по ценовым секциям.
func totalFromContent(raw json.RawMessage) (float64, error) {
	sections, err := content.Normalize(raw)
	if err != nil {
		return 0, apperror.Validation("содержимое должно быть массивом секций или объектом")
	}
	return content.TotalAmount(sections), nil
}

func validateClientFields(name, email, company *string) error {
	if err := validation.ValidateOptionalText("имя клиента", name, validation.MaxClientFieldLength); err != nil {
		return apperror.Validation(err.Error())
	}
	if err := validation.ValidateOptionalText("компания клиента", company, validation.MaxClientFieldLength); err != nil {
		return apperror.Validation(err.Error())
	}
	if email != nil {
		normalized := normalizeEmail(email)
		if err := validation.ValidateOptionalEmail(normalized); err != nil {
			return apperror.Validation(err.Error())
		}
	}
	return nil
}

func validateTheme(t models.Theme) error {
	colors := map[string]string{
		"primary_color":    t.PrimaryColor,
		"secondary_color":  t.SecondaryColor,
		"accent_color":     t.AccentColor,
		"text_color":       t.TextColor,
		"background_color": t.BackgroundColor,
	}
	for field, c := range colors {
		if c == "" {
			continue
		}
		if err := validation.ValidateHexColor(field, c); err != nil {
			return apperror.Validation(err.Error())
		}
	}
	for field, f := range map[string]string{"heading_font": t.HeadingFont, "body_font": t.BodyFont} {
		if f == "" {
			continue
		}
		if err := validation.ValidateFont(field, f); err != nil {
			return apperror.Validation(err.Error())
		}
	}
	if t.LogoURL != "" {
		if err := validation.ValidateURL("logo_url", t.LogoURL, false); err != nil {
			return apperror.Validation(err.Error())
		}
	}
	return nil
}

func normalizeEmail(email *string) *string {
	v := optionalString(email)
	if v == nil {
		return nil
	}
	lower := strings.ToLower(*v)
	return &lower
}

// isLocked сообщает, что содержимое предложения больше нельзя менять.
func isLocked(status string) bool {
	return status == models.ProposalStatusSigned || status == models.ProposalStatusPaid
}

// canTransition проверяет ручную смену статуса владельцем.
func canTransition(from, to string) bool {
	if from == models.ProposalStatusPaid {
		return false
	}
	switch to {
	case models.ProposalStatusDeclined, models.ProposalStatusArchived:
		return true
	case models.ProposalStatusDraft:
		return from == models.ProposalStatusDeclined || from == models.ProposalStatusArchived
	}
	return false
}

func copyTitle(title string) string {
	out := "Copy of " + title
	if utf8.RuneCountInString(out) > validation.MaxProposalTitleLength {
		runes := []rune(out)
		out = string(runes[:validation.MaxProposalTitleLength])
	}
	return out
}

func exportFilename(p *models.Proposal) string {
	return fmt.Sprintf("proposal-%s.html", p.ID.String()[:8])
}
