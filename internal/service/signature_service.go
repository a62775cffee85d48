package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/mailer"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/storage"
	"github.com/ignatzorin/proposal-studio/internal/telemetry"
	"github.com/ignatzorin/proposal-studio/internal/validation"
)

// SignatureRepository описывает хранилище подписантов.
type SignatureRepository interface {
	Create(ctx context.Context, s *models.ProposalSignature) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProposalSignature, error)
	ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.ProposalSignature, error)
	Sign(ctx context.Context, s *models.ProposalSignature) error
	CountPending(ctx context.Context, proposalID uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SignatureProposalStore часть хранилища предложений, нужная подписям.
type SignatureProposalStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	MarkSigned(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// ShareResolver проверяет публичный токен.
type ShareResolver interface {
	Lookup(ctx context.Context, token string) (*SharedProposal, error)
}

// SignerInput данные нового подписанта.
type SignerInput struct {
	Name  string
	Email *string
	Role  *string
}

// SignInput подпись рисунком (data URL) или введённым именем.
type SignInput struct {
	SignatureImage string
	TypedName      string
}

// SignResult итог подписания.
type SignResult struct {
	Signer    *models.ProposalSignature `json:"signer"`
	AllSigned bool                      `json:"all_signed"`
}

// SignatureService управляет подписантами и электронными подписями.
type SignatureService struct {
	repo       SignatureRepository
	proposals  SignatureProposalStore
	shares     ShareResolver
	blobs      storage.Storage
	profiles   ProfileLookup
	links      Links
	events     EventRecorder
	mailer     mailer.Mailer
	hub        Notifier
	dispatcher EventDispatcher
	cache      *CacheService
	now        func() time.Time
}

// NewSignatureService создаёт сервис подписей.
func NewSignatureService(
	repo SignatureRepository,
	proposals SignatureProposalStore,
	shares ShareResolver,
	blobs storage.Storage,
	profiles ProfileLookup,
	links Links,
) *SignatureService {
	return &SignatureService{
		repo:      repo,
		proposals: proposals,
		shares:    shares,
		blobs:     blobs,
		profiles:  profiles,
		links:     links,
		mailer:    mailer.LogMailer{},
		now:       time.Now,
	}
}

// SetEvents подключает запись аналитики.
func (s *SignatureService) SetEvents(events EventRecorder) { s.events = events }

// SetMailer подключает отправку писем.
func (s *SignatureService) SetMailer(m mailer.Mailer) { s.mailer = m }

// SetHub устанавливает WebSocket hub для уведомлений владельца.
func (s *SignatureService) SetHub(hub Notifier) { s.hub = hub }

// SetDispatcher подключает исходящие вебхуки.
func (s *SignatureService) SetDispatcher(d EventDispatcher) { s.dispatcher = d }

// SetCache подключает кэш дашборда.
func (s *SignatureService) SetCache(c *CacheService) { s.cache = c }

// AddSigner добавляет подписанта в конец списка.
func (s *SignatureService) AddSigner(ctx context.Context, proposalID, userID uuid.UUID, in SignerInput) (*models.ProposalSignature, error) {
	p, err := loadOwnedProposal(ctx, s.proposals, proposalID, userID)
	if err != nil {
		return nil, err
	}
	if isLocked(p.Status) {
		return nil, apperror.ErrProposalLocked
	}

	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateSignerName(name); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	email := normalizeEmail(in.Email)
	if err := validation.ValidateOptionalEmail(email); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidateOptionalText("роль подписанта", in.Role, validation.MaxSignerNameLength); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	signer := &models.ProposalSignature{
		ProposalID:  proposalID,
		SignerName:  name,
		SignerEmail: email,
		SignerRole:  optionalString(in.Role),
	}
	if err := s.repo.Create(ctx, signer); err != nil {
		return nil, apperror.Internal(err)
	}
	return signer, nil
}

// ListSigners возвращает подписантов предложения.
func (s *SignatureService) ListSigners(ctx context.Context, proposalID, userID uuid.UUID) ([]models.ProposalSignature, error) {
	if _, err := loadOwnedProposal(ctx, s.proposals, proposalID, userID); err != nil {
		return nil, err
	}
	signers, err := s.repo.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if signers == nil {
		signers = []models.ProposalSignature{}
	}
	return signers, nil
}

// RemoveSigner удаляет подписанта, который ещё не подписал.
func (s *SignatureService) RemoveSigner(ctx context.Context, proposalID, signerID, userID uuid.UUID) error {
	p, err := loadOwnedProposal(ctx, s.proposals, proposalID, userID)
	if err != nil {
		return err
	}
	if isLocked(p.Status) {
		return apperror.ErrProposalLocked
	}

	signer, err := s.signerOf(ctx, proposalID, signerID)
	if err != nil {
		return err
	}
	if signer.IsSigned() {
		return apperror.ErrAlreadySigned
	}

	if err := s.repo.Delete(ctx, signer.ID); err != nil {
		return mapRepoErr(err, repository.ErrSignerAlreadySigned, apperror.ErrAlreadySigned)
	}
	return nil
}

// Sign сохраняет подпись клиента, открывшего предложение по ссылке.
func (s *SignatureService) Sign(ctx context.Context, token string, signerID uuid.UUID, in SignInput, meta ViewerMeta) (*SignResult, error) {
	shared, err := s.shares.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	p := shared.Proposal

	switch p.Status {
	case models.ProposalStatusDeclined, models.ProposalStatusPaid:
		return nil, apperror.ErrStatusTransition
	}

	signer, err := s.signerOf(ctx, p.ID, signerID)
	if err != nil {
		return nil, err
	}
	if signer.IsSigned() {
		return nil, apperror.ErrAlreadySigned
	}

	now := s.now()
	signer.SignedAt = &now
	signer.IPAddress = optionalString(&meta.IP)
	signer.UserAgent = optionalString(&meta.UserAgent)

	switch {
	case strings.TrimSpace(in.SignatureImage) != "":
		data, err := decodeSignatureImage(in.SignatureImage)
		if err != nil {
			return nil, err
		}
		_, ext, err := storage.DetectImage(data, storage.MIMEPNG, storage.MIMEJPEG)
		if err != nil {
			return nil, apperror.Validation("подпись должна быть изображением PNG или JPEG")
		}

		key, _, err := s.blobs.Save(ctx, p.UserID, "signature"+ext, bytes.NewReader(data))
		if err != nil {
			return nil, apperror.Internal(err)
		}
		sigType := models.SignatureTypeDrawn
		signer.SignatureType = &sigType
		signer.SignaturePath = &key
		if typed := strings.TrimSpace(in.TypedName); typed != "" {
			if err := validation.ValidateTypedName(typed); err != nil {
				s.discardImage(ctx, key)
				return nil, apperror.Validation(err.Error())
			}
			signer.TypedName = &typed
		}
	case strings.TrimSpace(in.TypedName) != "":
		typed := strings.TrimSpace(in.TypedName)
		if err := validation.ValidateTypedName(typed); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		sigType := models.SignatureTypeTyped
		signer.SignatureType = &sigType
		signer.TypedName = &typed
	default:
		return nil, apperror.Validation("нужна подпись: signature_image или typed_name")
	}

	if err := s.repo.Sign(ctx, signer); err != nil {
		if signer.SignaturePath != nil {
			s.discardImage(ctx, *signer.SignaturePath)
		}
		return nil, mapRepoErr(err, repository.ErrSignerAlreadySigned, apperror.ErrAlreadySigned)
	}

	shareID := shared.Share.ID
	recordEvent(ctx, s.events, &models.ProposalAnalyticsEvent{
		ProposalID: p.ID,
		ShareID:    &shareID,
		EventType:  models.AnalyticsEventSign,
	}, meta)

	notify(s.hub, p.UserID, models.WSEventSignerSigned, map[string]any{
		"proposal_id": p.ID,
		"signer_id":   signer.ID,
		"signer_name": signer.SignerName,
		"signed_at":   now,
	})

	pending, err := s.repo.CountPending(ctx, p.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	allSigned := false
	if pending == 0 {
		changed, err := s.proposals.MarkSigned(ctx, p.ID, now)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		if changed {
			allSigned = true
			p.Status = models.ProposalStatusSigned
			p.SignedAt = &now
			if s.cache != nil {
				s.cache.InvalidateUserCache(p.UserID)
			}

			payload := map[string]any{
				"proposal_id": p.ID,
				"title":       p.Title,
				"signed_at":   now,
			}
			notify(s.hub, p.UserID, models.WSEventProposalSigned, payload)
			dispatch(ctx, s.dispatcher, p.UserID, models.WebhookEventProposalSigned, payload)
		}
	}

	s.mailOwner(ctx, p, signer.SignerName, allSigned)

	return &SignResult{Signer: signer, AllSigned: allSigned}, nil
}

// OwnerSignatureImage отдаёт владельцу изображение подписи.
func (s *SignatureService) OwnerSignatureImage(ctx context.Context, proposalID, signerID, userID uuid.UUID) ([]byte, string, error) {
	if _, err := loadOwnedProposal(ctx, s.proposals, proposalID, userID); err != nil {
		return nil, "", err
	}
	return s.image(ctx, proposalID, signerID)
}

// SharedSignatureImage отдаёт изображение подписи по публичной ссылке.
func (s *SignatureService) SharedSignatureImage(ctx context.Context, token string, signerID uuid.UUID) ([]byte, string, error) {
	shared, err := s.shares.Lookup(ctx, token)
	if err != nil {
		return nil, "", err
	}
	return s.image(ctx, shared.Proposal.ID, signerID)
}

func (s *SignatureService) image(ctx context.Context, proposalID, signerID uuid.UUID) ([]byte, string, error) {
	signer, err := s.signerOf(ctx, proposalID, signerID)
	if err != nil {
		return nil, "", err
	}
	if !signer.HasImage() {
		return nil, "", apperror.New(apperror.ErrCodeNotFound, "изображение подписи не найдено")
	}

	data, mime, err := loadSignatureImage(ctx, s.blobs, *signer.SignaturePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", apperror.New(apperror.ErrCodeNotFound, "изображение подписи не найдено")
		}
		return nil, "", apperror.Internal(err)
	}
	return data, mime, nil
}

// signerOf возвращает подписанта, если он относится к предложению.
func (s *SignatureService) signerOf(ctx context.Context, proposalID, signerID uuid.UUID) (*models.ProposalSignature, error) {
	signer, err := s.repo.GetByID(ctx, signerID)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrSignerNotFound, apperror.ErrSignerNotFound)
	}
	if signer.ProposalID != proposalID {
		return nil, apperror.ErrSignerNotFound
	}
	return signer, nil
}

func (s *SignatureService) mailOwner(ctx context.Context, p *models.Proposal, signerName string, allSigned bool) {
	if s.profiles == nil {
		return
	}
	owner, err := s.profiles.GetByID(ctx, p.UserID)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"proposal_id": p.ID,
		}).WithError(err).Warn("signature service: владелец не найден")
		return
	}

	ownerName := owner.Username
	if profile, err := s.profiles.GetProfile(ctx, p.UserID); err == nil && profile.DisplayName != "" {
		ownerName = profile.DisplayName
	}

	msg, err := mailer.SignatureCompletedMessage(owner.Email, mailer.SignatureCompleted{
		OwnerName:     ownerName,
		ProposalTitle: p.Title,
		SignerName:    signerName,
		AllSigned:     allSigned,
		ProposalURL:   s.links.Proposal(p.ID),
	})
	if err != nil {
		logger.Log.WithError(err).Error("signature service: не удалось собрать письмо")
		return
	}

	ctx, span := telemetry.StartSpan(ctx, "signature.notify_owner")
	err = s.mailer.Send(ctx, msg)
	telemetry.EndSpan(span, err)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"proposal_id": p.ID,
			"user_id":     p.UserID,
		}).WithError(err).Warn("signature service: не удалось отправить письмо владельцу")
	}
}

func (s *SignatureService) discardImage(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		logger.Log.WithField("key", key).WithError(err).Warn("signature service: не удалось удалить изображение подписи")
	}
}

// decodeSignatureImage разбирает data URL вида data:image/png;base64,....
func decodeSignatureImage(dataURL string) ([]byte, error) {
	dataURL = strings.TrimSpace(dataURL)
	const prefix = "data:"
	if !strings.HasPrefix(dataURL, prefix) {
		return nil, apperror.Validation("signature_image должен быть data URL")
	}

	meta, payload, ok := strings.Cut(dataURL[len(prefix):], ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, apperror.Validation("signature_image должен быть закодирован в base64")
	}

	// оценка размера до декодирования
	if base64.StdEncoding.DecodedLen(len(payload)) > maxSignatureImageBytes+2 {
		return nil, apperror.ErrFileTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperror.Validation("signature_image содержит некорректный base64")
	}
	if len(data) == 0 {
		return nil, apperror.Validation("signature_image пуст")
	}
	if len(data) > maxSignatureImageBytes {
		return nil, apperror.ErrFileTooLarge
	}
	return data, nil
}
