package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/content"
	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/storage"
)

// maxSignatureImageBytes предел размера изображения подписи.
const maxSignatureImageBytes = 1 << 20

// SignerLister возвращает подписантов предложения.
type SignerLister interface {
	ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.ProposalSignature, error)
}

// PaymentLinkLister возвращает платёжные ссылки предложения.
type PaymentLinkLister interface {
	ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.PaymentLink, error)
}

// ProfileLookup даёт доступ к владельцу и его реквизитам.
type ProfileLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

// BlobOpener читает сохранённые файлы.
type BlobOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DocumentBuilder собирает HTML документ предложения вместе с подписями.
type DocumentBuilder struct {
	renderer *content.Renderer
	signers  SignerLister
	payments PaymentLinkLister
	profiles ProfileLookup
	blobs    BlobOpener
}

// NewDocumentBuilder создаёт сборщик документов.
func NewDocumentBuilder(renderer *content.Renderer, signers SignerLister, payments PaymentLinkLister, profiles ProfileLookup, blobs BlobOpener) *DocumentBuilder {
	return &DocumentBuilder{
		renderer: renderer,
		signers:  signers,
		payments: payments,
		profiles: profiles,
		blobs:    blobs,
	}
}

// Render возвращает автономный HTML предложения.
func (b *DocumentBuilder) Render(ctx context.Context, p *models.Proposal) (string, error) {
	doc, err := b.Build(ctx, p)
	if err != nil {
		return "", err
	}

	html, err := b.renderer.Render(doc)
	if err != nil {
		return "", apperror.Internal(err)
	}
	return html, nil
}

// Build собирает content.Document из предложения.
func (b *DocumentBuilder) Build(ctx context.Context, p *models.Proposal) (content.Document, error) {
	sections, err := content.Normalize(p.Content)
	if err != nil {
		// содержимое проверяется при записи, сюда попадают только старые данные
		logger.Log.WithFields(logrus.Fields{
			"proposal_id": p.ID,
		}).WithError(err).Warn("document: не удалось разобрать содержимое предложения")
		sections = nil
	}

	doc := content.Document{
		Title:         p.Title,
		ClientName:    derefString(p.ClientName),
		ClientCompany: derefString(p.ClientCompany),
		Currency:      p.Currency,
		ValidUntil:    p.ValidUntil,
		Theme:         p.Theme,
		Sections:      sections,
	}

	if b.profiles != nil {
		if profile, err := b.profiles.GetProfile(ctx, p.UserID); err == nil {
			doc.CompanyName = derefString(profile.CompanyName)
			if doc.CompanyName == "" {
				doc.CompanyName = profile.DisplayName
			}
		}
	}

	if b.signers != nil {
		signers, err := b.signers.ListByProposal(ctx, p.ID)
		if err != nil {
			return content.Document{}, apperror.Internal(err)
		}
		for _, s := range signers {
			doc.Signers = append(doc.Signers, b.signer(ctx, s))
		}
	}

	if b.payments != nil {
		links, err := b.payments.ListByProposal(ctx, p.ID)
		if err != nil {
			return content.Document{}, apperror.Internal(err)
		}
		for _, l := range links {
			if l.Status == models.PaymentLinkStatusPending && l.URL != nil {
				doc.PaymentURL = *l.URL
				break
			}
		}
	}

	return doc, nil
}

func (b *DocumentBuilder) signer(ctx context.Context, s models.ProposalSignature) content.Signer {
	out := content.Signer{
		Name:      s.SignerName,
		Role:      derefString(s.SignerRole),
		Signed:    s.IsSigned(),
		SignedAt:  s.SignedAt,
		TypedName: derefString(s.TypedName),
	}

	if s.HasImage() && b.blobs != nil {
		data, mime, err := loadSignatureImage(ctx, b.blobs, *s.SignaturePath)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{
				"signer_id": s.ID,
			}).WithError(err).Warn("document: не удалось загрузить изображение подписи")
			return out
		}
		out.ImageData = data
		out.ImageMIME = mime
	}
	return out
}

// loadSignatureImage читает изображение подписи и проверяет его тип.
func loadSignatureImage(ctx context.Context, blobs BlobOpener, key string) ([]byte, string, error) {
	rc, err := blobs.Open(ctx, key)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxSignatureImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("чтение подписи: %w", err)
	}
	if len(data) > maxSignatureImageBytes {
		return nil, "", storage.ErrTooLarge
	}

	mime, _, err := storage.DetectImage(data, storage.MIMEPNG, storage.MIMEJPEG)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}
