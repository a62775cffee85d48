package models

import (
	"time"

	"github.com/google/uuid"
)

// ProposalSignature описывает подписанта предложения и его подпись.
type ProposalSignature struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ProposalID    uuid.UUID  `db:"proposal_id" json:"proposal_id"`
	SignerName    string     `db:"signer_name" json:"signer_name"`
	SignerEmail   *string    `db:"signer_email" json:"signer_email,omitempty"`
	SignerRole    *string    `db:"signer_role" json:"signer_role,omitempty"`
	SortOrder     int        `db:"sort_order" json:"sort_order"`
	SignatureType *string    `db:"signature_type" json:"signature_type,omitempty"`
	SignaturePath *string    `db:"signature_path" json:"-"`
	TypedName     *string    `db:"typed_name" json:"typed_name,omitempty"`
	SignedAt      *time.Time `db:"signed_at" json:"signed_at,omitempty"`
	IPAddress     *string    `db:"ip_address" json:"-"`
	UserAgent     *string    `db:"user_agent" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// IsSigned сообщает, поставлена ли подпись.
func (s *ProposalSignature) IsSigned() bool {
	return s.SignedAt != nil
}

// HasImage сообщает, сохранено ли изображение подписи.
func (s *ProposalSignature) HasImage() bool {
	return s.SignaturePath != nil && *s.SignaturePath != ""
}
