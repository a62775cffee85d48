package service

import (
	"net/url"

	"github.com/google/uuid"
)

// Links строит внешние ссылки для писем, документов и провайдеров оплаты.
type Links struct {
	AppURL string
	APIURL string
}

// Share ссылка на публичную страницу предложения.
func (l Links) Share(token string) string {
	return l.AppURL + "/p/" + url.PathEscape(token)
}

// Proposal ссылка на предложение в кабинете владельца.
func (l Links) Proposal(id uuid.UUID) string {
	return l.AppURL + "/proposals/" + id.String()
}

// Media прямая ссылка на загруженный файл.
func (l Links) Media(id uuid.UUID) string {
	return l.APIURL + "/api/media/" + id.String() + "/file"
}

// PaymentResult страница, на которую провайдер возвращает клиента.
func (l Links) PaymentResult(linkID uuid.UUID, outcome string) string {
	return l.AppURL + "/payments/" + outcome + "?link=" + linkID.String()
}

// Billing страница подписки в кабинете.
func (l Links) Billing(outcome string) string {
	return l.AppURL + "/settings/billing?checkout=" + outcome
}
