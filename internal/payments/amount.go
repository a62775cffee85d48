package payments

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNotConfigured провайдер не настроен.
	ErrNotConfigured = errors.New("payments: провайдер не настроен")
	// ErrProvider провайдер вернул ошибку.
	ErrProvider = errors.New("payments: ошибка провайдера")
	// ErrInvalidSignature подпись вебхука не прошла проверку.
	ErrInvalidSignature = errors.New("payments: неверная подпись вебхука")
)

// Валюты без дробной части.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {},
	"MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {},
	"XOF": {}, "XPF": {},
}

func isZeroDecimal(currency string) bool {
	_, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]
	return ok
}

// MinorUnits переводит сумму в минимальные единицы валюты.
func MinorUnits(amount float64, currency string) int64 {
	if isZeroDecimal(currency) {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}

// FromMinorUnits переводит минимальные единицы обратно в сумму.
func FromMinorUnits(units int64, currency string) float64 {
	if isZeroDecimal(currency) {
		return float64(units)
	}
	return float64(units) / 100
}

// DecimalString форматирует сумму для PayPal.
func DecimalString(amount float64, currency string) string {
	if isZeroDecimal(currency) {
		return strconv.FormatFloat(math.Round(amount), 'f', 0, 64)
	}
	return strconv.FormatFloat(math.Round(amount*100)/100, 'f', 2, 64)
}

// Checkout результат создания сессии оплаты у провайдера.
type Checkout struct {
	ExternalID string
	URL        string
}

// PaymentRequest параметры оплаты предложения.
type PaymentRequest struct {
	LinkID      string
	ProposalID  string
	Description string
	Amount      float64
	Currency    string
	ClientEmail string
	SuccessURL  string
	CancelURL   string
}

// SubscriptionRequest параметры оформления подписки.
type SubscriptionRequest struct {
	UserID     string
	Email      string
	SuccessURL string
	CancelURL  string
}
