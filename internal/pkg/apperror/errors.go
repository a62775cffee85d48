package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeGone            ErrorCode = "GONE"
	ErrCodePaymentRequired ErrorCode = "PAYMENT_REQUIRED"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeBadGateway      ErrorCode = "BAD_GATEWAY"
	ErrCodeTooLarge        ErrorCode = "PAYLOAD_TOO_LARGE"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, чтобы errors.Is работал
// с предопределёнными ошибками даже после Wrap.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation короткий конструктор для ошибок валидации.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// Internal оборачивает неожиданную ошибку, скрывая детали от клиента.
func Internal(err error) *AppError {
	return Wrap(err, ErrCodeInternal, "внутренняя ошибка сервера")
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeGone:
		return http.StatusGone
	case ErrCodePaymentRequired:
		return http.StatusPaymentRequired
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeBadGateway:
		return http.StatusBadGateway
	case ErrCodeTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// As достаёт AppError из цепочки ошибок.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func HasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return HasCode(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return HasCode(err, ErrCodeValidation)
}

var (
	ErrProposalNotFound     = New(ErrCodeNotFound, "предложение не найдено")
	ErrShareNotFound        = New(ErrCodeNotFound, "ссылка не найдена")
	ErrShareExpired         = New(ErrCodeGone, "срок действия ссылки истёк")
	ErrSignerNotFound       = New(ErrCodeNotFound, "подписант не найден")
	ErrAlreadySigned        = New(ErrCodeConflict, "документ уже подписан")
	ErrBrandKitNotFound     = New(ErrCodeNotFound, "бренд-кит не найден")
	ErrWebhookNotFound      = New(ErrCodeNotFound, "вебхук не найден")
	ErrPaymentLinkNotFound  = New(ErrCodeNotFound, "платёжная ссылка не найдена")
	ErrTemplateNotFound     = New(ErrCodeNotFound, "шаблон не найден")
	ErrMediaNotFound        = New(ErrCodeNotFound, "файл не найден")
	ErrUserNotFound         = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden            = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials   = New(ErrCodeUnauthorized, "неверные учетные данные")
	ErrSubscriptionRequired = New(ErrCodePaymentRequired, "требуется платная подписка")
	ErrPlanLimitReached     = New(ErrCodePaymentRequired, "достигнут лимит бесплатного тарифа")
	ErrAIRateLimited        = New(ErrCodeRateLimited, "превышен лимит запросов к AI, попробуйте позже")
	ErrAICreditsExhausted   = New(ErrCodePaymentRequired, "закончились кредиты AI")
	ErrAIUnavailable        = New(ErrCodeBadGateway, "сервис AI недоступен")
	ErrProviderUnavailable  = New(ErrCodeBadGateway, "платёжный провайдер недоступен")
	ErrProviderDisabled     = New(ErrCodeValidation, "платёжный провайдер не настроен")
	ErrMailDelivery         = New(ErrCodeBadGateway, "не удалось отправить письмо")
	ErrProposalLocked       = New(ErrCodeConflict, "подписанное или оплаченное предложение нельзя изменить")
	ErrStatusTransition     = New(ErrCodeConflict, "недопустимая смена статуса")
	ErrPaymentLinkNotActive = New(ErrCodeConflict, "платёжная ссылка уже закрыта")
	ErrFileTooLarge         = New(ErrCodeTooLarge, "файл слишком большой")
	ErrUnsupportedFile      = New(ErrCodeValidation, "неподдерживаемый тип файла")
)
