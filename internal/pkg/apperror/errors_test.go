package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeNotFound:        http.StatusNotFound,
		ErrCodeGone:            http.StatusGone,
		ErrCodePaymentRequired: http.StatusPaymentRequired,
		ErrCodeRateLimited:     http.StatusTooManyRequests,
		ErrCodeBadGateway:      http.StatusBadGateway,
		ErrCodeValidation:      http.StatusBadRequest,
		ErrCodeDatabaseError:   http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, code)
	}
}

func TestIs_MatchesWrappedPredefined(t *testing.T) {
	err := fmt.Errorf("share service: %w", ErrShareExpired)
	assert.True(t, errors.Is(err, ErrShareExpired))
	assert.False(t, errors.Is(err, ErrShareNotFound))

	wrapped := Wrap(errors.New("upstream 429"), ErrCodeRateLimited, ErrAIRateLimited.Message)
	assert.True(t, errors.Is(wrapped, ErrAIRateLimited))
}

func TestAs(t *testing.T) {
	appErr, ok := As(fmt.Errorf("wrap: %w", ErrForbidden))
	assert.True(t, ok)
	assert.Equal(t, ErrCodeForbidden, appErr.Code)
	assert.True(t, IsForbidden(appErr))

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
