package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinPasswordLength минимальная длина пароля в символах.
	MinPasswordLength = 8
	// MaxPasswordBytes предел bcrypt, длиннее GenerateFromPassword не принимает.
	MaxPasswordBytes = 72
)

var (
	ErrPasswordTooShort = errors.New("пароль должен быть не менее 8 символов")
	ErrPasswordTooLong  = errors.New("пароль не должен превышать 72 байта")
	ErrPasswordSpaces   = errors.New("пароль не должен начинаться или заканчиваться пробелом")
	ErrPasswordWeak     = errors.New("пароль должен содержать заглавную и строчную букву и цифру")
)

// ValidatePassword проверяет пароль учётной записи. Длина считается в символах,
// кириллица допустима, верхняя граница задаётся bcrypt в байтах.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	if strings.TrimSpace(password) != password {
		return ErrPasswordSpaces
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrPasswordWeak
	}
	return nil
}
