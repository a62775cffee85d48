package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength      = 3
	MaxUsernameLength      = 30
	MinDisplayNameLength   = 2
	MaxDisplayNameLength   = 100
	MinProposalTitleLength = 3
	MaxProposalTitleLength = 200
	MaxClientFieldLength   = 200
	MaxCompanyFieldLength  = 300
	MinSignerNameLength    = 1
	MaxSignerNameLength    = 200
	MinTypedNameLength     = 2
	MaxTypedNameLength     = 200
	MaxFontLength          = 64
	MaxBrandKitNameLength  = 100
	MaxWebhookNameLength   = 100
	MaxURLLength           = 2048
	MinPromptLength        = 1
	MaxPromptLength        = 4000
	MaxTemplateNameLength  = 150
	MaxAmount              = 100000000.0 // 100 миллионов
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	usernameRegex    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	displayNameRegex = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ0-9\s\-_.,!?()&'"]+$`)
	hexColorRegex    = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	fontRegex        = regexp.MustCompile(`^[a-zA-Z0-9 ,'\-]+$`)
	currencyRegex    = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateOptionalEmail проверяет email, если он указан.
func ValidateOptionalEmail(email *string) error {
	if email == nil || strings.TrimSpace(*email) == "" {
		return nil
	}
	return ValidateEmail(*email)
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	if unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateDisplayName проверяет отображаемое имя.
func ValidateDisplayName(displayName string) error {
	if displayName == "" {
		return fmt.Errorf("отображаемое имя обязательно")
	}

	displayName = strings.TrimSpace(displayName)

	if err := ValidateLength("отображаемое имя", displayName, MinDisplayNameLength, MaxDisplayNameLength); err != nil {
		return err
	}

	if !displayNameRegex.MatchString(displayName) {
		return fmt.Errorf("отображаемое имя содержит недопустимые символы")
	}

	return nil
}

// ValidateProposalTitle проверяет заголовок предложения.
func ValidateProposalTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("заголовок предложения обязателен")
	}
	return ValidateLength("заголовок предложения", title, MinProposalTitleLength, MaxProposalTitleLength)
}

// ValidateOptionalText проверяет длину необязательного текстового поля.
func ValidateOptionalText(fieldName string, value *string, max int) error {
	if value == nil {
		return nil
	}
	return ValidateLength(fieldName, strings.TrimSpace(*value), 0, max)
}

// ValidateHexColor проверяет цвет в формате #RGB или #RRGGBB.
func ValidateHexColor(fieldName, color string) error {
	if !hexColorRegex.MatchString(color) {
		return fmt.Errorf("%s должен быть в формате #RGB или #RRGGBB", fieldName)
	}
	return nil
}

// ValidateFont проверяет название шрифта.
func ValidateFont(fieldName, font string) error {
	font = strings.TrimSpace(font)
	if err := ValidateLength(fieldName, font, 1, MaxFontLength); err != nil {
		return err
	}
	if !fontRegex.MatchString(font) {
		return fmt.Errorf("%s содержит недопустимые символы", fieldName)
	}
	return nil
}

// ValidateCurrency проверяет код валюты ISO-4217.
func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return fmt.Errorf("валюта должна быть трёхбуквенным кодом ISO-4217")
	}
	return nil
}

// ValidateAmount проверяет сумму платежа.
func ValidateAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("сумма должна быть больше нуля")
	}
	if amount > MaxAmount {
		return fmt.Errorf("сумма не может превышать %.0f", MaxAmount)
	}
	return nil
}

// ValidateURL проверяет абсолютную http(s) ссылку. При httpsOnly разрешён только https.
func ValidateURL(fieldName, link string, httpsOnly bool) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return fmt.Errorf("%s обязателен", fieldName)
	}

	if err := ValidateLength(fieldName, link, 0, MaxURLLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("некорректный формат URL")
	}

	if httpsOnly && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s должен начинаться с https://", fieldName)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s должен начинаться с http:// или https://", fieldName)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s должен содержать доменное имя", fieldName)
	}

	return nil
}

// ValidateOptionalURL проверяет ссылку, если она указана.
func ValidateOptionalURL(fieldName string, link *string) error {
	if link == nil || strings.TrimSpace(*link) == "" {
		return nil
	}
	return ValidateURL(fieldName, *link, false)
}

// ValidateSignerName проверяет имя подписанта.
func ValidateSignerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("имя подписанта обязательно")
	}
	return ValidateLength("имя подписанта", name, MinSignerNameLength, MaxSignerNameLength)
}

// ValidateTypedName проверяет подпись, введённую текстом.
func ValidateTypedName(name string) error {
	return ValidateLength("текстовая подпись", strings.TrimSpace(name), MinTypedNameLength, MaxTypedNameLength)
}

// ValidatePrompt проверяет запрос к AI.
func ValidatePrompt(fieldName, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return ValidateLength(fieldName, prompt, MinPromptLength, MaxPromptLength)
}

// ValidateEventList проверяет, что список событий непустой, без дублей
// и содержит только разрешённые значения.
func ValidateEventList(events []string, allowed map[string]struct{}) error {
	if len(events) == 0 {
		return fmt.Errorf("нужно выбрать хотя бы одно событие")
	}

	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if _, ok := allowed[e]; !ok {
			return fmt.Errorf("неизвестное событие %q", e)
		}
		if _, dup := seen[e]; dup {
			return fmt.Errorf("событие %q указано дважды", e)
		}
		seen[e] = struct{}{}
	}

	return nil
}
