package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/config"
	"github.com/ignatzorin/proposal-studio/internal/logger"
)

// ErrDelivery почтовый API отклонил письмо.
var ErrDelivery = errors.New("mailer: не удалось отправить письмо")

// Message одно письмо.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	HTML    string
}

// Mailer отправляет письма.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New возвращает HTTP-клиент почтового API или логирующую заглушку.
func New(cfg config.EmailConfig) Mailer {
	if cfg.APIURL == "" || cfg.APIKey == "" {
		logger.Log.Warn("mailer: EMAIL_API_URL не задан, письма будут только логироваться")
		return LogMailer{}
	}
	return NewHTTPMailer(cfg)
}

// HTTPMailer отправляет письма через JSON API вида POST /emails.
type HTTPMailer struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient *http.Client
}

// NewHTTPMailer создаёт клиент почтового API.
func NewHTTPMailer(cfg config.EmailConfig) *HTTPMailer {
	return &HTTPMailer{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
		from:       cfg.From,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send отправляет письмо.
func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	payload := map[string]any{
		"from":    m.from,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if msg.ReplyTo != "" {
		payload["reply_to"] = msg.ReplyTo
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: код %d: %s", ErrDelivery, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// LogMailer пишет письма в лог вместо отправки.
type LogMailer struct{}

// Send логирует письмо.
func (LogMailer) Send(_ context.Context, msg Message) error {
	logger.Log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("mailer: письмо не отправлено, почтовый API не настроен")
	return nil
}
