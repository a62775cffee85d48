package ai

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
)

var (
	// ErrRateLimited провайдер ответил 429.
	ErrRateLimited = errors.New("ai: превышен лимит запросов провайдера")
	// ErrCreditsExhausted провайдер ответил 402.
	ErrCreditsExhausted = errors.New("ai: закончились кредиты провайдера")
	// ErrUpstream любая другая ошибка провайдера.
	ErrUpstream = errors.New("ai: ошибка провайдера")
	// ErrEmptyResponse провайдер вернул пустой ответ.
	ErrEmptyResponse = errors.New("ai: пустой ответ")
	// ErrNotConfigured провайдер не настроен.
	ErrNotConfigured = errors.New("ai: провайдер не настроен")
)

// CompletionRequest параметры одного запроса к модели.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Provider генерирует текст по запросу.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Client реализует Provider через OpenAI-совместимый API chat/completions.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента.
func NewClient(baseURL, model, apiKey string, timeout time.Duration) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Complete выполняет запрос к chat/completions.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return c.chatCompletionWithOptions(ctx, messages, maxTokens, req.Temperature)
}

// chatCompletionWithOptions выполняет запрос с настраиваемыми параметрами.
func (c *Client) chatCompletionWithOptions(ctx context.Context, messages []map[string]string, maxTokens int, temperature float64) (string, error) {
	if c.baseURL == "" {
		return "", ErrNotConfigured
	}

	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := c.baseURL
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	url += "chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", statusError(resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: некорректный ответ: %v", ErrUpstream, err)
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// statusError переводит HTTP-статус провайдера в ошибку пакета.
func statusError(code int, detail string) error {
	switch code {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrCreditsExhausted
	default:
		if detail != "" {
			return fmt.Errorf("%w: код ответа %d: %s", ErrUpstream, code, detail)
		}
		return fmt.Errorf("%w: код ответа %d", ErrUpstream, code)
	}
}
