package ai

import (
	"context"

	"github.com/ignatzorin/proposal-studio/internal/config"
)

// Имена провайдеров в AI_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// NewProvider выбирает провайдера по настройкам.
func NewProvider(ctx context.Context, cfg config.AIConfig) (Provider, error) {
	if cfg.Provider == ProviderGemini {
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	return NewClient(cfg.BaseURL, cfg.Model, cfg.APIKey, cfg.Timeout), nil
}
