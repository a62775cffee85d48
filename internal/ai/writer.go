package ai

import (
	"context"
	"fmt"
	"strings"
)

const copywriterSystemPrompt = "Ты опытный копирайтер коммерческих предложений. " +
	"Пиши кратко, конкретно и по делу, без markdown-разметки и без вступлений. " +
	"Отвечай на языке запроса пользователя."

var sectionBriefs = map[string]string{
	"cover_page":    "короткий подзаголовок для титульной страницы (одно предложение)",
	"objective":     "раздел «Цель проекта»: 2-3 абзаца о задаче клиента и ожидаемом результате",
	"scope_of_work": "раздел «Объём работ»: список из 4-7 конкретных результатов, по одному на строку",
	"timeline":      "раздел «Сроки»: этапы проекта с примерной длительностью, по одному на строку",
	"terms":         "раздел «Условия»: порядок оплаты, сроки действия предложения и правки",
	"testimonials":  "короткий отзыв довольного клиента (2-3 предложения)",
	"team":          "краткое описание команды проекта",
	"text":          "связный текстовый блок",
}

// GenerateInput параметры генерации секции.
type GenerateInput struct {
	SectionType   string
	Prompt        string
	ProposalTitle string
	ClientName    string
	Tone          string
}

// Writer готовит запросы для черновиков текста предложений.
type Writer struct {
	provider Provider
}

// NewWriter создаёт Writer поверх провайдера.
func NewWriter(provider Provider) *Writer {
	return &Writer{provider: provider}
}

// GenerateSection пишет черновик текста секции.
func (w *Writer) GenerateSection(ctx context.Context, in GenerateInput) (string, error) {
	brief, ok := sectionBriefs[in.SectionType]
	if !ok {
		brief = sectionBriefs["text"]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Напиши %s.\n", brief)
	if in.ProposalTitle != "" {
		fmt.Fprintf(&sb, "Предложение: %s\n", in.ProposalTitle)
	}
	if in.ClientName != "" {
		fmt.Fprintf(&sb, "Клиент: %s\n", in.ClientName)
	}
	if in.Tone != "" {
		fmt.Fprintf(&sb, "Тон: %s\n", in.Tone)
	}
	fmt.Fprintf(&sb, "Пожелания автора: %s", in.Prompt)

	return w.provider.Complete(ctx, CompletionRequest{
		System:      copywriterSystemPrompt,
		Prompt:      sb.String(),
		MaxTokens:   800,
		Temperature: 0.7,
	})
}

// Improve переписывает текст по инструкции.
func (w *Writer) Improve(ctx context.Context, text, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		instruction = "сделай текст яснее и убедительнее, сохрани смысл"
	}

	prompt := fmt.Sprintf("Перепиши текст. Инструкция: %s\n\nТекст:\n%s", instruction, text)
	return w.provider.Complete(ctx, CompletionRequest{
		System:      copywriterSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   1200,
		Temperature: 0.4,
	})
}
