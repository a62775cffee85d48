package content

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-studio/internal/models"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func TestRender_AllSectionTypes(t *testing.T) {
	r := newTestRenderer(t)
	signedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	doc := Document{
		Title:      "Редизайн сайта",
		ClientName: "ООО Ромашка",
		Currency:   "USD",
		Sections: []Section{
			{ID: "c", Type: TypeCoverPage, Data: map[string]any{"subtitle": "Предложение"}},
			{ID: "o", Type: TypeObjective, Data: map[string]any{"body": "Увеличить конверсию"}},
			{ID: "s", Type: TypeScopeOfWork, Data: map[string]any{"deliverables": []any{"Макеты"}}},
			{ID: "p", Type: TypePricing, Data: map[string]any{"items": []any{
				map[string]any{"description": "Дизайн", "quantity": 1.0, "unit_price": 1234.5},
			}}},
			{ID: "t", Type: TypeTimeline, Data: map[string]any{"milestones": []any{map[string]any{"title": "Старт", "date": "01.04"}}}},
			{ID: "q", Type: TypeTestimonials, Data: map[string]any{"items": []any{map[string]any{"quote": "Отлично", "author": "Иван"}}}},
			{ID: "m", Type: TypeTeam, Data: map[string]any{"members": []any{map[string]any{"name": "Анна", "role": "Дизайнер"}}}},
			{ID: "i", Type: TypeImage, Data: map[string]any{"url": "https://cdn.example.com/a.png", "caption": "Схема"}},
			{ID: "g", Type: TypeSignature},
		},
		Signers: []Signer{
			{Name: "Пётр", Signed: true, SignedAt: &signedAt, TypedName: "Пётр П."},
			{Name: "Мария"},
		},
	}

	out, err := r.Render(doc)
	require.NoError(t, err)

	for _, want := range []string{
		"Редизайн сайта",
		"Увеличить конверсию",
		"Макеты",
		"$1,234.50",
		"Старт",
		"Отлично",
		"Дизайнер",
		"https://cdn.example.com/a.png",
		"Пётр П.",
		"01.03.2024",
		"Ожидает подписи",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRender_EscapesUserContent(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(Document{
		Title: "<script>alert(1)</script>",
		Sections: []Section{
			{ID: "x", Type: TypeText, Data: map[string]any{"body": "<script>alert(2)</script>"}},
			{ID: "y", Type: TypeImage, Data: map[string]any{"url": "javascript:alert(3)"}},
		},
	})
	require.NoError(t, err)

	assert.NotContains(t, out, "<script>alert")
	assert.NotContains(t, out, "javascript:alert")
}

func TestRender_UnknownTypeFallsBackToGeneric(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(Document{
		Sections: []Section{{ID: "z", Type: "faq", Title: "Вопросы", Data: map[string]any{"body": "Ответы ниже"}}},
	})
	require.NoError(t, err)

	assert.Contains(t, out, `data-type="faq"`)
	assert.Contains(t, out, "Вопросы")
	assert.Contains(t, out, "Ответы ниже")
}

func TestRender_InvalidThemeFallsBackToDefaults(t *testing.T) {
	r := newTestRenderer(t)

	out, err := r.Render(Document{Theme: models.Theme{PrimaryColor: "red;}</style><script>", AccentColor: "#ff0000"}})
	require.NoError(t, err)

	assert.Contains(t, out, DefaultTheme.PrimaryColor)
	assert.Contains(t, out, "#ff0000")
	assert.NotContains(t, out, "</style><script>")
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", FormatMoney(1234.5, "usd"))
	assert.Equal(t, "€0.99", FormatMoney(0.99, "EUR"))
	assert.Equal(t, "10.00 CHF", FormatMoney(10, "CHF"))
	assert.True(t, strings.HasSuffix(FormatMoney(1500, "RUB"), " ₽"))
}

func TestSafeURL(t *testing.T) {
	assert.Equal(t, "/media/a.png", safeURL("/media/a.png"))
	assert.Equal(t, "https://x.test/a", safeURL(" https://x.test/a "))
	assert.Empty(t, safeURL("//evil.test/a"))
	assert.Empty(t, safeURL("data:image/png;base64,AAA"))
	assert.Empty(t, safeURL("javascript:alert(1)"))
}

func TestRender_EmbedsSignatureImageAndLogo(t *testing.T) {
	r := newTestRenderer(t)
	signedAt := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	out, err := r.Render(Document{
		Theme:    models.Theme{LogoURL: "https://cdn.example.com/logo.svg"},
		Sections: []Section{{ID: "g", Type: TypeSignature}},
		Signers: []Signer{
			{Name: "Анна", Signed: true, SignedAt: &signedAt, ImageData: []byte{0x89, 'P', 'N', 'G'}, ImageMIME: "image/png"},
			{Name: "Олег", Signed: true, SignedAt: &signedAt, ImageData: []byte("<svg/>"), ImageMIME: "image/svg+xml", TypedName: "Олег О."},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "data:image/png;base64,iVBORw==")
	assert.NotContains(t, out, "image/svg+xml")
	assert.Contains(t, out, "Олег О.")
	assert.Contains(t, out, `class="logo" src="https://cdn.example.com/logo.svg"`)
}
