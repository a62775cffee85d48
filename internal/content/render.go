package content

import (
	"bytes"
	"encoding/base64"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yosssi/gohtml"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ignatzorin/proposal-studio/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	hexColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	fontRe     = regexp.MustCompile(`^[a-zA-Z0-9 ,'\-]{1,64}$`)
)

// DefaultTheme оформление, когда тема или бренд-кит не заданы.
var DefaultTheme = models.Theme{
	PrimaryColor:    "#1f2937",
	SecondaryColor:  "#4b5563",
	AccentColor:     "#2563eb",
	TextColor:       "#111827",
	BackgroundColor: "#ffffff",
	HeadingFont:     "Inter, sans-serif",
	BodyFont:        "Inter, sans-serif",
}

var defaultHeadings = map[string]string{
	TypeObjective:    "Цели проекта",
	TypeScopeOfWork:  "Объём работ",
	TypePricing:      "Стоимость",
	TypeTimeline:     "Сроки",
	TypeTerms:        "Условия",
	TypeTestimonials: "Отзывы клиентов",
	TypeTeam:         "Команда",
	TypeSignature:    "Подписи",
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"RUB": "₽",
	"JPY": "¥",
}

// Signer подписант в отрисованном документе.
type Signer struct {
	Name      string
	Role      string
	Signed    bool
	SignedAt  *time.Time
	ImageURL  string
	TypedName string
	// ImageData встраивается в документ как data URI, если задан
	ImageData []byte
	ImageMIME string
}

// ImageSrc возвращает источник изображения подписи.
func (s Signer) ImageSrc() template.URL {
	if len(s.ImageData) > 0 && (s.ImageMIME == "image/png" || s.ImageMIME == "image/jpeg") {
		return template.URL("data:" + s.ImageMIME + ";base64," + base64.StdEncoding.EncodeToString(s.ImageData))
	}
	return template.URL(safeURL(s.ImageURL))
}

// Document всё, что нужно для отрисовки предложения.
type Document struct {
	Title         string
	ClientName    string
	ClientCompany string
	CompanyName   string
	Currency      string
	ValidUntil    *time.Time
	Theme         models.Theme
	Sections      []Section
	Signers       []Signer
	PaymentURL    string
}

// Renderer собирает автономный HTML документ из секций.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer разбирает встроенные шаблоны.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("document").Funcs(template.FuncMap{
		"qty":  formatQuantity,
		"date": formatDate,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("content: не удалось разобрать шаблоны: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

type entry struct {
	Title    string
	Text     string
	Meta     string
	ImageURL string
}

type sectionView struct {
	Section
	Heading    string
	Paragraphs []string
	Entries    []entry
	Pricing    *PricingTotals
	ImageURL   string
	Caption    string
	Signers    []Signer
	Doc        *Document
	currency   string
}

// Money форматирует сумму в валюте документа.
func (v sectionView) Money(amount float64) string {
	return FormatMoney(amount, v.currency)
}

type documentView struct {
	Document
	Style    template.CSS
	Logo     string
	Sections []template.HTML
}

// Render возвращает отформатированный HTML документ.
func (r *Renderer) Render(doc Document) (string, error) {
	if doc.Currency == "" {
		doc.Currency = "USD"
	}

	rendered := make([]template.HTML, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		html, err := r.renderSection(s, &doc)
		if err != nil {
			return "", err
		}
		rendered = append(rendered, html)
	}

	view := documentView{
		Document: doc,
		Style:    themeCSS(doc.Theme),
		Logo:     safeURL(doc.Theme.LogoURL),
		Sections: rendered,
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "document.html", view); err != nil {
		return "", fmt.Errorf("content: ошибка отрисовки документа: %w", err)
	}

	return gohtml.Format(buf.String()), nil
}

func (r *Renderer) renderSection(s Section, doc *Document) (template.HTML, error) {
	view := sectionView{
		Section:  s,
		Heading:  s.Title,
		Doc:      doc,
		currency: doc.Currency,
	}
	if view.Heading == "" {
		view.Heading = defaultHeadings[s.Type]
	}

	var name string
	switch s.Type {
	case TypeCoverPage:
		name = "cover_page"
		view.Heading = s.FirstString("title", "headline")
		if view.Heading == "" {
			view.Heading = doc.Title
		}
		view.Paragraphs = paragraphs(s.FirstString("subtitle", "body", "text"))
		view.ImageURL = safeURL(s.FirstString("image_url", "background_image"))
	case TypeObjective, TypeTerms, TypeText:
		name = "prose"
		view.Paragraphs = paragraphs(s.FirstString("body", "text", "description"))
		view.Entries = entries(s.Items("items", "points", "goals"))
	case TypeScopeOfWork:
		name = "scope_of_work"
		view.Paragraphs = paragraphs(s.FirstString("body", "description"))
		view.Entries = entries(s.Items("deliverables", "items", "tasks"))
	case TypePricing:
		name = "pricing"
		totals := CalculatePricing(s)
		view.Pricing = &totals
		view.Paragraphs = paragraphs(s.FirstString("notes", "body"))
	case TypeTimeline:
		name = "timeline"
		view.Entries = entries(s.Items("milestones", "items", "phases"))
	case TypeTestimonials:
		name = "testimonials"
		view.Entries = entries(s.Items("testimonials", "items"))
	case TypeTeam:
		name = "team"
		view.Entries = entries(s.Items("members", "items"))
	case TypeImage:
		name = "image"
		view.ImageURL = safeURL(s.FirstString("url", "src", "image_url"))
		view.Caption = s.FirstString("caption", "alt")
	case TypeSignature:
		name = "signature"
		view.Paragraphs = paragraphs(s.FirstString("body", "text"))
		view.Signers = doc.Signers
	default:
		name = "generic"
		view.Paragraphs = paragraphs(s.FirstString("body", "text", "description"))
		view.Entries = entries(s.Items())
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, view); err != nil {
		return "", fmt.Errorf("content: ошибка отрисовки секции %s: %w", s.ID, err)
	}

	return template.HTML(buf.String()), nil
}

func entries(items []map[string]any) []entry {
	out := make([]entry, 0, len(items))
	for _, item := range items {
		e := entry{
			Title:    firstText(item, "title", "name", "author", "phase"),
			Text:     firstText(item, "description", "text", "quote", "bio", "body"),
			Meta:     firstText(item, "date", "due_date", "duration", "role", "company", "position"),
			ImageURL: safeURL(firstText(item, "photo_url", "image_url", "avatar")),
		}
		if e.Title == "" && e.Text == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func paragraphs(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// safeURL пропускает только http(s) и относительные ссылки.
func safeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return u.String()
	}
	return ""
}

func themeCSS(t models.Theme) template.CSS {
	color := func(v, fallback string) string {
		if hexColorRe.MatchString(v) {
			return v
		}
		return fallback
	}
	font := func(v, fallback string) string {
		if fontRe.MatchString(v) {
			return v
		}
		return fallback
	}

	css := fmt.Sprintf(
		":root{--primary:%s;--secondary:%s;--accent:%s;--text:%s;--background:%s;--heading-font:%s;--body-font:%s;}",
		color(t.PrimaryColor, DefaultTheme.PrimaryColor),
		color(t.SecondaryColor, DefaultTheme.SecondaryColor),
		color(t.AccentColor, DefaultTheme.AccentColor),
		color(t.TextColor, DefaultTheme.TextColor),
		color(t.BackgroundColor, DefaultTheme.BackgroundColor),
		font(t.HeadingFont, DefaultTheme.HeadingFont),
		font(t.BodyFont, DefaultTheme.BodyFont),
	)
	return template.CSS(css)
}

// FormatMoney форматирует сумму с разделителями разрядов и символом валюты.
func FormatMoney(amount float64, currency string) string {
	currency = strings.ToUpper(currency)

	tag := language.English
	if currency == "RUB" {
		tag = language.Russian
	}
	number := message.NewPrinter(tag).Sprintf("%.2f", amount)

	symbol, ok := currencySymbols[currency]
	switch {
	case !ok:
		return number + " " + currency
	case currency == "RUB":
		return number + " " + symbol
	default:
		return symbol + number
	}
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02.01.2006")
}
