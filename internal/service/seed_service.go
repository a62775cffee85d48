package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/models"
)

// SystemTemplateStore сохраняет системные шаблоны.
type SystemTemplateStore interface {
	UpsertSystem(ctx context.Context, t *models.ProposalTemplate) (bool, error)
}

// SeedResult итог заполнения системных шаблонов.
type SeedResult struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Templates []string `json:"templates"`
}

// SeedService заполняет справочные данные.
type SeedService struct {
	templates SystemTemplateStore
	cache     *CacheService
}

// NewSeedService создаёт новый сервис для заполнения данных.
func NewSeedService(templates SystemTemplateStore, cache *CacheService) *SeedService {
	return &SeedService{templates: templates, cache: cache}
}

// SeedSystemTemplates создаёт или обновляет встроенные шаблоны по имени.
// Повторный запуск не создаёт дублей.
func (s *SeedService) SeedSystemTemplates(ctx context.Context) (*SeedResult, error) {
	result := &SeedResult{Templates: []string{}}

	for _, def := range systemTemplates() {
		raw, err := json.Marshal(def.sections)
		if err != nil {
			return nil, fmt.Errorf("seed service: шаблон %q: %w", def.name, err)
		}

		description := def.description
		t := &models.ProposalTemplate{
			Name:        def.name,
			Description: &description,
			Category:    def.category,
			Content:     raw,
			Theme:       def.theme,
		}

		inserted, err := s.templates.UpsertSystem(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("seed service: шаблон %q: %w", def.name, err)
		}
		if inserted {
			result.Created++
		} else {
			result.Updated++
		}
		result.Templates = append(result.Templates, def.name)
	}

	if s.cache != nil {
		s.cache.InvalidateTemplates()
	}

	logger.Log.WithFields(logrus.Fields{
		"created": result.Created,
		"updated": result.Updated,
	}).Info("seed service: системные шаблоны обновлены")

	return result, nil
}

type templateDef struct {
	name        string
	description string
	category    string
	theme       models.Theme
	sections    []map[string]any
}

func section(id, typ, title string, data map[string]any) map[string]any {
	return map[string]any{"id": id, "type": typ, "title": title, "data": data}
}

func systemTemplates() []templateDef {
	return []templateDef{
		{
			name:        "Консалтинговый проект",
			description: "Диагностика, рекомендации и сопровождение внедрения",
			category:    "consulting",
			theme: models.Theme{
				PrimaryColor: "#0f172a",
				AccentColor:  "#0ea5e9",
				HeadingFont:  "Georgia, serif",
				BodyFont:     "Inter, sans-serif",
			},
			sections: []map[string]any{
				section("cover", "cover_page", "", map[string]any{"subtitle": "Предложение по консалтинговому проекту"}),
				section("objective", "objective", "Цель проекта", map[string]any{
					"body": "Найти узкие места в текущих процессах и предложить план изменений с измеримым результатом.",
				}),
				section("scope", "scope_of_work", "Объём работ", map[string]any{
					"deliverables": []string{
						"Интервью с ключевыми сотрудниками",
						"Анализ процессов и метрик",
						"Отчёт с рекомендациями",
						"План внедрения на 90 дней",
					},
				}),
				section("timeline", "timeline", "Сроки", map[string]any{
					"milestones": []map[string]any{
						{"title": "Диагностика", "date": "Неделя 1-2"},
						{"title": "Анализ и отчёт", "date": "Неделя 3-4"},
						{"title": "Презентация плана", "date": "Неделя 5"},
					},
				}),
				section("pricing", "pricing", "Стоимость", map[string]any{
					"items": []map[string]any{
						{"description": "Диагностика", "quantity": 1, "unit_price": 3000},
						{"description": "Отчёт и план внедрения", "quantity": 1, "unit_price": 4500},
					},
				}),
				section("terms", "terms", "Условия", map[string]any{
					"body": "50% предоплата, 50% после презентации отчёта. Предложение действительно 30 дней.",
				}),
				section("signature", "signature", "Подписи", map[string]any{}),
			},
		},
		{
			name:        "Дизайн и разработка сайта",
			description: "Редизайн или новый сайт под ключ",
			category:    "web_design",
			theme: models.Theme{
				PrimaryColor: "#111827",
				AccentColor:  "#8b5cf6",
				HeadingFont:  "Inter, sans-serif",
				BodyFont:     "Inter, sans-serif",
			},
			sections: []map[string]any{
				section("cover", "cover_page", "", map[string]any{"subtitle": "Дизайн и разработка сайта"}),
				section("objective", "objective", "Задача", map[string]any{
					"body": "Сделать быстрый современный сайт, который понятно рассказывает о продукте и приводит заявки.",
				}),
				section("scope", "scope_of_work", "Что входит", map[string]any{
					"deliverables": []string{
						"Прототипы ключевых страниц",
						"Дизайн-макеты для десктопа и мобильных",
						"Вёрстка и подключение CMS",
						"Базовая SEO-настройка",
						"Запуск и две недели поддержки",
					},
				}),
				section("timeline", "timeline", "Этапы", map[string]any{
					"milestones": []map[string]any{
						{"title": "Прототипы", "date": "Неделя 1"},
						{"title": "Дизайн", "date": "Неделя 2-3"},
						{"title": "Разработка", "date": "Неделя 4-6"},
						{"title": "Запуск", "date": "Неделя 7"},
					},
				}),
				section("pricing", "pricing", "Стоимость", map[string]any{
					"items": []map[string]any{
						{"description": "Дизайн", "quantity": 1, "unit_price": 2500},
						{"description": "Разработка", "quantity": 1, "unit_price": 4000},
						{"description": "Поддержка, часы", "quantity": 10, "unit_price": 60},
					},
					"discount": 5,
				}),
				section("team", "team", "Команда", map[string]any{
					"members": []map[string]any{
						{"name": "Дизайнер", "role": "UI/UX"},
						{"name": "Разработчик", "role": "Frontend и CMS"},
					},
				}),
				section("terms", "terms", "Условия", map[string]any{
					"body": "Оплата по этапам: 30% / 40% / 30%. Две итерации правок на каждом этапе.",
				}),
				section("signature", "signature", "Подписи", map[string]any{}),
			},
		},
		{
			name:        "Маркетинговое сопровождение",
			description: "Ежемесячный ретейнер на маркетинг и контент",
			category:    "marketing",
			theme: models.Theme{
				PrimaryColor: "#14532d",
				AccentColor:  "#f59e0b",
				HeadingFont:  "Montserrat, sans-serif",
				BodyFont:     "Inter, sans-serif",
			},
			sections: []map[string]any{
				section("cover", "cover_page", "", map[string]any{"subtitle": "Маркетинговое сопровождение"}),
				section("objective", "objective", "Цель", map[string]any{
					"body": "Регулярно приводить целевой трафик и заявки при понятном ежемесячном бюджете.",
				}),
				section("scope", "scope_of_work", "Ежемесячно", map[string]any{
					"deliverables": []string{
						"Контент-план и 8 публикаций",
						"Ведение рекламных кампаний",
						"Ежемесячный отчёт по метрикам",
						"Созвон по результатам",
					},
				}),
				section("pricing", "pricing", "Стоимость в месяц", map[string]any{
					"items": []map[string]any{
						{"description": "Контент", "quantity": 1, "unit_price": 1200},
						{"description": "Реклама (без бюджета)", "quantity": 1, "unit_price": 800},
					},
					"tax": 0,
				}),
				section("testimonials", "testimonials", "Отзывы", map[string]any{
					"items": []map[string]any{
						{"quote": "За полгода заявки с сайта выросли вдвое.", "author": "Клиент из сферы услуг"},
					},
				}),
				section("terms", "terms", "Условия", map[string]any{
					"body": "Оплата ежемесячно вперёд. Минимальный срок 3 месяца, затем отмена за 30 дней.",
				}),
				section("signature", "signature", "Подписи", map[string]any{}),
			},
		},
	}
}
