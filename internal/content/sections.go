package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Типы секций, которые умеет отрисовывать рендерер.
const (
	TypeCoverPage    = "cover_page"
	TypeObjective    = "objective"
	TypeScopeOfWork  = "scope_of_work"
	TypePricing      = "pricing"
	TypeTimeline     = "timeline"
	TypeTerms        = "terms"
	TypeTestimonials = "testimonials"
	TypeTeam         = "team"
	TypeImage        = "image"
	TypeSignature    = "signature"
	TypeText         = "text"
)

// canonicalOrder порядок секций для старого плоского формата.
var canonicalOrder = []string{
	TypeCoverPage,
	TypeObjective,
	TypeScopeOfWork,
	TypeTimeline,
	TypePricing,
	TypeTeam,
	TypeTestimonials,
	TypeTerms,
	TypeImage,
	TypeText,
	TypeSignature,
}

var typeAliases = map[string]string{
	"cover":         TypeCoverPage,
	"coverpage":     TypeCoverPage,
	"scope":         TypeScopeOfWork,
	"scope_of_work": TypeScopeOfWork,
	"price":         TypePricing,
	"pricing_table": TypePricing,
	"signatures":    TypeSignature,
	"testimonial":   TypeTestimonials,
	"team_members":  TypeTeam,
	"goals":         TypeObjective,
	"objectives":    TypeObjective,
	"rich_text":     TypeText,
	"paragraph":     TypeText,
}

// ErrUnsupportedShape возвращается, если содержимое не является ни массивом, ни объектом.
var ErrUnsupportedShape = errors.New("content: неподдерживаемый формат содержимого")

// Section одна нормализованная секция предложения.
type Section struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	Title string         `json:"title,omitempty"`
	Order int            `json:"order"`
	Data  map[string]any `json:"data"`
}

// Normalize приводит сохранённое содержимое к упорядоченному списку секций.
// Поддерживаются массив секций, объект с числовыми ключами ("0", "1", ...)
// и старый плоский формат, где ключом служит тип секции.
func Normalize(raw json.RawMessage) ([]Section, error) {
	return normalize(raw, true)
}

func normalize(raw []byte, allowString bool) ([]Section, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Section{}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("content: некорректный массив секций: %w", err)
		}
		return fromList(items), nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("content: некорректный объект секций: %w", err)
		}
		return fromObject(obj), nil
	case '"':
		// Содержимое, сохранённое как JSON-строка с JSON внутри.
		if !allowString {
			return nil, ErrUnsupportedShape
		}
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("content: некорректная строка: %w", err)
		}
		return normalize([]byte(inner), false)
	default:
		return nil, ErrUnsupportedShape
	}
}

func fromObject(obj map[string]json.RawMessage) []Section {
	if len(obj) == 0 {
		return []Section{}
	}

	// Одиночная секция, сохранённая без обёртки-массива.
	if rawType, ok := obj["type"]; ok {
		var t string
		if json.Unmarshal(rawType, &t) == nil && t != "" {
			single, _ := json.Marshal(obj)
			return fromList([]json.RawMessage{single})
		}
	}

	if keys, ok := numericKeys(obj); ok {
		items := make([]json.RawMessage, 0, len(keys))
		for _, k := range keys {
			items = append(items, obj[k])
		}
		return fromList(items)
	}

	return fromLegacyMap(obj)
}

// numericKeys возвращает ключи, отсортированные по числовому значению,
// если все ключи объекта являются неотрицательными целыми числами.
func numericKeys(obj map[string]json.RawMessage) ([]string, bool) {
	type kv struct {
		key string
		num int
	}
	keys := make([]kv, 0, len(obj))
	for k := range obj {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 {
			return nil, false
		}
		keys = append(keys, kv{key: k, num: n})
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].num < keys[j].num })

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.key
	}
	return out, true
}

func fromList(items []json.RawMessage) []Section {
	sections := make([]Section, 0, len(items))
	for i, item := range items {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			continue
		}
		sections = append(sections, sectionFromMap(obj, i))
	}

	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Order < sections[j].Order
	})

	for i := range sections {
		sections[i].Order = i
		if sections[i].ID == "" {
			sections[i].ID = fmt.Sprintf("section-%d", i)
		}
	}

	return sections
}

func fromLegacyMap(obj map[string]json.RawMessage) []Section {
	rank := make(map[string]int, len(canonicalOrder))
	for i, t := range canonicalOrder {
		rank[t] = i
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iKnown := rank[NormalizeType(keys[i])]
		rj, jKnown := rank[NormalizeType(keys[j])]
		switch {
		case iKnown && jKnown:
			if ri != rj {
				return ri < rj
			}
			return keys[i] < keys[j]
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return keys[i] < keys[j]
		}
	})

	sections := make([]Section, 0, len(keys))
	for _, k := range keys {
		var value any
		if err := json.Unmarshal(obj[k], &value); err != nil || value == nil {
			continue
		}

		data, ok := value.(map[string]any)
		if !ok {
			data = map[string]any{"body": value}
		}

		section := sectionFromMap(data, len(sections))
		if _, hasType := data["type"]; !hasType {
			section.Type = NormalizeType(k)
		}
		section.ID = fmt.Sprintf("section-%d", len(sections))
		section.Order = len(sections)
		sections = append(sections, section)
	}

	return sections
}

func sectionFromMap(obj map[string]any, index int) Section {
	s := Section{
		Order: index,
		Data:  map[string]any{},
	}

	if id, ok := obj["id"]; ok {
		s.ID = strings.TrimSpace(fmt.Sprint(id))
	}
	if t, ok := obj["type"].(string); ok {
		s.Type = NormalizeType(t)
	}
	if s.Type == "" {
		s.Type = TypeText
	}
	if title, ok := obj["title"].(string); ok {
		s.Title = strings.TrimSpace(title)
	}
	if order, ok := toFloat(obj["order"]); ok {
		s.Order = int(order)
	}

	// Полезная нагрузка лежит в data, content или прямо на верхнем уровне.
	for _, key := range []string{"data", "content"} {
		switch v := obj[key].(type) {
		case map[string]any:
			for dk, dv := range v {
				s.Data[dk] = dv
			}
		case string:
			s.Data["body"] = v
		case []any:
			s.Data["items"] = v
		}
	}

	for k, v := range obj {
		switch k {
		case "id", "type", "title", "order", "data", "content":
			continue
		}
		if _, exists := s.Data[k]; !exists {
			s.Data[k] = v
		}
	}

	return s
}

// NormalizeType приводит тип секции к каноническому виду.
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	t = strings.NewReplacer("-", "_", " ", "_").Replace(t)
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}

// String возвращает строковое значение поля секции.
func (s Section) String(key string) string {
	switch v := s.Data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// FirstString возвращает первое непустое строковое поле из списка.
func (s Section) FirstString(keys ...string) string {
	for _, k := range keys {
		if v := s.String(k); v != "" {
			return v
		}
	}
	return ""
}

// Items возвращает элементы списка секции в виде объектов.
// Строковые элементы превращаются в {"text": "..."}.
func (s Section) Items(keys ...string) []map[string]any {
	if len(keys) == 0 {
		keys = []string{"items"}
	}
	for _, k := range keys {
		list, ok := s.Data[k].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			switch v := item.(type) {
			case map[string]any:
				out = append(out, v)
			case string:
				out = append(out, map[string]any{"text": v})
			}
		}
		return out
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		cleaned := strings.NewReplacer(" ", "", ",", "", "$", "", "€", "", "£", "").Replace(strings.TrimSpace(n))
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
