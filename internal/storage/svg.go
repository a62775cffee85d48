package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ErrInvalidSVG возвращается, когда документ не является SVG.
var ErrInvalidSVG = errors.New("storage: некорректный SVG")

var forbiddenSVGElements = map[string]struct{}{
	"script":        {},
	"foreignobject": {},
	"iframe":        {},
	"embed":         {},
	"object":        {},
}

// SanitizeSVG удаляет из SVG скрипты, обработчики событий и опасные ссылки.
func SanitizeSVG(data []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSVG, err)
	}

	root := doc.Root()
	if root == nil || !strings.EqualFold(root.Tag, "svg") {
		return nil, ErrInvalidSVG
	}

	// DOCTYPE может объявлять внешние сущности
	for _, tok := range append([]etree.Token(nil), doc.Child...) {
		if _, ok := tok.(*etree.Directive); ok {
			doc.RemoveChild(tok)
		}
	}

	sanitizeElement(root)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось сериализовать SVG: %w", err)
	}
	return out, nil
}

func sanitizeElement(el *etree.Element) {
	for _, child := range el.ChildElements() {
		if _, bad := forbiddenSVGElements[strings.ToLower(child.Tag)]; bad {
			el.RemoveChild(child)
			continue
		}
		sanitizeElement(child)
	}

	var drop []string
	for _, attr := range el.Attr {
		key := strings.ToLower(attr.Key)
		value := strings.ToLower(strings.Join(strings.Fields(attr.Value), ""))

		switch {
		case strings.HasPrefix(key, "on"):
			drop = append(drop, attr.FullKey())
		case key == "href" && !isSafeSVGLink(value):
			drop = append(drop, attr.FullKey())
		case key == "style" && (strings.Contains(value, "javascript:") || strings.Contains(value, "expression(")):
			drop = append(drop, attr.FullKey())
		}
	}
	for _, key := range drop {
		el.RemoveAttr(key)
	}
}

func isSafeSVGLink(value string) bool {
	if strings.HasPrefix(value, "javascript:") || strings.HasPrefix(value, "vbscript:") {
		return false
	}
	if strings.HasPrefix(value, "data:") {
		return strings.HasPrefix(value, "data:image/png") ||
			strings.HasPrefix(value, "data:image/jpeg") ||
			strings.HasPrefix(value, "data:image/gif")
	}
	return true
}
