package storage

import (
	"errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/h2non/filetype"
)

// MIME-типы изображений, которые принимаются на загрузку.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWebP = "image/webp"
	MIMESVG  = "image/svg+xml"
)

// ErrUnsupportedType возвращается для файлов, не являющихся разрешёнными изображениями.
var ErrUnsupportedType = errors.New("storage: неподдерживаемый тип файла")

var rasterExtensions = map[string]string{
	MIMEJPEG: ".jpg",
	MIMEPNG:  ".png",
	MIMEGIF:  ".gif",
	MIMEWebP: ".webp",
}

// DetectImage определяет тип изображения по содержимому.
// Растровые форматы проверяются по магическим байтам, SVG по разметке.
func DetectImage(data []byte, allowed ...string) (mime string, ext string, err error) {
	if kind, matchErr := filetype.Match(data); matchErr == nil && kind != filetype.Unknown {
		mime = kind.MIME.Value
		ext = rasterExtensions[mime]
	} else if mimetype.Detect(data).Is(MIMESVG) {
		mime, ext = MIMESVG, ".svg"
	}

	if ext == "" {
		return "", "", ErrUnsupportedType
	}
	if len(allowed) > 0 && !contains(allowed, mime) {
		return "", "", ErrUnsupportedType
	}
	return mime, ext, nil
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
