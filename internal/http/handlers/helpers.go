package handlers

import (
	"bytes"
	"mime"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

const htmlContentType = "text/html; charset=utf-8"

// viewerMeta собирает сведения о клиенте для аналитики.
func viewerMeta(c *gin.Context) service.ViewerMeta {
	return service.ViewerMeta{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

func sessionMeta(c *gin.Context) service.SessionMeta {
	return service.SessionMeta{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

// acceptsBrotli проверяет Accept-Encoding без учёта q-значений.
func acceptsBrotli(c *gin.Context) bool {
	for _, part := range strings.Split(c.GetHeader("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}

// writeDocument отдаёт HTML документа. Если filename задан, документ
// скачивается как вложение. При поддержке клиентом тело сжимается brotli.
func writeDocument(c *gin.Context, html, filename string) {
	c.Header("Vary", "Accept-Encoding")
	if filename != "" {
		c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}

	if !acceptsBrotli(c) {
		c.Data(http.StatusOK, htmlContentType, []byte(html))
		return
	}

	body, err := compressBrotli([]byte(html))
	if err != nil {
		logger.Log.WithField("path", c.Request.URL.Path).WithError(err).Warn("http: не удалось сжать документ, отдаём без сжатия")
		c.Data(http.StatusOK, htmlContentType, []byte(html))
		return
	}
	c.Header("Content-Encoding", "br")
	c.Data(http.StatusOK, htmlContentType, body)
}

func compressBrotli(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
