package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposal-studio/internal/config"
)

// Типы хранилищ.
const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

var (
	// ErrTooLarge возвращается, когда файл превышает лимит загрузки.
	ErrTooLarge = errors.New("storage: размер файла превышает лимит")
	// ErrObjectNotFound возвращается, когда объект отсутствует в хранилище.
	ErrObjectNotFound = errors.New("storage: объект не найден")
	// ErrInvalidKey возвращается для ключей за пределами хранилища.
	ErrInvalidKey = errors.New("storage: недопустимый ключ")
)

// Storage общий интерфейс хранилища файлов.
type Storage interface {
	// Save сохраняет файл и возвращает ключ объекта и его размер.
	Save(ctx context.Context, ownerID uuid.UUID, originalName string, r io.Reader) (string, int64, error)
	// Open открывает объект на чтение.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete удаляет объект. Отсутствие объекта не считается ошибкой.
	Delete(ctx context.Context, key string) error
}

// New выбирает реализацию по STORAGE_TYPE.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", TypeLocal:
		return NewLocalStorage(cfg.MediaPath, cfg.MaxUploadSizeMB)
	case TypeS3:
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: неизвестный тип хранилища %q", cfg.Type)
	}
}

// objectName строит уникальное имя объекта для владельца.
func objectName(ownerID uuid.UUID, originalName string) string {
	safeName := sanitizeFilename(originalName)
	return path.Join(ownerID.String(), fmt.Sprintf("%s_%d%s", ownerID.String(), time.Now().UnixNano(), strings.ToLower(filepath.Ext(safeName))))
}

// cleanKey проверяет, что ключ не выходит за пределы хранилища.
func cleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" || name == "." {
		name = "file"
	}
	return name
}
