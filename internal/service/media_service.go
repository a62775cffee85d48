package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/storage"
)

// MediaRepository описывает хранилище записей о файлах.
type MediaRepository interface {
	Create(ctx context.Context, media *models.MediaFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.MediaFile, error)
	Delete(ctx context.Context, mediaID uuid.UUID) error
}

// UploadInput загружаемый файл.
type UploadInput struct {
	Filename string
	Body     io.Reader
	Private  bool
}

// MediaService управляет загрузкой логотипов и изображений.
type MediaService struct {
	repo     MediaRepository
	blobs    storage.Storage
	maxBytes int64
}

// NewMediaService создаёт сервис медиа. maxBytes ограничивает размер загрузки.
func NewMediaService(repo MediaRepository, blobs storage.Storage, maxBytes int64) *MediaService {
	return &MediaService{repo: repo, blobs: blobs, maxBytes: maxBytes}
}

// Upload проверяет тип файла по содержимому и сохраняет его.
func (s *MediaService) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*models.MediaFile, error) {
	if in.Body == nil {
		return nil, apperror.Validation("файл обязателен")
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, s.maxBytes+1))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperror.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, apperror.Validation("файл пуст")
	}

	mime, ext, err := storage.DetectImage(data)
	if err != nil {
		return nil, apperror.ErrUnsupportedFile
	}
	if mime == storage.MIMESVG {
		data, err = storage.SanitizeSVG(data)
		if err != nil {
			return nil, apperror.ErrUnsupportedFile
		}
	}

	key, size, err := s.blobs.Save(ctx, userID, "upload"+ext, bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperror.ErrFileTooLarge
		}
		return nil, apperror.Internal(err)
	}

	owner := userID
	media := &models.MediaFile{
		UserID:   &owner,
		FilePath: key,
		FileType: mime,
		FileSize: size,
		IsPublic: !in.Private,
	}
	if err := s.repo.Create(ctx, media); err != nil {
		s.discard(ctx, key)
		return nil, apperror.Internal(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":  userID,
		"media_id": media.ID,
		"type":     mime,
		"size":     size,
	}).Info("media service: файл загружен")

	return media, nil
}

// Open открывает файл. Приватные файлы доступны только владельцу.
func (s *MediaService) Open(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*models.MediaFile, io.ReadCloser, error) {
	media, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, mapRepoErr(err, repository.ErrMediaNotFound, apperror.ErrMediaNotFound)
	}
	if !media.IsPublic && !ownsMedia(media, viewer) {
		return nil, nil, apperror.ErrMediaNotFound
	}

	rc, err := s.blobs.Open(ctx, media.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, apperror.ErrMediaNotFound
		}
		return nil, nil, apperror.Internal(err)
	}
	return media, rc, nil
}

// Get возвращает запись о файле владельца.
func (s *MediaService) Get(ctx context.Context, id, userID uuid.UUID) (*models.MediaFile, error) {
	media, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrMediaNotFound, apperror.ErrMediaNotFound)
	}
	if !ownsMedia(media, &userID) {
		return nil, apperror.ErrMediaNotFound
	}
	return media, nil
}

// List возвращает файлы пользователя.
func (s *MediaService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.MediaFile, error) {
	limit, offset = clampPage(limit, offset, 50, 200)
	files, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return files, nil
}

// Delete удаляет запись и объект в хранилище.
func (s *MediaService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	media, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoErr(err, repository.ErrMediaNotFound, apperror.ErrMediaNotFound)
	}
	s.discard(ctx, media.FilePath)
	return nil
}

func (s *MediaService) discard(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		logger.Log.WithField("key", key).WithError(err).Warn("media service: не удалось удалить объект")
	}
}

func ownsMedia(media *models.MediaFile, userID *uuid.UUID) bool {
	return userID != nil && media.UserID != nil && *media.UserID == *userID
}
