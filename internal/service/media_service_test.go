package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/storage"
)

type fakeMediaRepo struct {
	files map[uuid.UUID]*models.MediaFile
}

func newFakeMediaRepo() *fakeMediaRepo {
	return &fakeMediaRepo{files: make(map[uuid.UUID]*models.MediaFile)}
}

func (r *fakeMediaRepo) Create(ctx context.Context, media *models.MediaFile) error {
	media.ID = uuid.New()
	media.CreatedAt = time.Now()
	cp := *media
	r.files[media.ID] = &cp
	return nil
}

func (r *fakeMediaRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error) {
	m, ok := r.files[id]
	if !ok {
		return nil, repository.ErrMediaNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMediaRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.MediaFile, error) {
	var out []models.MediaFile
	for _, m := range r.files {
		if m.UserID != nil && *m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMediaRepo) Delete(ctx context.Context, mediaID uuid.UUID) error {
	if _, ok := r.files[mediaID]; !ok {
		return repository.ErrMediaNotFound
	}
	delete(r.files, mediaID)
	return nil
}

func TestMediaService_UploadPNG(t *testing.T) {
	blobs := newFakeBlobs()
	svc := NewMediaService(newFakeMediaRepo(), blobs, 1<<20)
	owner := uuid.New()

	media, err := svc.Upload(context.Background(), owner, UploadInput{
		Filename: "logo.png",
		Body:     bytes.NewReader(pngBytes(t)),
	})
	require.NoError(t, err)

	assert.Equal(t, "image/png", media.FileType)
	assert.True(t, media.IsPublic)
	require.NotNil(t, media.UserID)
	assert.Equal(t, owner, *media.UserID)
	assert.Equal(t, 1, blobs.len())

	list, err := svc.List(context.Background(), owner, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMediaService_UploadRejectsBadInput(t *testing.T) {
	blobs := newFakeBlobs()
	svc := NewMediaService(newFakeMediaRepo(), blobs, 64)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Upload(ctx, owner, UploadInput{Filename: "big.png", Body: bytes.NewReader(make([]byte, 65))})
	assert.True(t, errors.Is(err, apperror.ErrFileTooLarge))

	_, err = svc.Upload(ctx, owner, UploadInput{Filename: "empty.png", Body: bytes.NewReader(nil)})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Upload(ctx, owner, UploadInput{Filename: "notes.txt", Body: strings.NewReader("просто текст")})
	assert.True(t, errors.Is(err, apperror.ErrUnsupportedFile))

	assert.Equal(t, 0, blobs.len())
}

func TestMediaService_UploadSanitizesSVG(t *testing.T) {
	blobs := newFakeBlobs()
	svc := NewMediaService(newFakeMediaRepo(), blobs, 1<<20)
	ctx := context.Background()
	owner := uuid.New()

	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10">` +
		`<script>alert(1)</script><rect width="10" height="10" onclick="alert(2)"/></svg>`

	media, err := svc.Upload(ctx, owner, UploadInput{Filename: "logo.svg", Body: strings.NewReader(svg)})
	require.NoError(t, err)
	assert.Equal(t, storage.MIMESVG, media.FileType)

	_, rc, err := svc.Open(ctx, media.ID, nil)
	require.NoError(t, err)
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)

	assert.NotContains(t, string(stored), "<script")
	assert.NotContains(t, string(stored), "onclick")
	assert.Contains(t, string(stored), "<rect")
}

func TestMediaService_PrivateFileIsOwnerOnly(t *testing.T) {
	svc := NewMediaService(newFakeMediaRepo(), newFakeBlobs(), 1<<20)
	ctx := context.Background()
	owner := uuid.New()
	stranger := uuid.New()

	media, err := svc.Upload(ctx, owner, UploadInput{
		Filename: "draft.png",
		Body:     bytes.NewReader(pngBytes(t)),
		Private:  true,
	})
	require.NoError(t, err)
	assert.False(t, media.IsPublic)

	_, _, err = svc.Open(ctx, media.ID, nil)
	assert.True(t, errors.Is(err, apperror.ErrMediaNotFound))

	_, _, err = svc.Open(ctx, media.ID, &stranger)
	assert.True(t, errors.Is(err, apperror.ErrMediaNotFound))

	_, rc, err := svc.Open(ctx, media.ID, &owner)
	require.NoError(t, err)
	rc.Close()
}

func TestMediaService_DeleteRemovesObject(t *testing.T) {
	blobs := newFakeBlobs()
	svc := NewMediaService(newFakeMediaRepo(), blobs, 1<<20)
	ctx := context.Background()
	owner := uuid.New()

	media, err := svc.Upload(ctx, owner, UploadInput{Filename: "logo.png", Body: bytes.NewReader(pngBytes(t))})
	require.NoError(t, err)

	err = svc.Delete(ctx, media.ID, uuid.New())
	assert.True(t, errors.Is(err, apperror.ErrMediaNotFound))
	assert.Equal(t, 1, blobs.len())

	require.NoError(t, svc.Delete(ctx, media.ID, owner))
	assert.Equal(t, 0, blobs.len())

	_, err = svc.Get(ctx, media.ID, owner)
	assert.True(t, errors.Is(err, apperror.ErrMediaNotFound))
}
