package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/portfolio-cms/apiserver/internal/logutil"
	"github.com/portfolio-cms/apiserver/types"
)

const (
	// MaxImageBytes is the largest accepted photo upload.
	MaxImageBytes = 5 << 20

	// UploadsPath is the URL prefix stored images are served under.
	UploadsPath = "/uploads/"

	photoKeyPrefix = "photos/"
)

// ErrImageTooLarge is returned for uploads over MaxImageBytes.
var ErrImageTooLarge = &ValidationError{Message: fmt.Sprintf("file too large: maximum size is %d MB", MaxImageBytes>>20)}

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// PhotoRepository defines persistence operations for photos.
type PhotoRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Photo, int, error)
	Get(ctx context.Context, id int) (types.Photo, error)
	Create(ctx context.Context, photo types.Photo) (types.Photo, error)
	Update(ctx context.Context, photo types.Photo) (types.Photo, error)
	Delete(ctx context.Context, id int) error
}

// ObjectStore stores uploaded image bytes.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Upload is an image file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PhotoPatch holds optional photo metadata; nil fields are left unchanged.
type PhotoPatch struct {
	Title       *string
	Description *string
	Category    *string
}

// PhotoService encapsulates photo use-cases.
type PhotoService struct {
	repo     PhotoRepository
	objects  ObjectStore
	notifier *Notifier
}

func NewPhotoService(repo PhotoRepository, objects ObjectStore, notifier *Notifier) *PhotoService {
	return &PhotoService{
		repo:     repo,
		objects:  objects,
		notifier: notifier,
	}
}

func (s *PhotoService) List(ctx context.Context, offset, limit int) ([]types.Photo, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *PhotoService) Get(ctx context.Context, id int) (types.Photo, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores the image, then records the photo. Nothing is
// persisted when validation fails.
func (s *PhotoService) Create(ctx context.Context, photo types.Photo, upload *Upload) (types.Photo, error) {
	if upload == nil {
		return types.Photo{}, invalid("no file uploaded")
	}
	if err := ValidateUpload(*upload); err != nil {
		return types.Photo{}, err
	}
	photo.Title = strings.TrimSpace(photo.Title)
	if photo.Title == "" {
		return types.Photo{}, invalid("title is required")
	}

	key, err := s.putImage(ctx, *upload)
	if err != nil {
		return types.Photo{}, err
	}
	photo.ObjectKey = key
	photo.ImageURL = UploadsPath + key

	created, err := s.repo.Create(ctx, photo)
	if err != nil {
		s.removeObject(ctx, key)
		return types.Photo{}, err
	}
	s.notifier.Notify(ctx, types.EventPhotoCreated, created.ID)
	return created, nil
}

// Update applies patch and, when upload is non-nil, replaces the image. The
// previous image is removed once the new record is saved.
func (s *PhotoService) Update(ctx context.Context, id int, patch PhotoPatch, upload *Upload) (types.Photo, error) {
	if upload != nil {
		if err := ValidateUpload(*upload); err != nil {
			return types.Photo{}, err
		}
	}

	photo, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Photo{}, err
	}

	if patch.Title != nil {
		photo.Title = strings.TrimSpace(*patch.Title)
		if photo.Title == "" {
			return types.Photo{}, invalid("title cannot be empty")
		}
	}
	if patch.Description != nil {
		photo.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		photo.Category = strings.TrimSpace(*patch.Category)
	}

	oldKey := photo.ObjectKey
	newKey := ""
	if upload != nil {
		newKey, err = s.putImage(ctx, *upload)
		if err != nil {
			return types.Photo{}, err
		}
		photo.ObjectKey = newKey
		photo.ImageURL = UploadsPath + newKey
	}

	updated, err := s.repo.Update(ctx, photo)
	if err != nil {
		if newKey != "" {
			s.removeObject(ctx, newKey)
		}
		return types.Photo{}, err
	}
	if newKey != "" && oldKey != "" {
		s.removeObject(ctx, oldKey)
	}
	s.notifier.Notify(ctx, types.EventPhotoUpdated, updated.ID)
	return updated, nil
}

// Delete removes the photo record and its stored image.
func (s *PhotoService) Delete(ctx context.Context, id int) error {
	photo, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.removeObject(ctx, photo.ObjectKey)
	s.notifier.Notify(ctx, types.EventPhotoDeleted, id)
	return nil
}

// OpenImage opens a stored image by its object key.
func (s *PhotoService) OpenImage(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.objects.Get(ctx, key)
}

// ValidateUpload checks that upload is a non-empty jpg/jpeg/png image of at
// most MaxImageBytes. Both the file extension and the declared content type
// must be allowed.
func ValidateUpload(upload Upload) error {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	mediaType, _, err := mime.ParseMediaType(upload.ContentType)
	if !allowedImageExtensions[ext] || err != nil || !allowedImageTypes[strings.ToLower(mediaType)] {
		return invalid("only .jpg, .jpeg, and .png files are allowed")
	}
	if len(upload.Data) == 0 {
		return invalid("uploaded file is empty")
	}
	if len(upload.Data) > MaxImageBytes {
		return ErrImageTooLarge
	}
	return nil
}

func (s *PhotoService) putImage(ctx context.Context, upload Upload) (string, error) {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	key := path.Join(strings.TrimSuffix(photoKeyPrefix, "/"), uuid.NewString()+ext)

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = upload.ContentType
	}

	if err := s.objects.Put(ctx, key, bytes.NewReader(upload.Data), int64(len(upload.Data)), contentType); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return key, nil
}

func (s *PhotoService) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		logger := logutil.GetOrDefault(ctx)
		logger.Warn().Err(err).Str("object_key", key).Msg("remove stored image")
	}
}
