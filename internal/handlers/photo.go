package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/portfolio-cms/apiserver/internal/logutil"
	"github.com/portfolio-cms/apiserver/internal/services"
	"github.com/portfolio-cms/apiserver/internal/storage"
	"github.com/portfolio-cms/apiserver/types"
)

const (
	maxMultipartMemory   = 8 << 20
	maxPhotoRequestBytes = services.MaxImageBytes + 1<<20
	formFieldImage       = "image"
	formFieldTitle       = "title"
	formFieldDesc        = "description"
	formFieldCategory    = "category"
)

// PhotoService is the photo behaviour the handlers depend on.
type PhotoService interface {
	List(ctx context.Context, offset, limit int) ([]types.Photo, int, error)
	Get(ctx context.Context, id int) (types.Photo, error)
	Create(ctx context.Context, photo types.Photo, upload *services.Upload) (types.Photo, error)
	Update(ctx context.Context, id int, patch services.PhotoPatch, upload *services.Upload) (types.Photo, error)
	Delete(ctx context.Context, id int) error
}

// ImageOpener opens stored images by object key.
type ImageOpener interface {
	OpenImage(ctx context.Context, key string) (io.ReadCloser, error)
}

// PhotoHandler provides HTTP handlers for photos.
type PhotoHandler struct {
	photoService PhotoService
}

func NewPhotoHandler(photoService PhotoService) *PhotoHandler {
	return &PhotoHandler{photoService: photoService}
}

// PhotoRouter registers photo routes on the given router.
func PhotoRouter(r chi.Router, photoService PhotoService) {
	handler := NewPhotoHandler(photoService)

	r.Get("/", handler.ListPhotos)
	r.Post("/", handler.CreatePhoto)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", handler.GetPhoto)
		r.Put("/", handler.UpdatePhoto)
		r.Delete("/", handler.DeletePhoto)
	})
}

func (h *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	photos, total, err := h.photoService.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "photo not found", "failed to list photos")
		return
	}

	setTotalCount(w, total)
	writeJSON(w, http.StatusOK, photos)
}

func (h *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	photo, err := h.photoService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "photo not found", "failed to fetch photo")
		return
	}

	writeJSON(w, http.StatusOK, photo)
}

func (h *PhotoHandler) CreatePhoto(w http.ResponseWriter, r *http.Request) {
	form, err := parsePhotoForm(w, r)
	if err != nil {
		writeServiceError(w, r, err, "photo not found", "failed to read upload")
		return
	}

	photo := types.Photo{}
	if form.Title != nil {
		photo.Title = *form.Title
	}
	if form.Description != nil {
		photo.Description = *form.Description
	}
	if form.Category != nil {
		photo.Category = *form.Category
	}

	created, err := h.photoService.Create(r.Context(), photo, form.Image)
	if err != nil {
		writeServiceError(w, r, err, "photo not found", "failed to create photo")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *PhotoHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	form, err := parsePhotoForm(w, r)
	if err != nil {
		writeServiceError(w, r, err, "photo not found", "failed to read upload")
		return
	}

	updated, err := h.photoService.Update(r.Context(), id, services.PhotoPatch{
		Title:       form.Title,
		Description: form.Description,
		Category:    form.Category,
	}, form.Image)
	if err != nil {
		writeServiceError(w, r, err, "photo not found", "failed to update photo")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.photoService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "photo not found", "failed to delete photo")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "photo deleted"})
}

// ServeUploads streams stored images mounted under a wildcard route.
func ServeUploads(images ImageOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")

		rc, err := images.OpenImage(r.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				writeError(w, http.StatusNotFound, "file not found")
				return
			}
			logger := logutil.GetOrDefault(r.Context())
			logger.Error().Err(err).Str("object_key", key).Msg("open stored image")
			writeError(w, http.StatusInternalServerError, "failed to read file")
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(path.Ext(key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, rc)
	}
}

// PhotoForm is the parsed multipart payload for photo writes. Nil fields
// were not present in the form.
type PhotoForm struct {
	Title       *string
	Description *string
	Category    *string
	Image       *services.Upload
}

func parsePhotoForm(w http.ResponseWriter, r *http.Request) (PhotoForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoRequestBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > maxPhotoRequestBytes {
			return PhotoForm{}, services.ErrImageTooLarge
		}
		return PhotoForm{}, &services.ValidationError{Message: "invalid multipart form"}
	}

	form := r.MultipartForm
	image, err := parseImageFile(form)
	if err != nil {
		return PhotoForm{}, err
	}

	return PhotoForm{
		Title:       formValue(form, formFieldTitle),
		Description: formValue(form, formFieldDesc),
		Category:    formValue(form, formFieldCategory),
		Image:       image,
	}, nil
}

func formValue(form *multipart.Form, field string) *string {
	values, ok := form.Value[field]
	if !ok || len(values) == 0 {
		return nil
	}
	value := values[0]
	return &value
}

func parseImageFile(form *multipart.Form) (*services.Upload, error) {
	files := form.File[formFieldImage]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, &services.ValidationError{Message: "only one image file is allowed"}
	}

	fileHeader := files[0]
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}

	data, err := readFileLimited(file, services.MaxImageBytes)
	_ = file.Close()
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			return nil, services.ErrImageTooLarge
		}
		return nil, err
	}

	return &services.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
