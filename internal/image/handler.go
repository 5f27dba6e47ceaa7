package image

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medscan/image-service/internal/middleware"
	"github.com/medscan/image-service/internal/response"
)

// Handler holds HTTP handlers for image endpoints.
type Handler struct {
	svc           *Service
	maxUploadSize int64
}

// NewHandler creates a new image Handler.
func NewHandler(svc *Service, maxUploadSize int64) *Handler {
	return &Handler{svc: svc, maxUploadSize: maxUploadSize}
}

// Upload godoc
//
//	@Summary		Upload an image
//	@Description	Streams a multipart file into object storage and records its metadata.
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"image file (png, jpg, jpeg, gif)"
//	@Success		201		{object}	Image
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		response.BadRequest(w, "No file part")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "No file part")
		return
	}
	defer file.Close()

	img, err := h.svc.Upload(r.Context(), ownerID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, img)
}

func (h *Handler) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoFile):
		response.BadRequest(w, "No file part")
	case errors.Is(err, ErrEmptyFilename):
		response.BadRequest(w, "No selected file")
	case errors.Is(err, ErrInvalidFileType):
		response.BadRequest(w, "Invalid file type")
	case errors.Is(err, ErrInvalidOwner):
		response.BadRequest(w, "Invalid user id")
	case errors.Is(err, ErrStorage):
		response.ErrorDetails(w, http.StatusInternalServerError, "Failed to upload to storage", err.Error())
	case errors.Is(err, ErrPersistence):
		response.ErrorDetails(w, http.StatusInternalServerError, "Failed to save metadata", err.Error())
	default:
		response.InternalError(w)
	}
}

// List godoc
//
//	@Summary		List images
//	@Description	Returns all image records owned by the caller.
//	@Tags			images
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		Image
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/images [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())

	images, err := h.svc.List(r.Context(), ownerID)
	if err != nil {
		response.ErrorDetails(w, http.StatusInternalServerError, "Failed to list images", err.Error())
		return
	}

	response.JSON(w, http.StatusOK, images)
}

// Get godoc
//
//	@Summary		Get image metadata
//	@Tags			images
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"image id"
//	@Success		200	{object}	Image
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		403	{object}	response.ErrorBody
//	@Failure		404	{object}	response.ErrorBody
//	@Router			/images/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	img, err := h.svc.GetMetadata(r.Context(), ownerID, id)
	if err != nil {
		h.writeAccessError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, img)
}

// Download godoc
//
//	@Summary		Download image bytes
//	@Description	Streams the stored object back with its declared content type.
//	@Tags			images
//	@Produce		octet-stream
//	@Security		BearerAuth
//	@Param			id	path	string	true	"image id"
//	@Success		200	{file}		file
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		403	{object}	response.ErrorBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/images/{id}/download [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	rc, img, err := h.svc.Download(r.Context(), ownerID, id)
	if err != nil {
		h.writeAccessError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", img.FilenameOriginal))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// Delete godoc
//
//	@Summary		Delete an image
//	@Description	Removes the stored object and its metadata record.
//	@Tags			images
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"image id"
//	@Success		200	{object}	response.MessageBody
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		403	{object}	response.ErrorBody
//	@Failure		404	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/images/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.UserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), ownerID, id); err != nil {
		h.writeAccessError(w, err)
		return
	}

	response.Message(w, "Image deleted")
}

func (h *Handler) writeAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "Image not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "You do not have access to this image")
	case errors.Is(err, ErrStorage):
		response.ErrorDetails(w, http.StatusInternalServerError, "Storage operation failed", err.Error())
	case errors.Is(err, ErrPersistence):
		response.ErrorDetails(w, http.StatusInternalServerError, "Metadata operation failed", err.Error())
	default:
		response.InternalError(w)
	}
}
