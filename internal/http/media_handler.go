package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/service"
	"github.com/google/uuid"
)

type MediaService interface {
	UploadCover(ctx context.Context, sellerID string, bookID uuid.UUID, up service.Upload) (*domain.Image, error)
	AttachDigitalFile(ctx context.Context, sellerID string, bookID uuid.UUID, up service.Upload) (*domain.DigitalFile, error)
	CoverPreview(ctx context.Context, bookID uuid.UUID) (*service.CoverPreview, error)
}

type MediaHandler struct {
	base
	media         MediaService
	maxUploadSize int64
}

func NewMediaHandler(media MediaService, opts Options) *MediaHandler {
	limit := opts.MaxUploadSize
	if limit <= 0 {
		limit = 50 << 20
	}
	return &MediaHandler{base: newBase(opts), media: media, maxUploadSize: limit}
}

type CoverPreviewResponseDTO struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at"`
	Degraded  bool       `json:"degraded"`
}

// POST /api/v1/books/{book_id}/cover
func (h *MediaHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, func(ctx context.Context, userID string, bookID uuid.UUID, up service.Upload) (any, error) {
		return h.media.UploadCover(ctx, userID, bookID, up)
	})
}

// POST /api/v1/books/{book_id}/file
func (h *MediaHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, func(ctx context.Context, userID string, bookID uuid.UUID, up service.Upload) (any, error) {
		return h.media.AttachDigitalFile(ctx, userID, bookID, up)
	})
}

type uploadFunc func(ctx context.Context, userID string, bookID uuid.UUID, up service.Upload) (any, error)

func (h *MediaHandler) upload(w http.ResponseWriter, r *http.Request, store uploadFunc) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	bookID, ok := uuidParam(w, r, "book_id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds size limit")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_upload", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	out, err := store(ctx, userID, bookID, service.Upload{
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, out)
}

// GET /api/v1/books/{book_id}/cover
func (h *MediaHandler) CoverPreview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookID, ok := uuidParam(w, r, "book_id")
	if !ok {
		return
	}

	p, err := h.media.CoverPreview(ctx, bookID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CoverPreviewResponseDTO{URL: p.URL, ExpiresAt: p.ExpiresAt, Degraded: p.Degraded})
}
