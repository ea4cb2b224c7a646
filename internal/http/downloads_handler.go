package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/bookswap/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type FulfillmentService interface {
	GetDownloadLink(ctx context.Context, buyerID string, bookID uuid.UUID) (*service.DownloadLink, error)
	IssueDownloadToken(ctx context.Context, buyerID string, bookID uuid.UUID) (*service.DownloadToken, error)
	RedeemDownloadToken(ctx context.Context, token string) (*service.DownloadLink, error)
}

type DownloadsHandler struct {
	base
	fulfillment FulfillmentService
}

func NewDownloadsHandler(fulfillment FulfillmentService, opts Options) *DownloadsHandler {
	return &DownloadsHandler{base: newBase(opts), fulfillment: fulfillment}
}

type DownloadLinkResponseDTO struct {
	DownloadURL    string    `json:"download_url"`
	FileName       string    `json:"file_name"`
	ExpiresInHours int       `json:"expires_in_hours"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type DownloadTokenResponseDTO struct {
	Token            string `json:"token"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// POST /api/v1/books/{book_id}/download
func (h *DownloadsHandler) GetDownloadLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	bookID, ok := uuidParam(w, r, "book_id")
	if !ok {
		return
	}

	link, err := h.fulfillment.GetDownloadLink(ctx, userID, bookID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, DownloadLinkResponseDTO{
		DownloadURL:    link.URL,
		FileName:       link.FileName,
		ExpiresInHours: link.ExpiresInHours,
		ExpiresAt:      link.ExpiresAt,
	})
}

// POST /api/v1/books/{book_id}/download-token
func (h *DownloadsHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	bookID, ok := uuidParam(w, r, "book_id")
	if !ok {
		return
	}

	tok, err := h.fulfillment.IssueDownloadToken(ctx, userID, bookID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, DownloadTokenResponseDTO{
		Token:            tok.Token,
		ExpiresInSeconds: int(tok.ExpiresIn.Seconds()),
	})
}

// GET /api/v1/downloads/{token}. Public; the token is the credential.
func (h *DownloadsHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	link, err := h.fulfillment.RedeemDownloadToken(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	http.Redirect(w, r, link.URL, http.StatusFound)
}
