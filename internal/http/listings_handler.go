package http

import (
	"context"
	"net/http"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ListingService interface {
	CreateListing(ctx context.Context, sellerID string, in service.ListingInput) (*domain.Book, error)
	GetListing(ctx context.Context, bookID uuid.UUID) (*domain.Book, error)
}

type ListingsHandler struct {
	base
	listings ListingService
}

func NewListingsHandler(listings ListingService, opts Options) *ListingsHandler {
	return &ListingsHandler{base: newBase(opts), listings: listings}
}

type CreateListingRequestDTO struct {
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// POST /api/v1/books
func (h *ListingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req CreateListingRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	book, err := h.listings.CreateListing(ctx, userID, service.ListingInput{
		Title:    req.Title,
		Author:   req.Author,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, book)
}

// GET /api/v1/books/{book_id}
func (h *ListingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookID, ok := uuidParam(w, r, "book_id")
	if !ok {
		return
	}

	book, err := h.listings.GetListing(ctx, bookID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, book)
}
