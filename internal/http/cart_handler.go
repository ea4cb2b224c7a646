package http

import (
	"context"
	"net/http"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/google/uuid"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, bookID uuid.UUID, quantity int) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID string, bookID uuid.UUID, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, bookID uuid.UUID) (*domain.Cart, error)
}

type CartHandler struct {
	base
	carts CartService
}

func NewCartHandler(carts CartService, opts Options) *CartHandler {
	return &CartHandler{base: newBase(opts), carts: carts}
}

type AddItemRequestDTO struct {
	BookID   uuid.UUID `json:"book_id"`
	Quantity int       `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BookID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_book_id", "book_id is required")
		return
	}

	cart, err := h.carts.AddItem(ctx, userID, req.BookID, req.Quantity)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, cart)
}

// PUT /api/v1/cart/items/{book_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	bookID, ok := uuidParam(w, r, "book_id")
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, userID, bookID, req.Quantity)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// DELETE /api/v1/cart/items/{book_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	bookID, ok := uuidParam(w, r, "book_id")
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, userID, bookID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}
