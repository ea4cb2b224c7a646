package http

import (
	"context"
	"net/http"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/service"
	"github.com/google/uuid"
)

type ReviewService interface {
	CreateReview(ctx context.Context, userID string, bookID uuid.UUID, in service.ReviewInput) (*domain.Review, error)
	UpdateReview(ctx context.Context, userID string, reviewID uuid.UUID, patch domain.ReviewPatch) (*domain.Review, error)
	DeleteReview(ctx context.Context, userID string, reviewID uuid.UUID) error
	MarkHelpful(ctx context.Context, userID string, reviewID uuid.UUID) (*domain.Review, error)
	GetReview(ctx context.Context, reviewID uuid.UUID) (*domain.Review, error)
	ListReviews(ctx context.Context, bookID uuid.UUID) ([]*domain.Review, error)
}

type ReviewsHandler struct {
	base
	reviews ReviewService
}

func NewReviewsHandler(reviews ReviewService, opts Options) *ReviewsHandler {
	return &ReviewsHandler{base: newBase(opts), reviews: reviews}
}

type CreateReviewRequestDTO struct {
	Rating  int    `json:"rating"`
	Title   string `json:"title"`
	Comment string `json:"comment"`
}

// GET /api/v1/books/{book_id}/reviews
func (h *ReviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookID, ok := uuidParam(w, r, "book_id")
	if !ok {
		return
	}

	reviews, err := h.reviews.ListReviews(ctx, bookID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if reviews == nil {
		reviews = make([]*domain.Review, 0)
	}
	respondJSON(w, http.StatusOK, reviews)
}

// POST /api/v1/books/{book_id}/reviews
func (h *ReviewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	bookID, ok := uuidParam(w, r, "book_id")
	if !ok {
		return
	}
	var req CreateReviewRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	review, err := h.reviews.CreateReview(ctx, userID, bookID, service.ReviewInput{
		Rating:  req.Rating,
		Title:   req.Title,
		Comment: req.Comment,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, review)
}

// GET /api/v1/reviews/{review_id}
func (h *ReviewsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	reviewID, ok := uuidParam(w, r, "review_id")
	if !ok {
		return
	}

	review, err := h.reviews.GetReview(ctx, reviewID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, review)
}

// PATCH /api/v1/reviews/{review_id}
func (h *ReviewsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	reviewID, ok := uuidParam(w, r, "review_id")
	if !ok {
		return
	}
	var patch domain.ReviewPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	review, err := h.reviews.UpdateReview(ctx, userID, reviewID, patch)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, review)
}

// DELETE /api/v1/reviews/{review_id}
func (h *ReviewsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	reviewID, ok := uuidParam(w, r, "review_id")
	if !ok {
		return
	}

	if err := h.reviews.DeleteReview(ctx, userID, reviewID); err != nil {
		h.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/reviews/{review_id}/helpful
func (h *ReviewsHandler) MarkHelpful(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, userID, ok := h.begin(w, r)
	if !ok {
		return
	}
	defer cancel()

	reviewID, ok := uuidParam(w, r, "review_id")
	if !ok {
		return
	}

	review, err := h.reviews.MarkHelpful(ctx, userID, reviewID)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, review)
}
