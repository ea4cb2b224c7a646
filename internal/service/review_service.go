package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ReviewInput struct {
	Rating  int
	Title   string
	Comment string
}

// ReviewService keeps each book's rating summary equal to a full re-scan of
// its reviews after every create, update and delete.
type ReviewService struct {
	reviews repository.ReviewRepository
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
}

func NewReviewService(reviews repository.ReviewRepository, orders repository.OrderRepository, catalog repository.CatalogRepository) *ReviewService {
	return &ReviewService{
		reviews: reviews,
		orders:  orders,
		catalog: catalog,
	}
}

func (s *ReviewService) CreateReview(ctx context.Context, userID string, bookID uuid.UUID, in ReviewInput) (*domain.Review, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}
	if !domain.ValidRating(in.Rating) {
		return nil, ErrInvalidRating
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	if _, err := s.catalog.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	orderID, err := s.orders.FindCompletedPurchase(ctx, userID, bookID)
	if errors.Is(err, repository.ErrPurchaseNotFound) {
		return nil, ErrNotPurchased
	}
	if err != nil {
		return nil, fmt.Errorf("verify purchase: %w", err)
	}

	review := &domain.Review{
		ID:        uuid.New(),
		BookID:    bookID,
		UserID:    userID,
		OrderID:   &orderID,
		Rating:    in.Rating,
		Title:     title,
		Comment:   strings.TrimSpace(in.Comment),
		HelpfulBy: []string{},
	}

	err = s.reviews.CreateReview(ctx, review, s.writeRating)
	if errors.Is(err, repository.ErrDuplicateReview) {
		return nil, ErrDuplicateReview
	}
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

func (s *ReviewService) UpdateReview(ctx context.Context, userID string, reviewID uuid.UUID, patch domain.ReviewPatch) (*domain.Review, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}
	if patch.Rating != nil && !domain.ValidRating(*patch.Rating) {
		return nil, ErrInvalidRating
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, ErrEmptyTitle
		}
		patch.Title = &title
	}

	review, err := s.reviews.UpdateReview(ctx, reviewID, authorOnly(userID), patch, s.writeRating)
	if err != nil {
		return nil, mapReviewErr(err, "update review")
	}
	return review, nil
}

func (s *ReviewService) DeleteReview(ctx context.Context, userID string, reviewID uuid.UUID) error {
	if err := requireIdentity(userID); err != nil {
		return err
	}
	if err := s.reviews.DeleteReview(ctx, reviewID, authorOnly(userID), s.writeRating); err != nil {
		return mapReviewErr(err, "delete review")
	}
	return nil
}

// MarkHelpful is idempotent per user. Authors cannot vote on their own review.
func (s *ReviewService) MarkHelpful(ctx context.Context, userID string, reviewID uuid.UUID) (*domain.Review, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}

	review, err := s.reviews.MarkHelpful(ctx, reviewID, userID, func(r *domain.Review) error {
		if r.UserID == userID {
			return ErrOwnReview
		}
		return nil
	})
	if err != nil {
		return nil, mapReviewErr(err, "mark helpful")
	}
	return review, nil
}

func (s *ReviewService) GetReview(ctx context.Context, reviewID uuid.UUID) (*domain.Review, error) {
	review, err := s.reviews.GetReview(ctx, reviewID)
	if err != nil {
		return nil, mapReviewErr(err, "get review")
	}
	return review, nil
}

func (s *ReviewService) ListReviews(ctx context.Context, bookID uuid.UUID) ([]*domain.Review, error) {
	reviews, err := s.reviews.ListReviews(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// writeRating runs inside the review transaction. Books missing from the
// catalog are skipped.
func (s *ReviewService) writeRating(ctx context.Context, bookID uuid.UUID, summary domain.BookRatingSummary) error {
	err := s.catalog.UpdateRating(ctx, bookID, summary)
	if errors.Is(err, repository.ErrBookNotFound) {
		zerolog.Ctx(ctx).Warn().Str("book_id", bookID.String()).Msg("rating not stored, book missing from catalog")
		return nil
	}
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	return nil
}

func authorOnly(userID string) repository.ReviewGuard {
	return func(r *domain.Review) error {
		if r.UserID != userID {
			return ErrNotReviewAuthor
		}
		return nil
	}
}

func mapReviewErr(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrReviewNotFound):
		return ErrReviewNotFound
	case errors.Is(err, ErrForbidden):
		return err
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
