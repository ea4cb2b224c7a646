package repository

import (
	"context"
	"errors"

	"github.com/fjod/bookswap/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrItemNotFound     = errors.New("item not found in cart")
	ErrQuantityLimit    = errors.New("cart line quantity limit exceeded")
	ErrOrderNotFound    = errors.New("order not found")
	ErrBookNotFound     = errors.New("book not found")
	ErrReviewNotFound   = errors.New("review not found")
	ErrDuplicateReview  = errors.New("review for this book already exists")
	ErrPurchaseNotFound = errors.New("no completed purchase for this book")
)

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// CartRepository mutations lock the cart row and return the updated cart.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// AddItem merges into an existing line and fails with ErrQuantityLimit
	// when the merged quantity would pass domain.MaxItemQuantity.
	AddItem(ctx context.Context, userID string, item domain.CartItem) (*domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID string, bookID uuid.UUID, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, bookID uuid.UUID) (*domain.Cart, error)
}

// SplitFunc turns a locked cart into the orders to persist. Events added to
// out are committed with the orders.
type SplitFunc func(ctx context.Context, cart *domain.Cart, out *Outbox) ([]*domain.Order, error)

// OrderMutation edits a locked order. Returning an error aborts the update.
type OrderMutation func(order *domain.Order, out *Outbox) error

type OrderRepository interface {
	// PlaceOrders inserts the split orders and clears the cart in one transaction.
	PlaceOrders(ctx context.Context, buyerID string, split SplitFunc) ([]*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, mutate OrderMutation) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error)
	// FindCompletedPurchase returns the latest paid order holding the book.
	FindCompletedPurchase(ctx context.Context, buyerID string, bookID uuid.UUID) (uuid.UUID, error)
}

// RatingWriter publishes a recomputed summary while the review lock is held.
type RatingWriter func(ctx context.Context, bookID uuid.UUID, summary domain.BookRatingSummary) error

// ReviewGuard checks a locked review before it is changed.
type ReviewGuard func(review *domain.Review) error

type ReviewRepository interface {
	CreateReview(ctx context.Context, review *domain.Review, onRating RatingWriter) error
	UpdateReview(ctx context.Context, id uuid.UUID, guard ReviewGuard, patch domain.ReviewPatch, onRating RatingWriter) (*domain.Review, error)
	DeleteReview(ctx context.Context, id uuid.UUID, guard ReviewGuard, onRating RatingWriter) error
	GetReview(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	ListReviews(ctx context.Context, bookID uuid.UUID) ([]*domain.Review, error)
	MarkHelpful(ctx context.Context, id uuid.UUID, userID string, guard ReviewGuard) (*domain.Review, error)
}

type CatalogRepository interface {
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id uuid.UUID) (*domain.Book, error)
	GetBooks(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Book, error)
	SetCover(ctx context.Context, id uuid.UUID, cover domain.Image) error
	SetDigitalFile(ctx context.Context, id uuid.UUID, file domain.DigitalFile) error
	UpdateRating(ctx context.Context, id uuid.UUID, summary domain.BookRatingSummary) error
}
