package http

import (
	"context"
	"errors"
	"io"

	"github.com/fjod/bookswap/internal/auth"
	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/service"
	"github.com/google/uuid"
)

type tokenAuth map[string]string

func (t tokenAuth) Authenticate(_ context.Context, token string) (auth.Identity, error) {
	if id, ok := t[token]; ok {
		return auth.Identity{UserID: id}, nil
	}
	return auth.Identity{}, auth.ErrInvalidToken
}

type stubListings struct {
	last   service.ListingInput
	seller string
	err    error
}

func (s *stubListings) CreateListing(_ context.Context, sellerID string, in service.ListingInput) (*domain.Book, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.last, s.seller = in, sellerID
	return &domain.Book{ID: uuid.New(), SellerID: sellerID, Title: in.Title, Quantity: in.Quantity}, nil
}

func (s *stubListings) GetListing(_ context.Context, bookID uuid.UUID) (*domain.Book, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Book{ID: bookID, SellerID: "seller-1", Title: "Dune"}, nil
}

type stubCarts struct {
	cart   *domain.Cart
	err    error
	lastID string
	lastQ  int
}

func (s *stubCarts) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	s.lastID = userID
	return s.cart, s.err
}

func (s *stubCarts) AddItem(_ context.Context, userID string, _ uuid.UUID, q int) (*domain.Cart, error) {
	s.lastID, s.lastQ = userID, q
	return s.cart, s.err
}

func (s *stubCarts) UpdateQuantity(_ context.Context, userID string, _ uuid.UUID, q int) (*domain.Cart, error) {
	s.lastID, s.lastQ = userID, q
	return s.cart, s.err
}

func (s *stubCarts) RemoveItem(_ context.Context, userID string, _ uuid.UUID) (*domain.Cart, error) {
	s.lastID = userID
	return s.cart, s.err
}

type stubOrders struct {
	orders  []*domain.Order
	err     error
	lastIn  service.PlaceOrderInput
	lastFul domain.FulfillmentStatus
}

func (s *stubOrders) CreateOrdersFromCart(_ context.Context, _ string, in service.PlaceOrderInput) (*service.PlaceOrderResult, error) {
	s.lastIn = in
	if s.err != nil {
		return nil, s.err
	}
	return &service.PlaceOrderResult{Orders: s.orders, Count: len(s.orders)}, nil
}

func (s *stubOrders) GetOrder(context.Context, string, uuid.UUID) (*domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.orders[0], nil
}

func (s *stubOrders) ListBuyerOrders(context.Context, string) ([]*domain.Order, error) {
	return s.orders, s.err
}

func (s *stubOrders) ListSellerOrders(context.Context, string) ([]*domain.Order, error) {
	return s.orders, s.err
}

func (s *stubOrders) UpdateFulfillment(_ context.Context, _ string, _ uuid.UUID, st domain.FulfillmentStatus, _ *string) (*domain.Order, error) {
	s.lastFul = st
	if s.err != nil {
		return nil, s.err
	}
	return s.orders[0], nil
}

func (s *stubOrders) UpdatePayment(context.Context, string, uuid.UUID, domain.PaymentStatus, *string) (*domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.orders[0], nil
}

type stubFulfillment struct {
	link *service.DownloadLink
	tok  *service.DownloadToken
	err  error
}

func (s *stubFulfillment) GetDownloadLink(context.Context, string, uuid.UUID) (*service.DownloadLink, error) {
	return s.link, s.err
}

func (s *stubFulfillment) IssueDownloadToken(context.Context, string, uuid.UUID) (*service.DownloadToken, error) {
	return s.tok, s.err
}

func (s *stubFulfillment) RedeemDownloadToken(_ context.Context, token string) (*service.DownloadLink, error) {
	if token != "good" {
		return nil, service.ErrUnknownToken
	}
	return s.link, s.err
}

type stubMedia struct {
	preview  *service.CoverPreview
	err      error
	received []byte
	upload   service.Upload
}

func (s *stubMedia) UploadCover(_ context.Context, _ string, _ uuid.UUID, up service.Upload) (*domain.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	data, err := io.ReadAll(up.Body)
	if err != nil {
		return nil, err
	}
	s.received, s.upload = data, up
	return &domain.Image{URL: "http://blob.local/covers/x.png", Key: "covers/x.png"}, nil
}

func (s *stubMedia) AttachDigitalFile(context.Context, string, uuid.UUID, service.Upload) (*domain.DigitalFile, error) {
	return nil, errors.New("not used")
}

func (s *stubMedia) CoverPreview(context.Context, uuid.UUID) (*service.CoverPreview, error) {
	return s.preview, s.err
}

type stubReviews struct {
	reviews []*domain.Review
	err     error
}

func (s *stubReviews) CreateReview(_ context.Context, userID string, bookID uuid.UUID, in service.ReviewInput) (*domain.Review, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Review{ID: uuid.New(), BookID: bookID, UserID: userID, Rating: in.Rating, Title: in.Title}, nil
}

func (s *stubReviews) UpdateReview(context.Context, string, uuid.UUID, domain.ReviewPatch) (*domain.Review, error) {
	return nil, s.err
}

func (s *stubReviews) DeleteReview(context.Context, string, uuid.UUID) error {
	return s.err
}

func (s *stubReviews) MarkHelpful(context.Context, string, uuid.UUID) (*domain.Review, error) {
	return nil, s.err
}

func (s *stubReviews) GetReview(_ context.Context, reviewID uuid.UUID) (*domain.Review, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Review{ID: reviewID, UserID: "buyer-2", Rating: 4, HelpfulBy: []string{"buyer-1"}}, nil
}

func (s *stubReviews) ListReviews(context.Context, uuid.UUID) ([]*domain.Review, error) {
	return s.reviews, s.err
}
