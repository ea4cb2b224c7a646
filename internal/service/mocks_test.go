package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/fjod/bookswap/internal/blob"
	"github.com/fjod/bookswap/internal/cache"
	"github.com/fjod/bookswap/internal/domain"
	"github.com/fjod/bookswap/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

// memStore implements CartRepository and OrderRepository over shared state
// so order placement can see and clear carts.
type memStore struct {
	mu     sync.RWMutex
	carts  map[string]*domain.Cart
	orders []*domain.Order
	// outbox holds messages from committed writes only.
	outbox []repository.OutboxMessage

	// failInsertAt makes the n-th order insert (1-based) of PlaceOrders fail.
	failInsertAt int
	getErr       error
	getCalls     int
}

func newMemStore() *memStore {
	return &memStore{carts: make(map[string]*domain.Cart)}
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderLineItem(nil), o.Items...)
	return &cp
}

func (m *memStore) recompute(c *domain.Cart) {
	total, _ := c.ComputeTotal(currency.USD)
	c.Total = total
	c.UpdatedAt = time.Now()
}

func (m *memStore) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (m *memStore) AddItem(_ context.Context, userID string, item domain.CartItem) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{ID: uuid.New(), UserID: userID, CreatedAt: time.Now()}
		m.carts[userID] = c
	}
	merged := false
	for i := range c.Items {
		if c.Items[i].BookID == item.BookID {
			if c.Items[i].Quantity+item.Quantity > domain.MaxItemQuantity {
				return nil, repository.ErrQuantityLimit
			}
			c.Items[i].Quantity += item.Quantity
			merged = true
		}
	}
	if !merged {
		c.Items = append(c.Items, item)
	}
	m.recompute(c)
	return cloneCart(c), nil
}

func (m *memStore) UpdateItemQuantity(_ context.Context, userID string, bookID uuid.UUID, quantity int) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	for i := range c.Items {
		if c.Items[i].BookID == bookID {
			c.Items[i].Quantity = quantity
			m.recompute(c)
			return cloneCart(c), nil
		}
	}
	return nil, repository.ErrItemNotFound
}

func (m *memStore) RemoveItem(_ context.Context, userID string, bookID uuid.UUID) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.BookID != bookID {
			kept = append(kept, item)
		}
	}
	c.Items = kept
	m.recompute(c)
	return cloneCart(c), nil
}

// PlaceOrders stages inserts and commits only when every step succeeded.
func (m *memStore) PlaceOrders(ctx context.Context, buyerID string, split repository.SplitFunc) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[buyerID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}

	out := &repository.Outbox{}
	orders, err := split(ctx, cloneCart(c), out)
	if err != nil {
		return nil, err
	}

	staged := make([]*domain.Order, 0, len(orders))
	for i, o := range orders {
		if m.failInsertAt == i+1 {
			return nil, fmt.Errorf("insert order: %w", errors.New("connection reset"))
		}
		staged = append(staged, cloneOrder(o))
	}

	m.orders = append(m.orders, staged...)
	m.outbox = append(m.outbox, out.Messages()...)
	c.Items = nil
	m.recompute(c)
	return orders, nil
}

func (m *memStore) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *memStore) UpdateOrder(_ context.Context, id uuid.UUID, mutate repository.OrderMutation) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.orders {
		if o.ID != id {
			continue
		}
		cp := cloneOrder(o)
		out := &repository.Outbox{}
		if err := mutate(cp, out); err != nil {
			return nil, err
		}
		cp.UpdatedAt = time.Now()
		m.orders[i] = cp
		m.outbox = append(m.outbox, out.Messages()...)
		return cloneOrder(cp), nil
	}
	return nil, repository.ErrOrderNotFound
}

func (m *memStore) outboxTopics() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	topics := make([]string, 0, len(m.outbox))
	for _, msg := range m.outbox {
		topics = append(topics, msg.Topic)
	}
	return topics
}

func (m *memStore) list(match func(*domain.Order) bool) []*domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Order, 0)
	for _, o := range m.orders {
		if match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	return out
}

func (m *memStore) ListByBuyer(_ context.Context, buyerID string) ([]*domain.Order, error) {
	return m.list(func(o *domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (m *memStore) ListBySeller(_ context.Context, sellerID string) ([]*domain.Order, error) {
	return m.list(func(o *domain.Order) bool { return o.SellerID == sellerID }), nil
}

func (m *memStore) FindCompletedPurchase(_ context.Context, buyerID string, bookID uuid.UUID) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.orders) - 1; i >= 0; i-- {
		o := m.orders[i]
		if o.BuyerID == buyerID && o.PaymentStatus == domain.PaymentCompleted && o.Contains(bookID) {
			return o.ID, nil
		}
	}
	return uuid.Nil, repository.ErrPurchaseNotFound
}

// addOrder inserts an order directly, bypassing the cart.
func (m *memStore) addOrder(o *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, cloneOrder(o))
}

type memCatalog struct {
	mu        sync.RWMutex
	books     map[uuid.UUID]*domain.Book
	ratingErr error
}

func newMemCatalog(books ...*domain.Book) *memCatalog {
	c := &memCatalog{books: make(map[uuid.UUID]*domain.Book)}
	for _, b := range books {
		c.books[b.ID] = b
	}
	return c
}

func (c *memCatalog) CreateBook(_ context.Context, book *domain.Book) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	cp := *book
	c.books[book.ID] = &cp
	return nil
}

func (c *memCatalog) GetBook(_ context.Context, id uuid.UUID) (*domain.Book, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.books[id]
	if !ok {
		return nil, repository.ErrBookNotFound
	}
	cp := *b
	return &cp, nil
}

func (c *memCatalog) GetBooks(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Book, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[uuid.UUID]*domain.Book)
	for _, id := range ids {
		if b, ok := c.books[id]; ok {
			cp := *b
			out[id] = &cp
		}
	}
	return out, nil
}

func (c *memCatalog) update(id uuid.UUID, fn func(*domain.Book)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.books[id]
	if !ok {
		return repository.ErrBookNotFound
	}
	fn(b)
	return nil
}

func (c *memCatalog) SetCover(_ context.Context, id uuid.UUID, cover domain.Image) error {
	return c.update(id, func(b *domain.Book) { b.Cover = &cover })
}

func (c *memCatalog) SetDigitalFile(_ context.Context, id uuid.UUID, file domain.DigitalFile) error {
	return c.update(id, func(b *domain.Book) { b.DigitalFile = &file })
}

func (c *memCatalog) UpdateRating(_ context.Context, id uuid.UUID, summary domain.BookRatingSummary) error {
	if c.ratingErr != nil {
		return c.ratingErr
	}
	return c.update(id, func(b *domain.Book) { b.Rating = summary })
}

func (c *memCatalog) setPrice(id uuid.UUID, price domain.Money) {
	_ = c.update(id, func(b *domain.Book) { b.Price = price })
}

// memReviews mirrors the repository contract: mutation, full re-scan and
// rating write happen atomically under one lock.
type memReviews struct {
	mu      sync.Mutex
	reviews map[uuid.UUID]*domain.Review
	helpful map[uuid.UUID]map[string]struct{}
}

func newMemReviews() *memReviews {
	return &memReviews{
		reviews: make(map[uuid.UUID]*domain.Review),
		helpful: make(map[uuid.UUID]map[string]struct{}),
	}
}

func (m *memReviews) rescan(ctx context.Context, bookID uuid.UUID, onRating repository.RatingWriter) error {
	sum, count := 0, 0
	for _, r := range m.reviews {
		if r.BookID == bookID {
			sum += r.Rating
			count++
		}
	}
	return onRating(ctx, bookID, domain.NewRatingSummary(sum, count))
}

func (m *memReviews) CreateReview(ctx context.Context, review *domain.Review, onRating repository.RatingWriter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.BookID == review.BookID && r.UserID == review.UserID {
			return repository.ErrDuplicateReview
		}
	}
	cp := *review
	m.reviews[review.ID] = &cp
	if err := m.rescan(ctx, review.BookID, onRating); err != nil {
		delete(m.reviews, review.ID)
		return err
	}
	return nil
}

func (m *memReviews) UpdateReview(ctx context.Context, id uuid.UUID, guard repository.ReviewGuard, patch domain.ReviewPatch, onRating repository.RatingWriter) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	if err := guard(r); err != nil {
		return nil, err
	}
	before := *r
	patch.Apply(r)
	if err := m.rescan(ctx, r.BookID, onRating); err != nil {
		*r = before
		return nil, err
	}
	return cloneReview(r), nil
}

func (m *memReviews) DeleteReview(ctx context.Context, id uuid.UUID, guard repository.ReviewGuard, onRating repository.RatingWriter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return repository.ErrReviewNotFound
	}
	if err := guard(r); err != nil {
		return err
	}
	delete(m.reviews, id)
	if err := m.rescan(ctx, r.BookID, onRating); err != nil {
		m.reviews[id] = r
		return err
	}
	return nil
}

func (m *memReviews) GetReview(_ context.Context, id uuid.UUID) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	return cloneReview(r), nil
}

func (m *memReviews) ListReviews(_ context.Context, bookID uuid.UUID) ([]*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Review, 0)
	for _, r := range m.reviews {
		if r.BookID == bookID {
			out = append(out, cloneReview(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HelpfulCount > out[j].HelpfulCount })
	return out, nil
}

func (m *memReviews) MarkHelpful(_ context.Context, id uuid.UUID, userID string, guard repository.ReviewGuard) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	if err := guard(r); err != nil {
		return nil, err
	}
	if m.helpful[id] == nil {
		m.helpful[id] = make(map[string]struct{})
	}
	if _, seen := m.helpful[id][userID]; !seen {
		m.helpful[id][userID] = struct{}{}
		r.HelpfulBy = append(r.HelpfulBy, userID)
	}
	r.HelpfulCount = len(m.helpful[id])
	return cloneReview(r), nil
}

func cloneReview(r *domain.Review) *domain.Review {
	cp := *r
	cp.HelpfulBy = append([]string{}, r.HelpfulBy...)
	return &cp
}

type memCartCache struct {
	mu      sync.RWMutex
	carts   map[string]*domain.Cart
	deletes int
}

func newMemCartCache() *memCartCache {
	return &memCartCache{carts: make(map[string]*domain.Cart)}
}

func (c *memCartCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cart, ok := c.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cloneCart(cart), nil
}

func (c *memCartCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[userID] = cloneCart(cart)
	return nil
}

func (c *memCartCache) Delete(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, userID)
	c.deletes++
	return nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	signErr error
	putErr  error
	now     func() time.Time
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte), now: time.Now}
}

func (f *fakeBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (blob.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return blob.Object{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return blob.Object{}, err
	}
	f.objects[key] = data
	return blob.Object{Key: key, URL: "http://blob.local/bucket/" + key}, nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobs) SignedURL(_ context.Context, key string, expiry time.Duration) (blob.SignedURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return blob.SignedURL{}, f.signErr
	}
	return blob.SignedURL{
		URL:       fmt.Sprintf("http://blob.local/bucket/%s?X-Amz-Expires=%d", key, int(expiry.Seconds())),
		ExpiresAt: f.now().Add(expiry),
	}, nil
}

type memTokens struct {
	mu     sync.Mutex
	grants map[string]cache.DownloadGrant
	seq    int
}

func newMemTokens() *memTokens {
	return &memTokens{grants: make(map[string]cache.DownloadGrant)}
}

func (m *memTokens) Issue(_ context.Context, grant cache.DownloadGrant, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	token := fmt.Sprintf("tok-%d", m.seq)
	m.grants[token] = grant
	return token, nil
}

func (m *memTokens) Redeem(_ context.Context, token string) (*cache.DownloadGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[token]
	if !ok {
		return nil, cache.ErrTokenUnknown
	}
	delete(m.grants, token)
	return &g, nil
}
