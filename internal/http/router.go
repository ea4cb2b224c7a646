package http

import (
	"net/http"

	"github.com/fjod/bookswap/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps wires the service layer into the router.
type Deps struct {
	Auth        auth.Authenticator
	Listings    ListingService
	Carts       CartService
	Orders      OrderService
	Fulfillment FulfillmentService
	Media       MediaService
	Reviews     ReviewService
	Logger      zerolog.Logger
	Options     Options
}

// NewRouter mounts all /api/v1 routes. Global middleware such as request
// ids, recovery and compression is added by the caller.
func NewRouter(d Deps) chi.Router {
	listings := NewListingsHandler(d.Listings, d.Options)
	carts := NewCartHandler(d.Carts, d.Options)
	orders := NewOrdersHandler(d.Orders, d.Options)
	downloads := NewDownloadsHandler(d.Fulfillment, d.Options)
	media := NewMediaHandler(d.Media, d.Options)
	reviews := NewReviewsHandler(d.Reviews, d.Options)
	requireAuth := BearerAuth(d.Auth)

	r := chi.NewRouter()
	r.Use(RequestLogger(d.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		// the token is the credential
		r.Get("/downloads/{token}", downloads.Redeem)

		r.With(requireAuth).Post("/books", listings.Create)

		r.Route("/books/{book_id}", func(r chi.Router) {
			r.Get("/", listings.Get)
			r.Get("/cover", media.CoverPreview)
			r.Get("/reviews", reviews.List)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/download", downloads.GetDownloadLink)
				r.Post("/download-token", downloads.IssueToken)
				r.Post("/cover", media.UploadCover)
				r.Post("/file", media.UploadFile)
				r.Post("/reviews", reviews.Create)
			})
		})

		r.Route("/reviews/{review_id}", func(r chi.Router) {
			r.Get("/", reviews.Get)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Patch("/", reviews.Update)
				r.Delete("/", reviews.Delete)
				r.Post("/helpful", reviews.MarkHelpful)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", carts.GetCart)
				r.Post("/items", carts.AddItem)
				r.Put("/items/{book_id}", carts.UpdateQuantity)
				r.Delete("/items/{book_id}", carts.RemoveItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orders.CreateOrders)
				r.Get("/", orders.ListOrders)
				r.Get("/selling", orders.ListSellingOrders)
				r.Get("/{order_id}", orders.GetOrder)
				r.Patch("/{order_id}/status", orders.UpdateStatus)
				r.Patch("/{order_id}/payment", orders.UpdatePayment)
			})
		})
	})

	return r
}
