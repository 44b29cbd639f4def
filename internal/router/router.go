package router

import (
	"net/http"
	"time"

	"commerce-core/internal/handler"
	"commerce-core/internal/metrics"
	"commerce-core/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Products *handler.ProductHandler
	Cart     *handler.CartHandler
	Stock    *handler.StockHandler
	Checkout *handler.CheckoutHandler
	Orders   *handler.OrderHandler
	Refunds  *handler.RefundHandler
}

// Options configures the router.
type Options struct {
	APIKey         string
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Applied outermost first: Recovery -> Logging -> Metrics -> CORS -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(chimiddleware.RequestID, chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(opts.Metrics))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(opts.APIKey, logger))
	if opts.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(opts.RequestTimeout))
	}

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.Products.List)
		r.Get("/products/{productID}", h.Products.Get)
		r.Get("/stock/{productID}", h.Stock.Peek)

		// Status changes and restocks are operator actions; the API key is
		// enough.
		r.Patch("/refunds/{ticketID}", h.Refunds.UpdateStatus)
		r.Post("/refunds/{ticketID}/restock", h.Refunds.Restock)

		r.Group(func(r chi.Router) {
			r.Use(middleware.UserIdentity(logger))

			r.Get("/cart", h.Cart.View)
			r.Delete("/cart", h.Cart.Clear)
			r.Post("/cart/items", h.Cart.AddItem)
			r.Put("/cart/items/{productID}", h.Cart.SetItem)
			r.Delete("/cart/items/{productID}", h.Cart.RemoveItem)

			r.Post("/checkout", h.Checkout.Checkout)

			r.Get("/orders", h.Orders.List)
			r.Get("/orders/{orderID}", h.Orders.GetByID)
			r.Post("/orders/{orderID}/cancel", h.Orders.Cancel)
			r.Get("/orders/{orderID}/refunds", h.Refunds.ListForOrder)

			r.Post("/refunds", h.Refunds.Request)
			r.Post("/refunds/intake", h.Refunds.Intake)
			r.Get("/refunds/{ticketID}", h.Refunds.Get)
		})
	})

	return r
}
