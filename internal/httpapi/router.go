package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/health"
	"github.com/noah-isme/pos-terminal/internal/obs"
	"github.com/noah-isme/pos-terminal/internal/ratelimit"
	"github.com/noah-isme/pos-terminal/internal/security"
)

// RouterConfig carries everything the router needs beyond the handlers.
type RouterConfig struct {
	Handler        *Handler
	Health         health.Handler
	Notices        *events.Bus
	Metrics        *obs.HTTPMetrics
	RequestLogger  obs.RequestLogger
	TracingEnabled bool
	AllowedOrigins []string
	RateWindow     time.Duration
	RateMax        int
}

// NewRouter assembles the terminal's HTTP surface.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: cfg.Metrics}.Middleware)
	}
	r.Use(cfg.RequestLogger.Middleware)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)

	h := cfg.Handler
	r.Route("/api/v1", func(v chi.Router) {
		if cfg.RateMax > 0 {
			window := cfg.RateWindow
			if window <= 0 {
				window = time.Minute
			}
			limit := ratelimit.Handler{
				Limiter: ratelimit.New(window, cfg.RateMax),
				Key:     ratelimit.ByClientIP,
			}
			v.Use(limit.Middleware)
		}

		v.Get("/notices", h.Notices(cfg.Notices))

		v.Route("/catalog", func(c chi.Router) {
			c.Get("/products", h.Products)
			c.Get("/customers", h.Customers)
			c.Get("/categories", h.Categories)
			c.Post("/refresh", h.RefreshCatalog)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", h.Cart)
			c.Delete("/", h.ClearCart)
			c.Post("/items", h.AddItem)
			c.Patch("/items/{productID}", h.UpdateItem)
			c.Delete("/items/{productID}", h.RemoveItem)
			c.Post("/discount", h.SetDiscount)
			c.Post("/customer", h.SelectCustomer)
			c.Post("/credit/toggle", h.ToggleCredit)
			c.Post("/cash", h.SetCash)
		})

		v.Route("/sales", func(s chi.Router) {
			s.Get("/held", h.HeldSales)
			s.Post("/hold", h.Hold)
			s.Post("/recall", h.Recall)
		})

		v.Route("/scan", func(s chi.Router) {
			s.Post("/", h.Resolve)
			s.Post("/continue", h.ContinueScanning)
			s.Post("/proceed", h.ProceedToPayment)
		})

		v.Route("/payment", func(p chi.Router) {
			p.Post("/method", h.SelectMethod)
			p.Post("/mobile/begin", h.BeginMobileMoney)
			p.Post("/mobile/charge", h.ConfirmCharge)
			p.Post("/mobile/manual", h.ConfirmManual)
			p.Post("/popup/result", h.PopupResult)
			p.Post("/cancel", h.CancelPayment)
		})

		v.Route("/checkout", func(c chi.Router) {
			c.Post("/paid", h.CheckoutPaid)
			c.Post("/invoice", h.CheckoutInvoice)
		})

		v.Route("/prefs", func(p chi.Router) {
			p.Get("/view", h.GetView)
			p.Put("/view", h.SetView)
		})
	})

	return r
}
