package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/agrivet-pos/api/controllers"
	"github.com/angelmondragon/agrivet-pos/api/middleware"
	products "github.com/angelmondragon/agrivet-pos/internal/products"
	"github.com/angelmondragon/agrivet-pos/pkg/config"
	"github.com/angelmondragon/agrivet-pos/pkg/logger"
	"github.com/angelmondragon/agrivet-pos/pkg/metrics"
	"github.com/angelmondragon/agrivet-pos/pkg/redis"
)

// Deps is everything the HTTP surface needs. Idempotency and Redis stay nil
// when no Redis is configured; Gatherer nil disables /metrics.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           controllers.Pinger
	Redis        controllers.Pinger
	Idempotency  redis.IdempotencyStore
	Products     products.Service
	Catalog      controllers.CatalogStore
	Stock        controllers.StockService
	Sessions     controllers.SessionService
	Transactions controllers.TransactionReader
	Breaker      controllers.BreakerReporter
	HTTPMetrics  *metrics.HTTPMetrics
	Gatherer     prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.RequestID(logg),
		middleware.Cashier(logg),
		middleware.Logging(logg),
	)
	if d.HTTPMetrics != nil {
		r.Use(middleware.Metrics(d.HTTPMetrics))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, controllers.ReadyDeps{DB: d.DB, Redis: d.Redis, Breaker: d.Breaker}, logg))
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	// Runs per route so the full chi pattern is known when the rule is matched.
	idempotent := middleware.Idempotency(d.Idempotency, cfg.Checkout.IdempotencyTTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(d.Products, logg))
			r.With(idempotent).Post("/", controllers.ProductCreate(d.Products, logg))
			r.Route("/{productID}", func(r chi.Router) {
				r.Get("/", controllers.ProductGet(d.Products, logg))
				r.Put("/pricing", controllers.ProductUpdatePricing(d.Products, logg))
				r.Put("/active", controllers.ProductSetActive(d.Products, logg))
				r.With(idempotent).Post("/restock", controllers.ProductRestock(d.Stock, d.Catalog, logg))
				r.Get("/movements", controllers.ProductMovements(d.Stock, logg))
			})
		})

		r.Post("/catalog/reload", controllers.CatalogReload(d.Catalog, logg))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", controllers.SessionOpen(d.Sessions, logg))
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", controllers.SessionGet(d.Sessions, logg))
				r.Delete("/", controllers.SessionClose(d.Sessions, logg))
				r.Post("/items", controllers.SessionAddItem(d.Sessions, logg))
				r.Patch("/items", controllers.SessionUpdateItem(d.Sessions, logg))
				r.Put("/items", controllers.SessionSetItem(d.Sessions, logg))
				r.Delete("/items", controllers.SessionRemoveItem(d.Sessions, logg))
				r.With(idempotent).Post("/checkout", controllers.SessionCheckout(d.Sessions, logg))
			})
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.TransactionList(d.Transactions, logg))
			r.Get("/{transactionID}", controllers.TransactionGet(d.Transactions, logg))
		})
		r.Get("/reports/daily", controllers.DailyReport(d.Transactions, logg))
	})

	return r
}
