package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/orderflow-backend/api/controllers"
	sessioncontrollers "github.com/angelmondragon/orderflow-backend/api/controllers/itemsessions"
	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/internal/catalog"
	"github.com/angelmondragon/orderflow-backend/internal/itemsessions"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/redis"
)

// Deps are the services and infrastructure the router serves.
type Deps struct {
	DB               controllers.Pinger
	Redis            controllers.Pinger
	IdempotencyStore redis.IdempotencyStore
	Sessions         itemsessions.Service
	Catalog          catalog.Service
	Metrics          *metrics.HTTPMetrics
	MetricsHandler   http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Metrics(deps.Metrics),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	ifMatch := middleware.Precondition(cfg.FeatureFlags.RequireIfMatch, logg)
	sessions := deps.Sessions

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/modifiers", controllers.CatalogModifiers(deps.Catalog, logg))
			r.Get("/price-list", controllers.CatalogPriceList(deps.Catalog, logg))
		})
		r.Post("/pricing/quote", controllers.PricingQuote(deps.Catalog, logg))

		r.Post("/orders/{orderId}/item-session", sessioncontrollers.Initialize(sessions, logg))

		r.Route("/item-sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", sessioncontrollers.Get(sessions, logg))
			r.Delete("/", sessioncontrollers.Terminate(sessions, logg))
			r.Post("/sync", sessioncontrollers.Synchronize(sessions, logg))
			r.Get("/validation", sessioncontrollers.Validate(sessions, logg))
			r.Get("/readiness", sessioncontrollers.Readiness(sessions, logg))
			r.Post("/price-preview", sessioncontrollers.PricePreview(sessions, logg))

			r.Group(func(r chi.Router) {
				r.Use(ifMatch)
				r.Post("/items", sessioncontrollers.AddItem(sessions, logg))
				r.Put("/items/{itemId}", sessioncontrollers.UpdateItem(sessions, logg))
				r.Delete("/items/{itemId}", sessioncontrollers.DeleteItem(sessions, logg))
				r.Post("/wizard", sessioncontrollers.StartWizard(sessions, logg))
				r.Post("/wizard/{itemId}", sessioncontrollers.StartEditWizard(sessions, logg))
				r.Delete("/wizard", sessioncontrollers.CloseWizard(sessions, logg))
				r.Post("/reset", sessioncontrollers.Reset(sessions, logg))
				r.Post("/complete", sessioncontrollers.Complete(sessions, logg))
			})
		})
	})

	return r
}
