package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ksefonte/spicy-pickle/api/controllers"
	webhookcontrollers "github.com/ksefonte/spicy-pickle/api/controllers/webhooks"
	"github.com/ksefonte/spicy-pickle/api/middleware"
	"github.com/ksefonte/spicy-pickle/internal/binlocations"
	"github.com/ksefonte/spicy-pickle/internal/bundles"
	"github.com/ksefonte/spicy-pickle/internal/picklist"
	syncsvc "github.com/ksefonte/spicy-pickle/internal/sync"
	"github.com/ksefonte/spicy-pickle/pkg/config"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
)

type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	Pingers         map[string]controllers.Pinger
	BundleService   bundles.Service
	BinLocationRepo binlocations.Repository
	PicklistService picklist.Service
	SyncService     syncsvc.Service
	WebhookService  webhookcontrollers.InventoryWebhookService
	ShopifyClient   interface{ WebhookSecret() string }
	MetricsGatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	shopID := cfg.Shopify.ShopDomain

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/shopify/inventory-levels", webhookcontrollers.ShopifyInventoryWebhook(deps.WebhookService, deps.ShopifyClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/bundles", func(r chi.Router) {
			r.Get("/", controllers.BundleList(deps.BundleService, shopID, logg))
			r.Post("/", controllers.BundleCreate(deps.BundleService, shopID, logg))
			r.Get("/{bundleId}", controllers.BundleGet(deps.BundleService, logg))
			r.Put("/{bundleId}", controllers.BundleUpdate(deps.BundleService, logg))
			r.Delete("/{bundleId}", controllers.BundleDelete(deps.BundleService, logg))
			r.Post("/{bundleId}/resync", controllers.BundleResync(deps.BundleService, deps.SyncService, logg))
		})

		r.Route("/bin-locations", func(r chi.Router) {
			r.Get("/", controllers.BinLocationList(deps.BinLocationRepo, shopID, logg))
			r.Put("/", controllers.BinLocationUpsert(deps.BinLocationRepo, shopID, logg))
			r.Delete("/", controllers.BinLocationDelete(deps.BinLocationRepo, shopID, logg))
		})

		r.Route("/picklist", func(r chi.Router) {
			r.Get("/", controllers.PicklistGenerate(deps.PicklistService, shopID, logg))
			r.Get("/export.csv", controllers.PicklistCSV(deps.PicklistService, shopID, logg))
		})
	})

	return r
}
