package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/materials-ledger/api/controllers"
	importcontrollers "github.com/angelmondragon/materials-ledger/api/controllers/imports"
	stagedcontrollers "github.com/angelmondragon/materials-ledger/api/controllers/staged"
	stockcontrollers "github.com/angelmondragon/materials-ledger/api/controllers/stock"
	"github.com/angelmondragon/materials-ledger/api/middleware"
	"github.com/angelmondragon/materials-ledger/internal/imports"
	"github.com/angelmondragon/materials-ledger/internal/staged"
	"github.com/angelmondragon/materials-ledger/internal/stock"
	"github.com/angelmondragon/materials-ledger/pkg/config"
	"github.com/angelmondragon/materials-ledger/pkg/logger"
)

// Dependencies groups everything the router wires into handlers. Redis is
// optional and must be left nil when not configured.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Gatherer prometheus.Gatherer

	Imports      imports.Service
	Staged       staged.Service
	Stock        stock.Service
	Reservations stockcontrollers.Reserver
	Synonyms     importcontrollers.SynonymSource
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))

		r.Route("/imports", func(r chi.Router) {
			r.Route("/direct", func(r chi.Router) {
				r.Post("/", importcontrollers.DirectImport(deps.Imports, cfg.Import, logg))
				r.Get("/", importcontrollers.AuditList(deps.Imports, logg))
				r.Get("/{importId}", importcontrollers.AuditDetail(deps.Imports, logg))
			})
			r.Get("/templates/{kind}", importcontrollers.Template(logg))
			r.Get("/synonyms", importcontrollers.Synonyms(deps.Synonyms, logg))
			r.Route("/staged", func(r chi.Router) {
				r.Post("/preview", stagedcontrollers.Preview(deps.Staged, cfg.Import, logg))
				r.Get("/{sessionId}", stagedcontrollers.Detail(deps.Staged, logg))
				r.Post("/{sessionId}/confirm", stagedcontrollers.Confirm(deps.Staged, logg))
				r.Post("/{sessionId}/cancel", stagedcontrollers.Cancel(deps.Staged, logg))
			})
		})

		r.Route("/stock", func(r chi.Router) {
			r.Post("/availability", stockcontrollers.Availability(deps.Reservations, logg))
			r.Post("/reserve", stockcontrollers.Reserve(deps.Reservations, logg))
			r.Post("/release", stockcontrollers.Release(deps.Reservations, logg))
			r.Post("/", stockcontrollers.Create(deps.Stock, logg))
			r.Get("/", stockcontrollers.List(deps.Stock, logg))
			r.Get("/{partNumber}", stockcontrollers.Detail(deps.Stock, logg))
			r.Delete("/{partNumber}", stockcontrollers.Deactivate(deps.Stock, logg))
		})
	})

	return r
}
