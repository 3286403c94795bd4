package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopfloor-backend/api/controllers"
	inventorycontrollers "github.com/angelmondragon/shopfloor-backend/api/controllers/inventory"
	invoicecontrollers "github.com/angelmondragon/shopfloor-backend/api/controllers/invoices"
	timercontrollers "github.com/angelmondragon/shopfloor-backend/api/controllers/timers"
	workordercontrollers "github.com/angelmondragon/shopfloor-backend/api/controllers/workorders"
	"github.com/angelmondragon/shopfloor-backend/api/middleware"
	"github.com/angelmondragon/shopfloor-backend/internal/inventory"
	"github.com/angelmondragon/shopfloor-backend/internal/invoices"
	"github.com/angelmondragon/shopfloor-backend/internal/timetracking"
	"github.com/angelmondragon/shopfloor-backend/internal/workorders"
	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/shopfloor-backend/pkg/redis"
)

// Services groups the domain services the HTTP surface exposes.
type Services struct {
	WorkOrders   workorders.Service
	Inventory    inventory.Service
	TimeTracking timetracking.Service
	Invoices     invoices.Service
}

// NewRouter wires every route. redisPinger and idempotency may be nil when
// Redis is disabled; idempotency keys are then ignored.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisPinger controllers.Pinger,
	idempotency pkgredis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	readiness := map[string]controllers.Pinger{"database": dbP}
	if redisPinger != nil {
		readiness["redis"] = redisPinger
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	taxRate := cfg.Invoicing.TaxRate()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotency, logg))

		r.Route("/work-orders", func(r chi.Router) {
			r.Get("/", workordercontrollers.List(svc.WorkOrders, logg))
			r.Post("/", workordercontrollers.Create(svc.WorkOrders, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", workordercontrollers.Get(svc.WorkOrders, logg))
				r.Post("/transition", workordercontrollers.Transition(svc.WorkOrders, logg))
				r.Post("/assign", workordercontrollers.Assign(svc.WorkOrders, logg))
				r.Get("/activity", workordercontrollers.Activity(svc.WorkOrders, logg))

				r.Get("/parts", workordercontrollers.ListParts(svc.WorkOrders, logg))
				r.Post("/parts", workordercontrollers.AttachPart(svc.WorkOrders, logg))
				r.Delete("/parts/{partId}", workordercontrollers.RemovePart(svc.WorkOrders, logg))

				r.Get("/timers", timercontrollers.List(svc.TimeTracking, logg))
				r.Post("/timers", timercontrollers.Start(svc.TimeTracking, logg))
				r.Get("/time-summary", timercontrollers.Summary(svc.TimeTracking, logg))

				r.With(middleware.RequireBilling(logg)).
					Post("/invoice", invoicecontrollers.FromWorkOrder(svc.Invoices, taxRate, logg))
			})
		})

		r.Route("/timers/{entryId}", func(r chi.Router) {
			r.Post("/stop", timercontrollers.Stop(svc.TimeTracking, logg))
			r.Patch("/", timercontrollers.Correct(svc.TimeTracking, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", inventorycontrollers.ListItems(svc.Inventory, logg))
			r.Get("/{id}", inventorycontrollers.GetItem(svc.Inventory, logg))
			r.Get("/{id}/adjustments", inventorycontrollers.Adjustments(svc.Inventory, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireInventoryManager(logg))
				r.Post("/", inventorycontrollers.CreateItem(svc.Inventory, logg))
				r.Post("/{id}/restock", inventorycontrollers.Restock(svc.Inventory, logg))
			})
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Use(middleware.RequireBilling(logg))
			r.Get("/", invoicecontrollers.List(svc.Invoices, logg))
			r.Post("/", invoicecontrollers.CreateStandalone(svc.Invoices, taxRate, logg))
			r.Get("/{id}", invoicecontrollers.Get(svc.Invoices, logg))
			r.Post("/{id}/send", invoicecontrollers.Send(svc.Invoices, logg))
			r.Post("/{id}/pay", invoicecontrollers.Pay(svc.Invoices, logg))
			r.Post("/{id}/cancel", invoicecontrollers.Cancel(svc.Invoices, logg))
		})
	})

	return r
}
