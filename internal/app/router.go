package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/samudra-retail/samudra-retail/internal/audit"
	"github.com/samudra-retail/samudra-retail/internal/auth"
	"github.com/samudra-retail/samudra-retail/internal/correction"
	"github.com/samudra-retail/samudra-retail/internal/masterdata"
	"github.com/samudra-retail/samudra-retail/internal/notification"
	"github.com/samudra-retail/samudra-retail/internal/observability"
	"github.com/samudra-retail/samudra-retail/internal/purchase"
	"github.com/samudra-retail/samudra-retail/internal/sell"
	"github.com/samudra-retail/samudra-retail/internal/sellcorrection"
	"github.com/samudra-retail/samudra-retail/internal/stock"
	"github.com/samudra-retail/samudra-retail/internal/transfer"
	"github.com/samudra-retail/samudra-retail/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger                *slog.Logger
	Config                *Config
	AuthMiddleware        *auth.Middleware
	MasterDataHandler     *masterdata.Handler
	StockHandler          *stock.Handler
	PurchaseHandler       *purchase.Handler
	TransferHandler       *transfer.Handler
	SellHandler           *sell.Handler
	CorrectionHandler     *correction.Handler
	SellCorrectionHandler *sellcorrection.Handler
	NotificationHandler   *notification.Handler
	AuditHandler          *audit.Handler
	JobHandler            *jobs.Handler
	Metrics               *observability.Metrics
}

// NewRouter constructs the chi.Router with Samudra defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if params.AuthMiddleware != nil {
			api.Use(params.AuthMiddleware.RequireActor)
		}
		if params.MasterDataHandler != nil {
			api.Route("/master", params.MasterDataHandler.MountRoutes)
		}
		if params.StockHandler != nil {
			api.Route("/stocks", params.StockHandler.MountRoutes)
		}
		if params.PurchaseHandler != nil {
			api.Route("/purchases", params.PurchaseHandler.MountRoutes)
		}
		if params.TransferHandler != nil {
			api.Route("/transfers", params.TransferHandler.MountRoutes)
		}
		if params.SellHandler != nil {
			api.Route("/sells", params.SellHandler.MountRoutes)
		}
		if params.CorrectionHandler != nil {
			api.Route("/stock-corrections", params.CorrectionHandler.MountRoutes)
		}
		if params.SellCorrectionHandler != nil {
			api.Route("/sell-corrections", params.SellCorrectionHandler.MountRoutes)
		}
		if params.NotificationHandler != nil {
			api.Route("/notifications", params.NotificationHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			api.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
