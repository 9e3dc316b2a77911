package handler

import (
	"net/http"

	"github.com/agentebl/multibanco-agent-go/internal/infra/observability"
	"github.com/agentebl/multibanco-agent-go/internal/port"
	"github.com/agentebl/multibanco-agent-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps are the collaborators the router serves.
type Deps struct {
	Receipts   *service.ReceiptService
	Identities port.IdentityResolver
	Metrics    *observability.Metrics

	// Mode is reported by /healthz ("mock" or "live").
	Mode        string
	Auth        AuthConfig
	CORSOrigins []string
	Probes      []Probe
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Operator"},
		ExposedHeaders: []string{"Content-Disposition", "X-Agent-Status"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Mode, deps.Probes, logger))
	r.Get("/readyz", readyzHandler(deps.Probes))
	r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))

	auth := OperatorAuthMiddleware(deps.Auth, logger)

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/fees/quote", feeQuoteHandler(logger))
		r.Get("/catalog", catalogHandler())
		r.Get("/metrics/lookups", lookupMetricsHandler(deps.Metrics))

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Post("/identity/dni", dniHandler(deps.Identities, logger))
			r.Post("/identity/ruc", rucHandler(deps.Identities, logger))

			r.Post("/receipt", submitReceiptHandler(deps.Receipts, logger))
			r.Route("/receipts", func(r chi.Router) {
				r.Get("/", listReceiptsHandler(deps.Receipts, logger))
				r.Get("/summary", receiptSummaryHandler(deps.Receipts, logger))
				r.Get("/export.csv", exportReceiptsHandler(deps.Receipts, logger))
				r.Get("/descriptions", receiptDescriptionsHandler(deps.Receipts, logger))
				r.Get("/{id}", getReceiptHandler(deps.Receipts, logger))
				r.Patch("/{id}", updateReceiptHandler(deps.Receipts, logger))
				r.Post("/{id}/cancel", toggleReceiptHandler(deps.Receipts, true, logger))
				r.Post("/{id}/restore", toggleReceiptHandler(deps.Receipts, false, logger))
			})
		})
	})

	// --- Kiosk UI routes kept at their original paths ---
	r.Route("/agente_multibanco/api", func(r chi.Router) {
		r.Use(auth)
		r.Use(legacyStatus)

		r.Post("/dni", dniHandler(deps.Identities, logger))
		r.Post("/ruc", rucHandler(deps.Identities, logger))
		r.Post("/receipt", submitReceiptHandler(deps.Receipts, logger))
	})

	return r
}
