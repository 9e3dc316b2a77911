package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/observability"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Probe checks one backing dependency for /healthz and /readyz.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

const probeTimeout = 3 * time.Second

// runProbes checks every dependency concurrently.
func runProbes(ctx context.Context, probes []Probe) []domain.ServiceHealth {
	results := make([]domain.ServiceHealth, len(probes))
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var g errgroup.Group
	for i, p := range probes {
		i, p := i, p
		g.Go(func() error {
			start := time.Now()
			err := p.Check(ctx)
			h := domain.ServiceHealth{
				Name:        p.Name,
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: time.Now().UTC().Format(time.RFC3339),
			}
			if err != nil {
				h.Status = "unhealthy"
				h.Detail = err.Error()
			}
			results[i] = h
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func healthzHandler(mode string, probes []Probe, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := append([]domain.ServiceHealth{{
			Name:        "agent-api",
			Status:      "healthy",
			LastChecked: time.Now().UTC().Format(time.RFC3339),
		}}, runProbes(r.Context(), probes)...)

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
				logger.Warn("dependency unhealthy", zap.String("service", s.Name), zap.String("detail", s.Detail))
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Mode:     mode,
			Services: services,
		})
	}
}

func readyzHandler(probes []Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, s := range runProbes(r.Context(), probes) {
			if s.Status != "healthy" {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "service": s.Name})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func lookupMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetLookupSnapshot())
	}
}

// GET /v1/fees/quote?amount=
func feeQuoteHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("amount")
		if raw == "" {
			handleServiceError(w, &domain.ErrMissingField{Field: "amount"}, logger)
			return
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			handleServiceError(w, &domain.ErrValidation{Field: "amount", Message: "not a number: " + raw}, logger)
			return
		}
		if amount.IsNegative() {
			handleServiceError(w, &domain.ErrValidation{Field: "amount", Message: "must not be negative"}, logger)
			return
		}
		if err := domain.CheckAmount("amount", amount); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.QuoteFee(amount))
	}
}

func catalogHandler() http.HandlerFunc {
	catalog := domain.ReceiptCatalog()
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, catalog)
	}
}
