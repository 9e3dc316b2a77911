package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Receipts
// ============================================================

// POST /v1/receipt
func submitReceiptHandler(svc *service.ReceiptService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/receipt")
		defer span.End()

		raw, err := decodeObject(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		actor, _ := OperatorFromContext(ctx)
		conf, err := svc.Submit(ctx, actor, raw)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, conf)
	}
}

// GET /v1/receipts
func listReceiptsHandler(svc *service.ReceiptService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/receipts")
		defer span.End()

		f, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		receipts, err := svc.List(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if receipts == nil {
			receipts = []domain.Receipt{}
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Receipt]{Data: receipts, Total: len(receipts)})
	}
}

// GET /v1/receipts/summary
func receiptSummaryHandler(svc *service.ReceiptService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/receipts/summary")
		defer span.End()

		f, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		summary, err := svc.Summary(ctx, f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// GET /v1/receipts/descriptions?bank=yape&limit=20
func receiptDescriptionsHandler(svc *service.ReceiptService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/receipts/descriptions")
		defer span.End()

		q := r.URL.Query()
		limit := 0
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				handleServiceError(w, &domain.ErrValidation{Field: "limit", Message: "must be a non-negative integer"}, logger)
				return
			}
			limit = n
		}
		descs, err := svc.Descriptions(ctx, domain.Bank(q.Get("bank")), limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[string]{Data: descs, Total: len(descs)})
	}
}

// GET /v1/receipts/export.csv
func exportReceiptsHandler(svc *service.ReceiptService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/receipts/export.csv")
		defer span.End()

		f, err := parseFilter(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// Buffered so a store failure can still produce a JSON error.
		var buf bytes.Buffer
		if err := svc.ExportCSV(ctx, f, &buf); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="recibos.csv"`)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

// GET /v1/receipts/{id}
func getReceiptHandler(svc *service.ReceiptService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/receipts/{id}")
		defer span.End()

		receipt, err := svc.Get(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	}
}

// PATCH /v1/receipts/{id}
func updateReceiptHandler(svc *service.ReceiptService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/receipts/{id}")
		defer span.End()

		raw, err := decodeObject(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		receipt, err := svc.Update(ctx, chi.URLParam(r, "id"), raw)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	}
}

// POST /v1/receipts/{id}/cancel and /restore
func toggleReceiptHandler(svc *service.ReceiptService, cancel bool, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/receipts/{id}/toggle")
		defer span.End()

		id := chi.URLParam(r, "id")
		var (
			receipt *domain.Receipt
			err     error
		)
		if cancel {
			receipt, err = svc.Cancel(ctx, id)
		} else {
			receipt, err = svc.Restore(ctx, id)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	}
}
