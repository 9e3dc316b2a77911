package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

type kinded interface {
	Kind() string
}

func writeError(w http.ResponseWriter, status int, kind, msg, detail string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeObject reads a JSON object body, keeping numbers as json.Number so
// amounts reach the decimal parser untouched. An empty body is an empty object.
func decodeObject(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, &domain.ErrValidation{Field: "body", Message: "invalid JSON object"}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var (
		missing     *domain.ErrMissingField
		validation  *domain.ErrValidation
		notFound    *domain.ErrNotFound
		cfgErr      *domain.ErrConfiguration
		provider    *domain.ErrProviderUnavailable
		circuitOpen *domain.ErrCircuitOpen
		unauthz     *domain.ErrUnauthorized
		external    *domain.ErrExternalService
	)

	kind := "internal"
	var k kinded
	if errors.As(err, &k) {
		kind = k.Kind()
	}

	// Provider failures wrap ErrCircuitOpen, so they are matched first.
	switch {
	case errors.As(err, &missing):
		logger.Debug("missing field", zap.String("field", missing.Field))
		writeError(w, http.StatusBadRequest, missing.Kind(), err.Error(), "")
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, validation.Kind(), err.Error(), "")
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		msg := err.Error()
		if notFound.Detail != "" {
			msg = notFound.Detail
		}
		writeError(w, http.StatusNotFound, notFound.Kind(), msg, "")
	case errors.As(err, &cfgErr):
		logger.Error("configuration error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, cfgErr.Kind(), err.Error(), "")
	case errors.As(err, &provider):
		logger.Warn("provider unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, provider.Kind(), "No se pudo conectar al proveedor", provider.Detail)
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, circuitOpen.Kind(), err.Error(), "")
	case errors.As(err, &unauthz):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, unauthz.Kind(), err.Error(), "")
	case errors.As(err, &external):
		logger.Error("storage failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, external.Kind(), "storage unavailable", external.Service)
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, kind, "internal server error", "")
	}
}

// parseFilter reads the receipt listing query parameters.
func parseFilter(r *http.Request) (domain.ReceiptFilter, error) {
	q := r.URL.Query()
	f := domain.ReceiptFilter{
		Date:     q.Get("date"),
		Bank:     domain.Bank(q.Get("bank")),
		Movement: domain.MovementType(q.Get("movement")),
	}
	if f.Date != "" {
		if _, err := time.Parse(domain.DateLayout, f.Date); err != nil {
			return f, &domain.ErrValidation{Field: "date", Message: "expected YYYY-MM-DD"}
		}
	}
	if f.Bank != "" && !f.Bank.Valid() {
		return f, &domain.ErrValidation{Field: "bank", Message: "unknown bank code " + string(f.Bank)}
	}
	if f.Movement != "" && !f.Movement.Valid() {
		return f, &domain.ErrValidation{Field: "movement", Message: "unknown movement code " + string(f.Movement)}
	}
	if v := q.Get("includeCancelled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, &domain.ErrValidation{Field: "includeCancelled", Message: "must be a boolean"}
		}
		f.IncludeCancelled = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, &domain.ErrValidation{Field: "limit", Message: "must be a non-negative integer"}
		}
		f.Limit = n
	}
	return f, nil
}

// legacyWriter reports failures with status 200 and the real status in a
// header, the contract the kiosk's original JSON routes were built against.
type legacyWriter struct {
	http.ResponseWriter
}

func (w *legacyWriter) WriteHeader(code int) {
	if code >= 400 && code != http.StatusUnauthorized {
		w.Header().Set("X-Agent-Status", strconv.Itoa(code))
		code = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(code)
}

func legacyStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&legacyWriter{ResponseWriter: w}, r)
	})
}
