package handler

import (
	"net/http"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Identity lookups
// POST /v1/identity/dni  {numero|dni}
// POST /v1/identity/ruc  {numero|ruc}
// ============================================================

func dniHandler(resolver port.IdentityResolver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/identity/dni")
		defer span.End()

		raw, err := decodeObject(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		numero := domain.LookupRequest(raw).Number("dni")
		if numero == "" {
			handleServiceError(w, &domain.ErrMissingField{Field: "numero"}, logger)
			return
		}
		span.SetAttributes(attribute.String("lookup.numero", numero))

		id, err := resolver.Resolve(ctx, numero)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, id)
	}
}

func rucHandler(resolver port.IdentityResolver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/identity/ruc")
		defer span.End()

		raw, err := decodeObject(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		numero := domain.LookupRequest(raw).Number("ruc")
		if numero == "" {
			handleServiceError(w, &domain.ErrMissingField{Field: "numero"}, logger)
			return
		}
		span.SetAttributes(attribute.String("lookup.numero", numero))

		biz, err := resolver.ResolveBusiness(ctx, numero)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, biz)
	}
}
