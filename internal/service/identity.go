package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/observability"
	"github.com/agentebl/multibanco-agent-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

const (
	msgDNINotFound = "No se encontró información para ese DNI."
	msgRUCNotFound = "No se encontró información para ese RUC."
)

// IdentityResolver resolves DNI and RUC numbers, either from a MockBook or
// through the remote provider with an optional cache in front.
type IdentityResolver struct {
	provider   port.IdentityProvider
	book       *MockBook
	people     port.Cache[domain.Identity]
	businesses port.Cache[domain.BusinessIdentity]
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ResolverOption configures an IdentityResolver.
type ResolverOption func(*IdentityResolver)

// WithIdentityCache caches successful live lookups. Either cache may be nil.
func WithIdentityCache(people port.Cache[domain.Identity], businesses port.Cache[domain.BusinessIdentity]) ResolverOption {
	return func(r *IdentityResolver) {
		r.people = people
		r.businesses = businesses
	}
}

// NewMockIdentityResolver serves lookups from book and never touches the network.
func NewMockIdentityResolver(book *MockBook, metrics *observability.Metrics, logger *zap.Logger) *IdentityResolver {
	if book == nil {
		book = DefaultMockBook()
	}
	return &IdentityResolver{book: book, metrics: metrics, logger: logger}
}

// NewLiveIdentityResolver resolves through provider.
func NewLiveIdentityResolver(provider port.IdentityProvider, metrics *observability.Metrics, logger *zap.Logger, opts ...ResolverOption) *IdentityResolver {
	r := &IdentityResolver{provider: provider, metrics: metrics, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mode reports "mock" or "live".
func (r *IdentityResolver) Mode() string {
	if r.book != nil {
		return "mock"
	}
	return "live"
}

// Resolve returns the canonical identity for an 8-digit DNI.
func (r *IdentityResolver) Resolve(ctx context.Context, dni string) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "IdentityResolver.Resolve")
	defer span.End()

	dni = strings.TrimSpace(dni)
	span.SetAttributes(attribute.String("lookup.numero", dni), attribute.String("lookup.mode", r.Mode()))

	start := time.Now()
	id, err := r.resolveDNI(ctx, dni)
	r.metrics.RecordLookup("dni", outcomeOf(err), time.Since(start))
	return id, err
}

func (r *IdentityResolver) resolveDNI(ctx context.Context, dni string) (*domain.Identity, error) {
	if !domain.IsDNI(dni) {
		return nil, &domain.ErrNotFound{Resource: "dni", ID: dni, Detail: "El DNI debe tener 8 dígitos."}
	}

	if r.book != nil {
		if p, ok := r.book.person(dni); ok {
			return p, nil
		}
		return nil, &domain.ErrNotFound{Resource: "dni", ID: dni, Detail: msgDNINotFound}
	}

	if r.provider == nil {
		return nil, &domain.ErrConfiguration{Setting: "DECOLECTA_TOKEN", Message: "proveedor de identidad no configurado"}
	}

	if r.people != nil {
		if cached, ok := r.people.Get(ctx, dni); ok {
			r.metrics.IncrCacheHit("identity")
			return &cached, nil
		}
		r.metrics.IncrCacheMiss("identity")
	}

	payload, err := r.provider.LookupDNI(ctx, dni)
	if err != nil {
		r.logFailure("dni", dni, err)
		return nil, err
	}

	id, ok := domain.NormalizeIdentity(payload, dni)
	if !ok {
		detail := domain.UpstreamMessage(payload)
		if detail == "" {
			detail = msgDNINotFound
		}
		return nil, &domain.ErrNotFound{Resource: "dni", ID: dni, Detail: detail}
	}

	if r.people != nil {
		r.people.Set(ctx, dni, *id)
	}
	return id, nil
}

// ResolveBusiness returns the business-registry record for an 11-digit RUC.
func (r *IdentityResolver) ResolveBusiness(ctx context.Context, ruc string) (*domain.BusinessIdentity, error) {
	ctx, span := tracer.Start(ctx, "IdentityResolver.ResolveBusiness")
	defer span.End()

	ruc = strings.TrimSpace(ruc)
	span.SetAttributes(attribute.String("lookup.numero", ruc), attribute.String("lookup.mode", r.Mode()))

	start := time.Now()
	biz, err := r.resolveRUC(ctx, ruc)
	r.metrics.RecordLookup("ruc", outcomeOf(err), time.Since(start))
	return biz, err
}

func (r *IdentityResolver) resolveRUC(ctx context.Context, ruc string) (*domain.BusinessIdentity, error) {
	if !domain.IsRUC(ruc) {
		return nil, &domain.ErrNotFound{Resource: "ruc", ID: ruc, Detail: "El RUC debe tener 11 dígitos."}
	}

	if r.book != nil {
		return r.book.business(ruc), nil
	}

	if r.provider == nil {
		return nil, &domain.ErrConfiguration{Setting: "DECOLECTA_TOKEN", Message: "proveedor de identidad no configurado"}
	}

	if r.businesses != nil {
		if cached, ok := r.businesses.Get(ctx, ruc); ok {
			r.metrics.IncrCacheHit("business")
			return &cached, nil
		}
		r.metrics.IncrCacheMiss("business")
	}

	payload, err := r.provider.LookupRUC(ctx, ruc)
	if err != nil {
		r.logFailure("ruc", ruc, err)
		return nil, err
	}

	biz, ok := domain.NormalizeBusiness(payload, ruc)
	if !ok {
		detail := domain.UpstreamMessage(payload)
		if detail == "" {
			detail = msgRUCNotFound
		}
		return nil, &domain.ErrNotFound{Resource: "ruc", ID: ruc, Detail: detail}
	}

	if r.businesses != nil {
		r.businesses.Set(ctx, ruc, *biz)
	}
	return biz, nil
}

func (r *IdentityResolver) logFailure(kind, numero string, err error) {
	var (
		notFound *domain.ErrNotFound
		cfgErr   *domain.ErrConfiguration
	)
	switch {
	case errors.As(err, &notFound):
		r.logger.Info("identity not found upstream",
			zap.String("kind", kind),
			zap.String("numero", numero),
			zap.String("detail", notFound.Detail),
		)
	case errors.As(err, &cfgErr):
		r.logger.Error("identity lookup misconfigured",
			zap.String("kind", kind),
			zap.Error(err),
		)
	default:
		r.metrics.IncrExternalError("decolecta")
		r.logger.Warn("identity provider unavailable",
			zap.String("kind", kind),
			zap.String("numero", numero),
			zap.Error(err),
		)
	}
}

func outcomeOf(err error) string {
	var (
		notFound *domain.ErrNotFound
		cfgErr   *domain.ErrConfiguration
	)
	switch {
	case err == nil:
		return observability.OutcomeResolved
	case errors.As(err, &notFound):
		return observability.OutcomeNotFound
	case errors.As(err, &cfgErr):
		return observability.OutcomeConfiguration
	default:
		return observability.OutcomeProviderFailure
	}
}
