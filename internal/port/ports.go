// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
)

// IdentityProvider performs raw DNI / RUC lookups against the remote
// registry. Payloads are returned undecoded so normalization stays in the
// domain layer.
type IdentityProvider interface {
	LookupDNI(ctx context.Context, dni string) (map[string]any, error)
	LookupRUC(ctx context.Context, ruc string) (map[string]any, error)
}

// IdentityResolver turns an ID number into a canonical identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, dni string) (*domain.Identity, error)
	ResolveBusiness(ctx context.Context, ruc string) (*domain.BusinessIdentity, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T)
	Delete(ctx context.Context, key string)
}

// ReceiptStore persists receipts and allocates their sequence numbers.
// Implementations must call Receipt.Validate before writing.
type ReceiptStore interface {
	CreateReceipt(ctx context.Context, r *domain.Receipt) (*domain.Receipt, error)
	GetReceipt(ctx context.Context, id string) (*domain.Receipt, error)
	ListReceipts(ctx context.Context, f domain.ReceiptFilter) ([]domain.Receipt, error)
	UpdateReceipt(ctx context.Context, r *domain.Receipt) (*domain.Receipt, error)
	SetCancelled(ctx context.Context, id string, cancelled bool, at time.Time) (*domain.Receipt, error)

	// NextSequence returns the next human-readable receipt number.
	NextSequence(ctx context.Context) (string, error)

	Ping(ctx context.Context) error
}

// OperatorDirectory finds kiosk operators by login.
type OperatorDirectory interface {
	// FindOperator returns ErrNotFound when no active operator has login.
	FindOperator(ctx context.Context, login string) (*domain.Operator, error)
}

// Store bundles everything a storage backend provides.
type Store interface {
	ReceiptStore
	OperatorDirectory
}
