package domain

import "fmt"

// Error types for consistent error handling across the agent backend.
// Every type exposes Kind so the HTTP layer can report a stable,
// machine-readable category next to the human message.

// ErrMissingField indicates a required input field was absent.
type ErrMissingField struct {
	Field string
}

func (e *ErrMissingField) Error() string {
	return fmt.Sprintf("Falta campo '%s'.", e.Field)
}

func (e *ErrMissingField) Kind() string { return "missing_field" }

// ErrNotFound indicates a lookup had no match.
type ErrNotFound struct {
	Resource string
	ID       string
	Detail   string // upstream message, if any
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *ErrNotFound) Kind() string { return "not_found" }

// ErrProviderUnavailable indicates the identity provider could not be reached,
// answered with an error status, or returned an unparseable body.
type ErrProviderUnavailable struct {
	Provider string
	Detail   string
	Err      error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("provider unavailable [%s]: %s", e.Provider, e.Detail)
	}
	return fmt.Sprintf("provider unavailable [%s]", e.Provider)
}

func (e *ErrProviderUnavailable) Unwrap() error {
	return e.Err
}

func (e *ErrProviderUnavailable) Kind() string { return "provider_unavailable" }

// ErrConfiguration indicates the process is missing configuration needed
// for the requested operation (e.g. no provider token in live mode).
type ErrConfiguration struct {
	Setting string
	Message string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("%s no configurado en el servidor: %s", e.Setting, e.Message)
}

func (e *ErrConfiguration) Kind() string { return "configuration" }

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

func (e *ErrValidation) Kind() string { return "validation" }

// ErrExternalService indicates a failure in a storage or other backing service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

func (e *ErrExternalService) Kind() string { return "external_service" }

// ErrRejected indicates a backing service refused a request with a 4xx
// status. Sending it again would get the same answer.
type ErrRejected struct {
	Service string
	Status  int
	Body    string
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("%s rejected request with status %d: %s", e.Service, e.Status, e.Body)
}

func (e *ErrRejected) Kind() string { return "rejected" }

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

func (e *ErrCircuitOpen) Kind() string { return "circuit_open" }

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

func (e *ErrUnauthorized) Kind() string { return "unauthorized" }
