package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("client")

const providerName = "decolecta"

// maxBody caps how much of a provider response is read.
const maxBody = 1 << 20

// DecolectaConfig holds the lookup endpoints and credentials.
type DecolectaConfig struct {
	DNIURL  string
	RUCURL  string
	Token   string
	Timeout time.Duration
}

// DecolectaClient queries the Decolecta RENIEC/SUNAT lookup API.
// Lookups are never retried: a kiosk operator is waiting on the answer.
type DecolectaClient struct {
	httpClient *http.Client
	cfg        DecolectaConfig
	cb         *gobreaker.CircuitBreaker
}

// NewDecolectaClient creates a new DecolectaClient. A nil breaker gets the
// default one, configured so "not found" answers do not count as failures.
func NewDecolectaClient(httpClient *http.Client, cfg DecolectaConfig, cb *gobreaker.CircuitBreaker) *DecolectaClient {
	if cb == nil {
		cb = NewLookupBreaker()
	}
	return &DecolectaClient{
		httpClient: httpClient,
		cfg:        cfg,
		cb:         cb,
	}
}

// NewLookupBreaker returns the circuit breaker used for identity lookups.
func NewLookupBreaker() *gobreaker.CircuitBreaker {
	return resilience.NewCircuitBreaker(providerName, resilience.WithSuccessFilter(func(err error) bool {
		var nf *domain.ErrNotFound
		return errors.As(err, &nf)
	}))
}

// LookupDNI fetches the raw RENIEC payload for a DNI.
func (c *DecolectaClient) LookupDNI(ctx context.Context, dni string) (map[string]any, error) {
	return c.lookup(ctx, "dni", c.cfg.DNIURL, dni)
}

// LookupRUC fetches the raw SUNAT payload for a RUC.
func (c *DecolectaClient) LookupRUC(ctx context.Context, ruc string) (map[string]any, error) {
	return c.lookup(ctx, "ruc", c.cfg.RUCURL, ruc)
}

func (c *DecolectaClient) lookup(ctx context.Context, kind, endpoint, number string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "DecolectaClient.Lookup")
	defer span.End()
	span.SetAttributes(
		attribute.String("lookup.kind", kind),
		attribute.String("lookup.numero", number),
	)

	if c.cfg.Token == "" {
		return nil, &domain.ErrConfiguration{Setting: "DECOLECTA_TOKEN", Message: "token vacío"}
	}

	result, err := c.cb.Execute(func() (any, error) {
		return c.fetch(ctx, kind, endpoint, number)
	})
	if err != nil {
		if resilience.IsBreakerRejection(err) {
			err = &domain.ErrProviderUnavailable{
				Provider: providerName,
				Detail:   "circuit open",
				Err:      &domain.ErrCircuitOpen{Service: providerName},
			}
		}
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	return result.(map[string]any), nil
}

func (c *DecolectaClient) fetch(ctx context.Context, kind, endpoint, number string) (map[string]any, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &domain.ErrConfiguration{Setting: kind + " lookup URL", Message: err.Error()}
	}
	q := u.Query()
	q.Set("numero", number)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, unavailable(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, unavailable(err)
	}
	payload, decodeErr := decodeObject(body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, &domain.ErrNotFound{Resource: kind, ID: number, Detail: domain.UpstreamMessage(payload)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := fmt.Sprintf("status %d", resp.StatusCode)
		if msg := domain.UpstreamMessage(payload); msg != "" {
			detail += ": " + msg
		}
		return nil, &domain.ErrProviderUnavailable{Provider: providerName, Detail: detail}
	}
	if decodeErr != nil {
		return nil, &domain.ErrProviderUnavailable{Provider: providerName, Detail: "invalid JSON body", Err: decodeErr}
	}
	return payload, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("response body is not a JSON object")
	}
	return payload, nil
}

func unavailable(err error) error {
	return &domain.ErrProviderUnavailable{Provider: providerName, Detail: err.Error(), Err: err}
}
