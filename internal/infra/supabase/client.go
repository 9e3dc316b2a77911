// Package supabase provides a client for Supabase PostgREST.
// Used as the hosted storage backend for receipts and operators.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/agentebl/multibanco-agent-go/internal/domain"
	"github.com/agentebl/multibanco-agent-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	bulkhead       *resilience.Bulkhead
	logger         *zap.Logger
}

// NewClient creates a Supabase client. A nil breaker gets the default one,
// which does not count "not found" answers as failures.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	if cb == nil {
		cb = resilience.NewCircuitBreaker("supabase", resilience.WithSuccessFilter(func(err error) bool {
			return !resilience.Transient(err)
		}))
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		bulkhead:       resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:         logger,
	}
}

// call runs fn behind the bulkhead, the circuit breaker and retry with
// backoff. Domain errors pass through; anything else is reported as an
// external service failure of op.
func (c *Client) call(ctx context.Context, op string, fn func() error) error {
	err := c.bulkhead.Do(ctx, func() error {
		_, err := c.cb.Execute(func() (any, error) {
			return nil, resilience.RetryIf(ctx, c.cfg, resilience.Transient, fn)
		})
		return err
	})
	if err == nil {
		return nil
	}

	if resilience.IsBreakerRejection(err) {
		return &domain.ErrCircuitOpen{Service: "supabase"}
	}
	var (
		notFound   *domain.ErrNotFound
		validation *domain.ErrValidation
	)
	if errors.As(err, &notFound) || errors.As(err, &validation) {
		return err
	}
	return &domain.ErrExternalService{Service: "supabase/" + op, Err: err}
}

func (c *Client) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}

// doRequest executes an authenticated GET-style request to PostgREST.
// A 404 or 204 yields a nil body and no error.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	c.setHeaders(req, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, statusError(resp.StatusCode, body)
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// statusError classifies a non-2xx answer. 4xx statuses other than 408 and
// 429 are ErrRejected, which is neither retried nor counted against the
// breaker.
func statusError(status int, body []byte) error {
	if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		return &domain.ErrRejected{Service: "supabase", Status: status, Body: string(body)}
	}
	return fmt.Errorf("supabase returned status %d: %s", status, string(body))
}
