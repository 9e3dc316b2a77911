package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentebl/multibanco-agent-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers for POST and PATCH
// ============================================================

// errConflict is returned for PostgREST 409s (unique violations).
var errConflict = &domain.ErrValidation{Field: "id", Message: "duplicate receipt"}

func (c *Client) doPost(ctx context.Context, table string, data any) ([]byte, error) {
	return c.doWrite(ctx, http.MethodPost, table, data)
}

func (c *Client) doPatch(ctx context.Context, path string, data any) ([]byte, error) {
	return c.doWrite(ctx, http.MethodPatch, path, data)
}

// doWrite sends a JSON body and asks PostgREST to return the written rows.
func (c *Client) doWrite(ctx context.Context, method, path string, data any) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: write request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusConflict {
		return nil, errConflict
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: write non-2xx",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, statusError(resp.StatusCode, body)
	}

	c.logger.Debug("supabase: write OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
