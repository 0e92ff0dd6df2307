// Package supabase provides a read-only client for Supabase (PostgREST).
// Used as a ledger backend when the CRUD layer lives in a hosted Postgres.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/irpf-engine/internal/domain"
	"github.com/boddenberg/irpf-engine/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	guard          *resilience.Guard
	logger         *zap.Logger
}

// NewClient creates a Supabase client. Every read goes through a bulkhead,
// a circuit breaker and retry with backoff.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		guard:          resilience.NewGuard("supabase", cfg, retryable),
		logger:         logger,
	}
}

// statusError is a non-2xx PostgREST answer.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.Code, e.Body)
}

// decodeError marks a payload that will not parse no matter how often it is fetched.
type decodeError struct {
	Table string
	Err   error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Table, e.Err)
}

func (e *decodeError) Unwrap() error { return e.Err }

// retryable keeps client errors (4xx, undecodable bodies) out of the retry loop.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var de *decodeError
	if errors.As(err, &de) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// doRequest executes an authenticated request to Supabase PostgREST.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.bearer()))
	req.Header.Set("Accept", "application/json")

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
		return nil, &statusError{Code: resp.StatusCode, Body: string(body)}
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// bearer prefers the service-role key, which bypasses row-level security.
func (c *Client) bearer() string {
	if c.serviceRoleKey != "" {
		return c.serviceRoleKey
	}
	return c.apiKey
}

// selectRows runs a guarded GET against table and decodes the JSON array into out.
// Any failure that survives the guard becomes *domain.ErrStorageUnavailable.
func (c *Client) selectRows(ctx context.Context, table string, query url.Values, out any) error {
	ctx, span := tracer.Start(ctx, "GET /rest/v1/"+table,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.table", table)),
	)
	defer span.End()

	path := table
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	err := c.guard.Do(ctx, func(ctx context.Context) error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		if len(body) == 0 {
			body = []byte("[]")
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &decodeError{Table: table, Err: err}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return &domain.ErrStorageUnavailable{Store: "supabase/" + table, Err: err}
	}
	return nil
}

// Ready fails while the breaker is open, so readiness probes shed traffic
// before requests start failing fast.
func (c *Client) Ready() error {
	if state := c.guard.State(); state == gobreaker.StateOpen {
		return &domain.ErrStorageUnavailable{Store: "supabase", Err: gobreaker.ErrOpenState}
	}
	return nil
}

// Ping checks PostgREST reachability.
func (c *Client) Ping(ctx context.Context) error {
	var rows []struct{}
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	return c.selectRows(ctx, "tax_configs", q, &rows)
}

// jsonColumn decodes a JSON column that PostgREST may hand back either as a
// JSON value or as a string holding JSON (text columns).
func jsonColumn(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		raw = json.RawMessage(s)
	}
	return json.Unmarshal(raw, out)
}
