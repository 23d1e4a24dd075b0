// Package gateway is the HTTP client for the storefront resource API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/internal/forms"
	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

const (
	HeaderRequestID      = "X-Request-Id"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// maxErrorBody bounds how much of a non-JSON error body is kept.
const maxErrorBody = 4 << 10

// Client talks to the gateway over HTTP. It is safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client
	logg *logger.Logger

	mu    sync.RWMutex
	token func() string
}

// New builds a client for cfg.BaseURL. A nil httpClient gets one with cfg.Timeout.
func New(cfg config.GatewayConfig, httpClient *http.Client, logg *logger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parsing gateway url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway url must be http(s), got %q", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{base: base, http: httpClient, logg: logg}, nil
}

// UseToken sets where the bearer token comes from, typically the auth slice.
func (c *Client) UseToken(fn func() string) {
	c.mu.Lock()
	c.token = fn
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	fn := c.token
	c.mu.RUnlock()
	if fn == nil {
		return ""
	}
	return fn()
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

// do performs req and decodes the success envelope's data into out.
func (c *Client) do(ctx context.Context, req request, out any) error {
	rel := &url.URL{Path: strings.TrimPrefix(req.path, "/")}
	if len(req.query) > 0 {
		rel.RawQuery = req.query.Encode()
	}
	target := c.base.ResolveReference(rel)

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := uuid.NewString()
	httpReq.Header.Set(HeaderRequestID, reqID)
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storefront api unreachable")
	}
	defer resp.Body.Close()

	if c.logg != nil {
		logCtx := c.logg.WithFields(c.logg.WithRequestID(ctx, reqID), map[string]any{
			"method": req.method,
			"path":   req.path,
			"status": resp.StatusCode,
		})
		c.logg.Debug(logCtx, "gateway.response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	var envelope types.Envelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "malformed response from storefront api")
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unexpected response shape from storefront api")
	}
	return nil
}

// decodeError maps a non-2xx response onto a typed error. The status decides the
// code; the envelope, when present, supplies the message and details.
func decodeError(resp *http.Response) error {
	code := pkgerrors.CodeForStatus(resp.StatusCode)
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Message == "" {
		msg := strings.TrimSpace(string(raw))
		if msg == "" || len(msg) > 200 {
			msg = pkgerrors.MetadataFor(code).PublicMessage
		}
		return pkgerrors.New(code, msg).WithDetails(map[string]any{"status": resp.StatusCode})
	}

	if envCode := pkgerrors.Code(envelope.Error.Code); code == pkgerrors.CodeConflict && envCode == pkgerrors.CodeIdempotency {
		code = envCode
	}
	typed := pkgerrors.New(code, envelope.Error.Message)
	if fields := fieldErrors(envelope.Error.Details); fields != nil {
		return typed.WithDetails(fields)
	}
	if envelope.Error.Details != nil {
		return typed.WithDetails(envelope.Error.Details)
	}
	return typed
}

// fieldErrors recovers per-field messages from a validation error's details.
func fieldErrors(details any) forms.FieldErrors {
	m, ok := details.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(forms.FieldErrors, len(m))
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		out[k] = s
	}
	return out
}

// Health checks the gateway's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: "/healthz"}, nil)
}
