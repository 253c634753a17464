package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pipeboard/internal/logging"

	"go.uber.org/zap"
)

// Client is the HTTP implementation of Gateway against the CRM REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient swaps the underlying http.Client (tests, custom transports).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger attaches a zap logger for request logging.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a gateway client for the given CRM base URL.
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs a JSON request and decodes the uniform envelope.
// A non-2xx status with a decodable envelope body is returned as that
// envelope; everything else is a transport error.
func (c *Client) do(ctx context.Context, method, path string, body any) (*Envelope, error) {
	start := time.Now()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("crm request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, fmt.Errorf("crm request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("crm response %s %s: %w", method, path, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("crm %s %s: status %d", method, path, resp.StatusCode)
		}
		return nil, fmt.Errorf("crm %s %s: undecodable response: %w", method, path, err)
	}

	c.logger.Debug("crm request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Bool("success", env.Success),
		zap.Duration("elapsed", time.Since(start)))
	logging.GatewayDebug("%s %s -> status=%d success=%v in %v",
		method, path, resp.StatusCode, env.Success, time.Since(start))

	return &env, nil
}

// FetchLeads returns all leads grouped by stage.
func (c *Client) FetchLeads(ctx context.Context) (*Envelope, error) {
	return c.do(ctx, http.MethodGet, "/leads", nil)
}

// FetchMetrics returns per-stage pipeline metrics.
func (c *Client) FetchMetrics(ctx context.Context) (*Envelope, error) {
	return c.do(ctx, http.MethodGet, "/metrics", nil)
}

// CreateLead creates a lead; the target stage travels inside the payload.
func (c *Client) CreateLead(ctx context.Context, lead *Lead) (*Envelope, error) {
	return c.do(ctx, http.MethodPost, "/leads", lead)
}

// UpdateLead applies a partial update.
func (c *Client) UpdateLead(ctx context.Context, id string, updates map[string]any) (*Envelope, error) {
	return c.do(ctx, http.MethodPatch, "/leads/"+url.PathEscape(id), updates)
}

// DeleteLead removes a lead.
func (c *Client) DeleteLead(ctx context.Context, id string) (*Envelope, error) {
	return c.do(ctx, http.MethodDelete, "/leads/"+url.PathEscape(id), nil)
}

// MoveLeadToStage retags a lead from one stage to another.
func (c *Client) MoveLeadToStage(ctx context.Context, id, toStage, fromStage string) (*Envelope, error) {
	body := map[string]string{"toStage": toStage, "fromStage": fromStage}
	return c.do(ctx, http.MethodPost, "/leads/"+url.PathEscape(id)+"/move", body)
}

// AddTagsToLead replaces a lead's tag list.
func (c *Client) AddTagsToLead(ctx context.Context, id string, tags []string) (*Envelope, error) {
	body := map[string][]string{"tags": tags}
	return c.do(ctx, http.MethodPost, "/leads/"+url.PathEscape(id)+"/tags", body)
}
