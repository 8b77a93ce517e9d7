// Package api is the HTTP client for the finance backend REST endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gagebu/internal/core"
)

// TokenSource supplies the bearer token for outgoing requests. The credential
// store itself lives outside this package; a nil source sends no token.
type TokenSource func(ctx context.Context) (string, error)

// Client talks to the backend REST API. The unauthorized hook is injected so
// session teardown does not couple this package to the auth layer.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokenSource    TokenSource
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokenSource = ts }
}

// WithUnauthorizedHandler registers a callback invoked on every 401 response.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Error is the non-2xx response error returned by every client method.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// do issues one request. body is marshaled as JSON when non-nil (a
// json.RawMessage passes through untouched); out, when non-nil, receives the
// decoded response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.tokenSource != nil {
		token, err := c.tokenSource(ctx)
		if err != nil {
			return fmt.Errorf("resolve token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(snippet))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// Health probes the backend health endpoint; used by the connectivity monitor.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	if err := c.do(ctx, http.MethodGet, "/transactions/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTransaction posts a new transaction. body is either a typed
// core.TransactionCreate (store online path) or the raw recorded payload of a
// replayed mutation; both marshal to the same wire shape.
func (c *Client) CreateTransaction(ctx context.Context, body any) (core.Transaction, error) {
	var out core.Transaction
	if err := c.do(ctx, http.MethodPost, "/transactions/", body, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, body any) (core.Transaction, error) {
	var out core.Transaction
	if err := c.do(ctx, http.MethodPut, "/transactions/"+id, body, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/transactions/"+id, nil, nil)
}

func (c *Client) ToggleFavorite(ctx context.Context, id string, isFavorite bool) (core.Transaction, error) {
	body := struct {
		IsFavorite bool `json:"is_favorite"`
	}{IsFavorite: isFavorite}

	var out core.Transaction
	if err := c.do(ctx, http.MethodPatch, "/transactions/"+id+"/favorite", body, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	if err := c.do(ctx, http.MethodGet, "/categories/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, in core.CategoryCreate) (core.Category, error) {
	var out core.Category
	if err := c.do(ctx, http.MethodPost, "/categories/", in, &out); err != nil {
		return core.Category{}, err
	}
	return out, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id string, in core.CategoryUpdate) (core.Category, error) {
	var out core.Category
	if err := c.do(ctx, http.MethodPut, "/categories/"+id, in, &out); err != nil {
		return core.Category{}, err
	}
	return out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/categories/"+id, nil, nil)
}

func (c *Client) ListCards(ctx context.Context) ([]core.UserCard, error) {
	var out []core.UserCard
	if err := c.do(ctx, http.MethodGet, "/cards/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCard(ctx context.Context, in core.CardCreate) (core.UserCard, error) {
	var out core.UserCard
	if err := c.do(ctx, http.MethodPost, "/cards/", in, &out); err != nil {
		return core.UserCard{}, err
	}
	return out, nil
}

func (c *Client) DeleteCard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/cards/"+id, nil, nil)
}
