// Package listing issues paginated list requests carrying the applied
// filter query of a binding.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
)

const defaultTracerName = "filters/listing"

// Page is one page of a list response. Items holds the "items" array; every
// other top-level field ends up in Meta.
type Page struct {
	Items []json.RawMessage
	Meta  map[string]json.RawMessage
}

// UnmarshalJSON splits the response body into items and meta.
func (p *Page) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var items []json.RawMessage
	if raw, ok := fields["items"]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("items: %w", err)
		}
		delete(fields, "items")
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	p.Items = items
	p.Meta = fields
	return nil
}

// DecodeItems decodes the items into out, which must be a pointer to a slice.
func (p *Page) DecodeItems(out any) error {
	data, err := json.Marshal(p.Items)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Client performs list requests against a backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	tracer     trace.Tracer
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
// Default: a client with a 10 second timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTracer sets the tracer.
// Default: otel.Tracer("filters/listing") from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithLogger sets the logger.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(defaultTracerName)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// URL returns the request URL for path and an encoded filter query.
func (c *Client) URL(path, query string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if query = strings.TrimPrefix(query, "?"); query != "" {
		u += "?" + query
	}
	return u
}

// List fetches path with query appended.
func (c *Client) List(ctx context.Context, path, query string) (*Page, error) {
	ctx, span := c.tracer.Start(ctx, "filters.list",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodGet),
			attribute.String("url.path", path),
			attribute.String("filters.query", query),
		),
	)
	defer span.End()

	page, status, err := c.do(ctx, c.URL(path, query))
	if status != 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("list request failed", "path", path, "query", query, "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("filters.items", len(page.Items)))
	span.SetStatus(codes.Ok, "")
	return page, nil
}

// ListBinding fetches path with the applied query of b.
func (c *Client) ListBinding(ctx context.Context, path string, b *filters.Binding) (*Page, error) {
	return c.List(ctx, path, b.Query())
}

func (c *Client) do(ctx context.Context, url string) (*Page, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, ferrors.New("L001").WithDetailf("GET %s", url).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, ferrors.New("L001").WithDetailf("GET %s", url).Wrap(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, ferrors.New("L003").Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, ferrors.New("L002").
			WithDetailf("GET %s answered %d: %s", url, resp.StatusCode, truncate(body, 200))
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, resp.StatusCode, ferrors.New("L003").Wrap(err)
	}
	return &page, resp.StatusCode, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
