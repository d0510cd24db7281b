// Package netx is the HTTP transport shared by the REST table store and the
// REST object store. It attaches credentials, throttles outgoing requests,
// traces every call and maps backend failures onto the sentinels of package
// common.
package netx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agita-app/agita/internal/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	APIKey      string
	AccessToken string // sent as the bearer token when set; APIKey otherwise

	Timeout           time.Duration
	RequestsPerSecond float64 // zero disables throttling

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client performs authenticated requests against the hosted backend.
type Client struct {
	baseURL string
	apiKey  string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
}

// NewClient validates opts and builds a Client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url", common.ErrMissingConfig)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: api key", common.ErrMissingConfig)
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL: base,
		apiKey:  opts.APIKey,
		token:   opts.AccessToken,
		http:    hc,
		limiter: limiter,
		tracer:  otel.Tracer("agita/netx"),
	}, nil
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIKey returns the project key, used by the realtime socket.
func (c *Client) APIKey() string {
	return c.apiKey
}

// Request is one call relative to BaseURL.
type Request struct {
	Method string
	Path   string // e.g. "/rest/v1/profiles"
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is a successful (status < 400) reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do sends r. Transport failures and throttling cancellations are reported as
// common.ErrUnavailable; statuses >= 400 are mapped by MapStatus.
func (c *Client) Do(ctx context.Context, r Request) (resp *Response, err error) {
	ctx, span := c.tracer.Start(ctx, r.Method+" "+r.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("url.path", r.Path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, common.Kind(err))
		}
		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: throttle: %v", common.ErrUnavailable, err)
	}

	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", c.apiKey)
	bearer := c.token
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	hr, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", common.ErrUnavailable, r.Method, r.Path, err)
	}
	defer hr.Body.Close()

	data, err := io.ReadAll(hr.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", common.ErrUnavailable, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", hr.StatusCode))

	if hr.StatusCode >= 400 {
		return nil, MapStatus(hr.StatusCode, data)
	}
	return &Response{Status: hr.StatusCode, Header: hr.Header, Body: data}, nil
}

// IsNotFound reports whether err is a not-found response.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
