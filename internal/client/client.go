// Package client talks to the storefront API over HTTP. Client implements
// the product and order repositories so the CLI can run checkout against a
// remote backend exactly as it would against a local one.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/galadrinks/storefront/internal/domain/order"
	"github.com/galadrinks/storefront/internal/domain/product"
	"github.com/galadrinks/storefront/internal/wire"
)

// DefaultTimeout bounds every request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://api.example.com.
	BaseURL string
	Timeout time.Duration
	// Transport defaults to http.DefaultTransport.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	// UserAgent is sent with every request when set.
	UserAgent string
}

// Client is an API client. A zero token sends unauthenticated requests.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	token     string
}

var (
	_ order.Writer       = (*Client)(nil)
	_ order.AtomicPlacer = (*Client)(nil)
	_ order.Reader       = (*Client)(nil)
	_ product.Repository = (*Client)(nil)
)

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}

	return &Client{
		base: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(cfg.Transport, opts...),
		},
		userAgent: cfg.UserAgent,
	}, nil
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   wire.Encoder
	// want is the expected status; out is decoded from its body when set.
	want int
	out  wire.Decoder
}

func (c *Client) do(ctx context.Context, r request) error {
	u := *c.base
	u.Path += r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(wire.Marshal(r.body))
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	for k, v := range r.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", r.method, r.path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode != r.want {
		return newAPIError(resp.StatusCode, data)
	}
	if r.out == nil {
		return nil
	}
	if err := wire.Unmarshal(data, r.out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", r.method, r.path)
	}
	return nil
}
