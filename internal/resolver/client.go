// Package resolver talks to a tiled image resolver: it builds tile requests,
// issues them one at a time and classifies each response as tile data, a
// boundary signal, a transient failure or a fatal failure.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"github.com/jackzampolin/tilebook/internal/metrics"
)

// Defaults for Config fields left zero.
const (
	DefaultTimeout   = 60 * time.Second
	DefaultUserAgent = "tilebook"
)

// maxTileBytes caps a single tile response.
var maxTileBytes int64 = 64 << 20

// Config configures a resolver Client.
type Config struct {
	URLTemplate string        // defaults to DefaultURLTemplate
	Timeout     time.Duration // per-request timeout
	RateLimit   float64       // requests per second, <= 0 disables limiting
	UserAgent   string
	HTTP2       bool         // negotiate HTTP/2 over TLS
	HTTPClient  *http.Client // overrides Timeout and HTTP2 when set
	Logger      *slog.Logger
}

// Client fetches single tiles from the resolver.
type Client struct {
	template  string
	userAgent string
	http      *http.Client
	limiter   *RateLimiter
	logger    *slog.Logger
}

// NewClient creates a resolver client.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	template := cfg.URLTemplate
	if template == "" {
		template = DefaultURLTemplate
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		if cfg.HTTP2 {
			if err := http2.ConfigureTransport(transport); err != nil {
				return nil, fmt.Errorf("failed to enable HTTP/2: %w", err)
			}
		}
		httpClient = &http.Client{Transport: transport, Timeout: timeout}
	}

	return &Client{
		template:  template,
		userAgent: userAgent,
		http:      httpClient,
		limiter:   NewRateLimiter(cfg.RateLimit),
		logger:    logger,
	}, nil
}

// SetRateLimit changes the request rate of a running client.
func (c *Client) SetRateLimit(perSecond float64) {
	c.limiter.SetRate(perSecond)
}

// RateLimit returns the current request rate.
func (c *Client) RateLimit() float64 {
	return c.limiter.Rate()
}

// RateLimitWait returns the total time requests spent waiting on the rate limit.
func (c *Client) RateLimitWait() time.Duration {
	return c.limiter.TotalWaited()
}

// Fetch issues exactly one request for the tile described by req.
//
// It returns the tile bytes on success, ErrBoundary when the resolver
// answers 404, a *TransientError for network failures and other statuses,
// and a *FatalError for an empty or oversized 200 response. Context errors are returned
// unwrapped.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	data, outcome, err := c.do(ctx, req)
	metrics.ObserveTileRequest(outcome, time.Since(start))

	if err != nil && outcome != metrics.OutcomeBoundary {
		c.logger.Debug("tile request failed", "request", req.String(), "outcome", outcome, "error", err)
	}
	return data, err
}

func (c *Client) do(ctx context.Context, req Request) ([]byte, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL(c.template), nil)
	if err != nil {
		return nil, metrics.OutcomeFatal, &FatalError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, metrics.OutcomeCanceled, ctxErr
		}
		return nil, metrics.OutcomeTransient, &TransientError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, metrics.OutcomeBoundary, ErrBoundary
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, metrics.OutcomeTransient, &TransientError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", string(snippet)),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, metrics.OutcomeCanceled, ctxErr
		}
		return nil, metrics.OutcomeTransient, &TransientError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response: %w", err),
		}
	}
	if len(data) == 0 {
		return nil, metrics.OutcomeFatal, &FatalError{Err: errors.New("empty tile body")}
	}
	if int64(len(data)) > maxTileBytes {
		return nil, metrics.OutcomeFatal, &FatalError{Err: fmt.Errorf("tile larger than %d bytes", maxTileBytes)}
	}
	return data, metrics.OutcomeOK, nil
}
