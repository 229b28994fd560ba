package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hszk-dev/vidproxy/internal/domain/model"
	"github.com/hszk-dev/vidproxy/internal/infrastructure/metrics"
)

// maxResolverBody caps how much of a resolver response is read.
const maxResolverBody = 4 * 1024 * 1024

// ResolverConfig configures HTTPResolver.
type ResolverConfig struct {
	BaseURL string
	Timeout time.Duration
	Headers BrowserHeaders
}

// HTTPResolver calls the upstream resolver once per Resolve. It does not retry.
type HTTPResolver struct {
	client  *http.Client
	baseURL *url.URL
	headers BrowserHeaders
}

// NewHTTPResolver creates a resolver client. Timeout bounds the whole call,
// from dialing to reading the last body byte.
func NewHTTPResolver(cfg ResolverConfig) (*HTTPResolver, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse resolver base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("resolver base url %q must be absolute", cfg.BaseURL)
	}

	return &HTTPResolver{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(cfg.Timeout),
		},
		baseURL: base,
		headers: cfg.Headers,
	}, nil
}

// Resolve fetches download metadata for sourceURL.
func (r *HTTPResolver) Resolve(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error) {
	video, err := r.resolve(ctx, sourceURL)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(metrics.TargetResolver, model.KindOf(err)).Inc()
		return nil, err
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.TargetResolver, metrics.ResultOK).Inc()
	return video, nil
}

func (r *HTTPResolver) resolve(ctx context.Context, sourceURL string) (*model.ResolvedVideo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.buildURL(sourceURL), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", model.ErrInternal, err)
	}
	r.headers.apply(req)

	start := time.Now()
	resp, err := r.client.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(metrics.TargetResolver).Observe(time.Since(start).Seconds())
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: resolver: %v", model.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: resolver: %v", model.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: resolver returned HTTP %d", model.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResolverBody))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: read resolver body: %v", model.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: read resolver body: %v", model.ErrUpstream, err)
	}

	return model.ParseResolvedVideo(body)
}

// buildURL passes sourceURL as the url query parameter of the base URL.
func (r *HTTPResolver) buildURL(sourceURL string) string {
	u := *r.baseURL
	q := u.Query()
	q.Set("url", sourceURL)
	u.RawQuery = q.Encode()
	return u.String()
}
