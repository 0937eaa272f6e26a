package options

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-formrules/pkg/model"
)

var (
	// ErrFetch wraps transport, status and decode failures.
	ErrFetch = errors.New("options: fetch failed")
	// ErrNoOptions reports a response that mapped to an empty list.
	ErrNoOptions = errors.New("options: no options returned")
)

// DefaultTimeout bounds a single remote fetch.
const DefaultTimeout = 10 * time.Second

// Resolver fetches remote option lists through a shared Cache. Concurrent
// requests for one cache key collapse into a single HTTP call.
type Resolver struct {
	client  *http.Client
	cache   *Cache
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

// WithCache shares an existing cache.
func WithCache(cache *Cache) ResolverOption {
	return func(r *Resolver) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithRateLimit caps outbound fetches per second. Zero disables limiting.
func WithRateLimit(perSecond float64, burst int) ResolverOption {
	return func(r *Resolver) {
		if perSecond <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver builds a resolver with its own cache unless WithCache is given.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.cache == nil {
		r.cache = NewCache(WithCacheLogger(r.logger))
	}
	return r
}

// Cache exposes the underlying cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Invalidate drops the cache entry for src, or the whole cache when src is nil.
func (r *Resolver) Invalidate(ctx context.Context, src *model.ApiOptionSource) {
	r.cache.Invalidate(ctx, src)
}

// ResolveRemote returns the options for src, serving a live cache entry unless
// forceRefresh is set. An empty mapped list returns ErrNoOptions and is not
// cached.
func (r *Resolver) ResolveRemote(ctx context.Context, src model.ApiOptionSource, forceRefresh bool) ([]model.Option, error) {
	if strings.TrimSpace(src.URL) == "" {
		return nil, fmt.Errorf("%w: url is required", ErrFetch)
	}
	key := CacheKey(src)
	if !forceRefresh {
		if cached, ok := r.cache.GetKey(ctx, key); ok {
			return cached, nil
		}
	}

	// The flight outlives any single caller; each caller waits on its own ctx.
	flight := r.group.DoChan(key, func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), src)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrFetch, ctx.Err())
	case res = <-flight:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	opts := res.Val.([]model.Option)
	if len(opts) == 0 {
		return nil, ErrNoOptions
	}
	r.cache.SetKey(ctx, key, opts)
	return cloneOptions(opts), nil
}

func (r *Resolver) fetch(ctx context.Context, src model.ApiOptionSource) ([]model.Option, error) {
	start := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(start).Seconds())
	}()

	payload, err := r.fetchPayload(ctx, src)
	if err != nil {
		remoteFetches.WithLabelValues("error").Inc()
		r.logger.Warn("option fetch failed",
			slog.String("url", src.URL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	opts := MapItems(ExtractItems(payload, src.ItemsPath), src)
	if len(opts) == 0 {
		remoteFetches.WithLabelValues("empty").Inc()
	} else {
		remoteFetches.WithLabelValues("ok").Inc()
	}
	return opts, nil
}

func (r *Resolver) fetchPayload(ctx context.Context, src model.ApiOptionSource) (any, error) {
	reqCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(reqCtx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
	}

	method := strings.ToUpper(strings.TrimSpace(src.Method))
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(reqCtx, method, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: request: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	for name, value := range src.Headers {
		req.Header.Set(name, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrFetch, resp.Status)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFetch, err)
	}
	return payload, nil
}
