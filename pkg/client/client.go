// Package client provides the core provider HTTP fetcher with shared rate
// limiting, adaptive backoff, bounded retries and error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for provider requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citegraph_requests_total",
		Help: "Total provider requests by provider and status",
	}, []string{"provider", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "citegraph_request_duration_seconds",
		Help:    "Provider request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"provider"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citegraph_errors_total",
		Help: "Total provider errors by provider and class",
	}, []string{"provider", "class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citegraph_retries_total",
		Help: "Total retry attempts by provider",
	}, []string{"provider"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citegraph_retry_exhausted_total",
		Help: "Total fetches that exhausted every attempt",
	}, []string{"provider"})
)

// Limiter admits one outbound call, blocking until the shared call budget
// allows it.
type Limiter interface {
	Wait()
}

// Backoff is the shared adaptive delay state machine. Exactly one of
// Penalize or Reward is called after every attempt.
type Backoff interface {
	Penalize() time.Duration
	Reward() time.Duration
}

// Config holds fetcher configuration for one provider.
type Config struct {
	// Provider names the upstream service in logs and metrics.
	Provider string

	// UserAgent is sent on every request. Both providers ask polite
	// clients to identify themselves with a contact address.
	UserAgent string

	// MaxRetries bounds attempts per logical fetch (default 3).
	MaxRetries int

	// Timeout applies per HTTP request. The registry endpoint is
	// heavier than the open-metadata one, so each provider configures
	// its own.
	Timeout time.Duration
}

// DefaultConfig returns a safe per-provider configuration.
func DefaultConfig(provider string) Config {
	return Config{
		Provider:   provider,
		MaxRetries: 3,
		Timeout:    15 * time.Second,
	}
}

// Fetcher performs one logical JSON fetch against a provider, applying the
// shared limiter and backoff on every attempt.
type Fetcher struct {
	httpClient *http.Client
	limiter    Limiter
	backoff    Backoff
	cfg        Config
	logger     zerolog.Logger
}

// New creates a fetcher. Limiter and backoff are injected so every fetcher
// in the process can share one admission budget, and so tests can
// substitute no-op implementations.
func New(cfg Config, limiter Limiter, backoff Backoff) *Fetcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		backoff:    backoff,
		cfg:        cfg,
		logger:     log.With().Str("component", "fetcher").Str("provider", cfg.Provider).Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(hc *http.Client) {
	f.httpClient = hc
}

// GetJSON fetches rawURL and decodes the 200 body into out.
//
// For up to MaxRetries attempts: wait for rate admission, issue the GET,
// and on 200 reward the shared backoff and decode. A 404 penalizes once
// and returns ErrNotFound without further attempts. Any network error or
// other status penalizes the backoff and retries. When every attempt fails
// the error wraps ErrRetryExhausted; callers treat that as absent data,
// not as a crash.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, out any) error {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(f.cfg.Provider).Observe(time.Since(start).Seconds())
	}()

	var lastErr error

	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			retriesTotal.WithLabelValues(f.cfg.Provider).Inc()
		}

		f.limiter.Wait()

		done, err := f.attempt(ctx, rawURL, out)
		if done {
			return err
		}
		lastErr = err

		f.logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", f.cfg.MaxRetries).
			Str("url", rawURL).
			Msg("Attempt failed, retrying")
	}

	retryExhaustedTotal.WithLabelValues(f.cfg.Provider).Inc()
	f.logger.Warn().
		Err(lastErr).
		Int("max_attempts", f.cfg.MaxRetries).
		Str("url", rawURL).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, f.cfg.MaxRetries, lastErr)
}

// attempt performs one rate-admitted GET. It returns done=true when the
// outcome is final (success, not-found, malformed) and done=false when the
// attempt failed transiently and may be retried.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return true, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(f.cfg.Provider, string(ClassTransient)).Inc()
		requestsTotal.WithLabelValues(f.cfg.Provider, "network_error").Inc()
		f.backoff.Penalize()
		return false, &ProviderError{
			Provider: f.cfg.Provider,
			Class:    ClassTransient,
			Message:  "request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(f.cfg.Provider, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			errorsTotal.WithLabelValues(f.cfg.Provider, string(ClassTransient)).Inc()
			f.backoff.Penalize()
			return false, &ProviderError{
				Provider: f.cfg.Provider,
				Class:    ClassTransient,
				Message:  "read body",
				Err:      err,
			}
		}

		// The attempt reached the provider and was answered; reward
		// before decoding so a shape problem does not raise everyone
		// else's delay.
		f.backoff.Reward()

		if err := json.Unmarshal(body, out); err != nil {
			errorsTotal.WithLabelValues(f.cfg.Provider, string(ClassMalformed)).Inc()
			f.logger.Warn().Err(err).Str("url", rawURL).Msg("Undecodable response body")
			return true, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return true, nil
	}

	class := classifyStatus(resp.StatusCode)
	errorsTotal.WithLabelValues(f.cfg.Provider, string(class)).Inc()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)

	if !shouldRetry(class) {
		// 404 is a final answer but still a non-200: it escalates the
		// shared delay once and is not retried.
		f.backoff.Penalize()
		return true, fmt.Errorf("%w: %s returned %d", ErrNotFound, f.cfg.Provider, resp.StatusCode)
	}

	f.backoff.Penalize()
	return false, &ProviderError{
		Provider:   f.cfg.Provider,
		StatusCode: resp.StatusCode,
		Class:      class,
		Message:    resp.Status,
	}
}
