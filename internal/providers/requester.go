package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Requester performs JSON HTTP calls against one provider with a shared
// rate limit and retry-with-backoff on 429 and 5xx responses.
type Requester struct {
	name        string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      *zap.Logger
}

type Option func(*Requester)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Requester) { r.httpClient = c }
}

// WithRetries sets how many times a retryable failure is repeated and the
// initial backoff, which doubles on each attempt.
func WithRetries(maxRetries int, baseBackoff time.Duration) Option {
	return func(r *Requester) {
		r.maxRetries = maxRetries
		r.baseBackoff = baseBackoff
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Requester) { r.logger = l }
}

// NewRequester creates a requester limited to rps requests per second.
// rps <= 0 disables limiting.
func NewRequester(name string, rps float64, timeout time.Duration, opts ...Option) *Requester {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	r := &Requester{
		name:        name,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  3,
		baseBackoff: 500 * time.Millisecond,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Requester) Name() string { return r.name }

// Do sends the request and decodes a 2xx JSON body into target. The body is
// resent on every attempt.
func (r *Requester) Do(ctx context.Context, method, url string, body []byte, header http.Header, target interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.baseBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Unavailable(r.name, ctx.Err())
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return Unavailable(r.name, err)
		}

		retry, err := r.once(ctx, method, url, body, header, target)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
		r.logger.Debug("retrying provider request",
			zap.String("provider", r.name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return fmt.Errorf("after %d retries: %w", r.maxRetries, lastErr)
}

func (r *Requester) once(ctx context.Context, method, url string, body []byte, header http.Header, target interface{}) (bool, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return false, Unavailable(r.name, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// A cancelled or expired context will not recover on retry.
		if ctx.Err() != nil {
			return false, Unavailable(r.name, ctx.Err())
		}
		return true, Unavailable(r.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Provider: r.name, Code: resp.StatusCode}
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retryable, statusErr
	}

	if target == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return false, Unavailable(r.name, fmt.Errorf("decode response: %w", err))
	}
	return false, nil
}
