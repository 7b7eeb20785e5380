package retry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// DefaultRetryStatuses are the gateway errors worth another attempt.
var DefaultRetryStatuses = []int{
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// StatusError is returned when a retryable status persisted through every attempt.
type StatusError struct {
	StatusCode int
	Attempts   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d after %d attempts", e.StatusCode, e.Attempts)
}

// Transport is an http.RoundTripper that retries idempotent requests whose
// response status is in Statuses. Each attempt gets its own Timeout.
type Transport struct {
	Base     http.RoundTripper
	Config   RetryConfig
	Statuses []int
	Timeout  time.Duration
}

// NewTransport wraps base with the HTTP retry policy.
func NewTransport(base http.RoundTripper, config RetryConfig, timeout time.Duration) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		Base:     base,
		Config:   config,
		Statuses: DefaultRetryStatuses,
		Timeout:  timeout,
	}
}

func (t *Transport) retryable(status int) bool {
	for _, s := range t.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.GetBody == nil {
		// Bodies that cannot be replayed get a single attempt.
		return t.attempt(req)
	}

	attempt := 0
	op := func() (*http.Response, error) {
		attempt++
		r := req
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			r = req.Clone(req.Context())
			r.Body = body
		}
		resp, err := t.attempt(r)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if t.retryable(resp.StatusCode) {
			drain(resp)
			return nil, &StatusError{StatusCode: resp.StatusCode, Attempts: attempt}
		}
		return resp, nil
	}
	notify := func(err error, delay time.Duration) {
		t.Config.logger().Warn("Retryable response, backing off",
			zap.String("url", req.URL.String()),
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
	}

	b := backoff.WithContext(t.Config.NewBackOff(), req.Context())
	return backoff.RetryNotifyWithData(op, b, notify)
}

// CloseIdleConnections forwards to the base transport.
func (t *Transport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := t.Base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

// attempt performs one round trip bounded by the per-attempt timeout. The
// timeout stays armed until the caller closes the body.
func (t *Transport) attempt(req *http.Request) (*http.Response, error) {
	if t.Timeout <= 0 {
		return t.Base.RoundTrip(req)
	}
	ctx, cancel := context.WithTimeout(req.Context(), t.Timeout)
	resp, err := t.Base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
