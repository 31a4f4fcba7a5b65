package resilience

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps an http.Client with a circuit breaker and bounded retries.
// Request bodies are buffered so attempts can be replayed.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	MaxAttempts int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// Do executes the request. Responses with 5xx status codes count as failures
// and are retried up to MaxAttempts; 4xx responses are returned as-is.
func (c HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := c.BaseBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.Breaker != nil && !c.Breaker.Allow() {
			return nil, ErrOpenCircuit
		}
		resp, err := c.attempt(ctx, req, body)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			c.report(true)
			return resp, nil
		}
		if err == nil {
			lastErr = errors.New(resp.Status)
			_ = resp.Body.Close()
		} else {
			lastErr = err
		}
		c.report(false)
		if attempt == maxAttempts {
			break
		}
		wait := backoff * time.Duration(1<<uint(attempt-1))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (c HTTPClient) attempt(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = c.Client.Timeout
	}
	callCtx := ctx
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	clone := req.Clone(callCtx)
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	resp, err := c.Client.Do(clone)
	if err != nil {
		cancel()
		return nil, err
	}
	// keep the per-attempt context alive until the body is consumed
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func (c HTTPClient) report(success bool) {
	if c.Breaker != nil {
		c.Breaker.Report(success)
	}
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}
