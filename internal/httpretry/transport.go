// Package httpretry provides an http.RoundTripper that retries idempotent
// reads once on transient upstream failures.
package httpretry

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	// Retries is the number of extra attempts for GET/HEAD. Only 0 and 1 are meaningful.
	Retries int
	Backoff time.Duration
}

type Transport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

// NewTransport wraps base. With Retries <= 0 base is returned unchanged.
func NewTransport(base http.RoundTripper, cfg Config) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.Retries <= 0 {
		return base
	}
	if cfg.Retries > 1 {
		cfg.Retries = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &Transport{base: base, retries: cfg.Retries, backoff: cfg.Backoff}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("httpretry: nil request")
	}
	if !idempotent(req.Method) {
		return t.base.RoundTrip(req)
	}

	resp, err := t.base.RoundTrip(req)
	for attempt := 0; attempt < t.retries && retryable(resp, err); attempt++ {
		if err := req.Context().Err(); err != nil {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}

		timer := time.NewTimer(t.backoff)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, fmt.Errorf("httpretry: %w", req.Context().Err())
		case <-timer.C:
		}

		resp, err = t.base.RoundTrip(req.Clone(req.Context()))
	}
	return resp, err
}

func idempotent(method string) bool {
	return strings.EqualFold(method, http.MethodGet) || strings.EqualFold(method, http.MethodHead)
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
