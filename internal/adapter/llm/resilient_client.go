package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// ResilientClient carries HTTP calls to the classification endpoint with
// bounded retries and a circuit breaker. When the model API degrades, the
// analyze pipeline falls through to agent review instead of hanging on it.
type ResilientClient struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	cfg     ResilientClientConfig
}

// ResilientClientConfig tunes retry and circuit breaking for model calls.
// The service resolves these from internal/config (llm.resilience section
// plus LLM_CIRCUIT_BREAKER_* / LLM_RETRY_* overrides).
type ResilientClientConfig struct {
	BreakerEnabled  bool
	BreakerFailures uint32
	BreakerCooldown time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
}

// DefaultResilientClientConfig matches the config package defaults, for
// callers constructing a classifier without going through config.Load.
func DefaultResilientClientConfig() ResilientClientConfig {
	return ResilientClientConfig{
		BreakerEnabled:  true,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
		MaxRetries:      3,
		RetryBaseDelay:  500 * time.Millisecond,
		RetryMaxDelay:   5 * time.Second,
	}
}

func NewResilientClient(timeout time.Duration, cfg ResilientClientConfig) *ResilientClient {
	c := &ResilientClient{
		http: &http.Client{Timeout: timeout},
		cfg:  cfg,
	}

	if cfg.BreakerEnabled {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm-classifier",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("⚡ Circuit breaker '%s' changed from %s to %s", name, from, to)
				if to == gobreaker.StateOpen {
					RecordError("circuit_open")
				}
			},
		})
	}

	return c
}

// Do executes the request, retrying transient failures, through the circuit
// breaker when one is configured.
func (c *ResilientClient) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.attempt(req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.attempt(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			RecordError("circuit_open")
			return nil, fmt.Errorf("circuit breaker is open: %w", err)
		}
		return nil, err
	}

	return result.(*http.Response), nil
}

func (c *ResilientClient) attempt(req *http.Request) (*http.Response, error) {
	// The body reader is consumed on the first attempt; buffer it once so
	// every retry sends the same payload.
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	policy := backoff.WithContext(c.retryPolicy(), req.Context())

	var resp *http.Response
	var lastErr error

	try := func() error {
		if payload != nil {
			req.Body = io.NopCloser(bytes.NewReader(payload))
		}

		r, err := c.http.Do(req)
		if err != nil {
			RecordError("connection")
			lastErr = err
			if retryableError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if r.StatusCode >= 400 {
			recordStatusError(r.StatusCode)
			r.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", r.StatusCode, r.Status)
			if retryableStatus(r.StatusCode) {
				return lastErr
			}
			return backoff.Permanent(lastErr)
		}

		resp = r
		return nil
	}

	if err := backoff.Retry(try, policy); err != nil {
		return nil, fmt.Errorf("request failed after retries: %w", lastErr)
	}

	return resp, nil
}

func (c *ResilientClient) retryPolicy() backoff.BackOff {
	if c.cfg.MaxRetries <= 0 {
		return &backoff.StopBackOff{}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.RetryBaseDelay
	exp.MaxInterval = c.cfg.RetryMaxDelay
	exp.Multiplier = 2.0
	exp.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	return backoff.WithMaxRetries(exp, uint64(c.cfg.MaxRetries))
}

// retryableError reports whether a transport error is worth another attempt.
func retryableError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF")
}

// retryableStatus reports whether a status code signals a transient failure.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func recordStatusError(status int) {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		RecordError("auth")
	case http.StatusTooManyRequests:
		RecordError("rate_limit")
	case http.StatusRequestTimeout:
		RecordError("timeout")
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		RecordError("server_error")
	default:
		RecordError("http_error")
	}
}
