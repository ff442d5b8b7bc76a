// Package rest is the JSON-over-HTTP transport shared by the bank and budget API clients. Calls are retried
// with exponential backoff on transport errors, 429 and 5xx, and guarded by a circuit breaker so a failing API
// is not hammered by every incoming event.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

// StatusError is returned for responses that are not worth retrying.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

type Config struct {
	Name            string
	BaseURL         string
	Token           string
	Timeout         time.Duration
	MaxRetryElapsed time.Duration
	RetryInterval   time.Duration // first backoff wait, backoff's default when zero
	// BreakerFailures consecutive failures open the breaker for BreakerTimeout
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func New(cfg Config, l *zap.Logger) *Client {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger := l.With(zap.String("api", cfg.Name))

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// client errors are the caller's problem, not the API's health
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.Code < http.StatusInternalServerError)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// URL resolves path against the base URL; absolute URLs, such as pagination links, are returned unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

// Do sends in as the JSON body when non nil and decodes the response into out when non nil.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
	}

	url := c.URL(path)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.cfg.MaxRetryElapsed
	if c.cfg.RetryInterval > 0 {
		policy.InitialInterval = c.cfg.RetryInterval
	}

	var respBody []byte
	operation := func() error {
		res, err := c.breaker.Execute(func() (any, error) {
			return c.once(ctx, method, url, body)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%s api unavailable: %w", c.cfg.Name, err))
			}
			var se *StatusError
			if errors.As(err, &se) && !retryable(se.Code) {
				return backoff.Permanent(err)
			}
			return err
		}

		respBody = res.([]byte)
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("request failed, retrying", zap.String("method", method), zap.String("url", url),
			zap.Duration("wait", wait), zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return err
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("json unmarshal %s %s: %w", method, url, err)
	}

	return nil
}

func (c *Client) once(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, url, err)
	}

	c.logger.Debug("api request", zap.String("method", method), zap.String("url", url),
		zap.Int("status", resp.StatusCode), zap.Duration("dur", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, URL: url, Code: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
