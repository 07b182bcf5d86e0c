// Package upstream is the HTTP client for the reservation platform.
//
// Every call goes through one circuit breaker. Transport failures and 5xx
// replies count against it; 4xx replies are returned as *HTTPError without
// tripping it.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/example/machine-booker/internal/metrics"
)

const breakerName = "upstream"

// TokenSource supplies bearer tokens for authorized calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	BreakerTimeout time.Duration
}

type Client struct {
	hc      *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker[*reply]
	tokens  TokenSource
	logger  *slog.Logger
}

type reply struct {
	header http.Header
	body   []byte
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(metrics.StateValue(to))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			he, ok := AsHTTPError(err)
			return ok && he.Status < http.StatusInternalServerError
		},
	}
	metrics.BreakerState.WithLabelValues(breakerName).Set(0)

	return &Client{
		hc:      &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		breaker: gobreaker.NewCircuitBreaker[*reply](settings),
		logger:  logger,
	}
}

// WithTokenSource returns a client that authorizes calls with ts. The
// breaker and transport are shared with c.
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	cpy := *c
	cpy.tokens = ts
	return &cpy
}

// State reports the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// authorized performs a JSON call with the current bearer token.
func (c *Client) authorized(ctx context.Context, method, path string, query url.Values, body []byte) (*reply, error) {
	if c.tokens == nil {
		return nil, ErrNoTokenSource
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)
	headers.Set("Accept", "application/json")
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, headers, query, body)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, headers http.Header, query url.Values, body []byte) (*reply, error) {
	rawURL := c.baseURL + path
	r, err := c.breaker.Execute(func() (*reply, error) {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if len(query) > 0 {
			q := req.URL.Query()
			for k, vs := range query {
				for _, v := range vs {
					q.Add(k, v)
				}
			}
			req.URL.RawQuery = q.Encode()
		}

		res, err := c.hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("upstream %s %s: %w", method, path, err)
		}
		defer res.Body.Close()
		b, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("upstream %s %s: read body: %w", method, path, err)
		}
		if res.StatusCode >= 400 {
			return nil, &HTTPError{Method: method, Path: path, Status: res.StatusCode, Body: b}
		}
		return &reply{header: res.Header, body: b}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.WarnContext(ctx, "upstream call rejected by circuit breaker",
			slog.String("method", method),
			slog.String("path", path),
		)
		return nil, fmt.Errorf("upstream %s %s: %w", method, path, ErrCircuitOpen)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
