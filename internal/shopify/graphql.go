package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	maxRequestAttempts = 3
	defaultRetryAfter  = 5 * time.Second
	defaultBackoffStep = 5 * time.Second
	defaultHTTPTimeout = 30 * time.Second
)

type Client struct {
	HTTPClient *http.Client
	APIVersion string

	// BaseURL overrides the per-shop admin endpoint. Tests point it at an
	// httptest server; production leaves it empty.
	BaseURL string

	// RetryAfterDefault is used when a 429 carries no Retry-After header.
	// BackoffStep scales the linear backoff between transient failures.
	RetryAfterDefault time.Duration
	BackoffStep       time.Duration
}

func NewClient(apiVersion string) *Client {
	return &Client{
		HTTPClient:        &http.Client{Timeout: defaultHTTPTimeout},
		APIVersion:        apiVersion,
		RetryAfterDefault: defaultRetryAfter,
		BackoffStep:       defaultBackoffStep,
	}
}

func (c *Client) endpoint(shop string) string {
	if !strings.HasSuffix(shop, ".myshopify.com") {
		shop += ".myshopify.com"
	}
	if c.BaseURL != "" {
		return c.BaseURL + "/admin/api/" + c.APIVersion + "/graphql.json"
	}
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, c.APIVersion)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) retryAfterDefault() time.Duration {
	if c.RetryAfterDefault > 0 {
		return c.RetryAfterDefault
	}
	return defaultRetryAfter
}

func (c *Client) backoffStep() time.Duration {
	if c.BackoffStep > 0 {
		return c.BackoffStep
	}
	return defaultBackoffStep
}

type GraphQLError struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code,omitempty"`
	} `json:"extensions,omitempty"`
}

// Response is the GraphQL envelope. A populated Errors slice on a 200
// response is returned to the caller as data, never as a Go error.
type Response[T any] struct {
	Data   T              `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// StatusError is a non-200/429 admin API response, surfaced after retries.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("shopify api http %d: %s", e.Code, e.Body)
}

// Post issues an authenticated GraphQL request. 429 responses are retried
// after the advertised Retry-After (or a default), transient network errors
// with linearly increasing backoff, up to maxRequestAttempts in total.
func Post[T any](ctx context.Context, c *Client, shop, accessToken, query string, variables any) (*Response[T], error) {
	body := map[string]any{"query": query}
	if variables != nil {
		body["variables"] = variables
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	endpoint := c.endpoint(shop)

	var lastErr error
	for attempt := 1; attempt <= maxRequestAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("content-type", "application/json")
		req.Header.Set("X-Shopify-Access-Token", accessToken)

		res, err := c.httpClient().Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRequestAttempts {
				log.WithFields(log.Fields{"shop": shop, "attempt": attempt}).
					Warnf("shopify request failed: %v", err)
				if err := sleepCtx(ctx, time.Duration(attempt)*c.backoffStep()); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("shopify request failed after %d attempts: %w", maxRequestAttempts, err)
		}

		raw, readErr := io.ReadAll(res.Body)
		res.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		switch {
		case res.StatusCode == http.StatusOK:
			var out Response[T]
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("decode graphql response: %w", err)
			}
			return &out, nil

		case res.StatusCode == http.StatusTooManyRequests:
			lastErr = &StatusError{Code: res.StatusCode, Body: string(raw)}
			if attempt < maxRequestAttempts {
				wait := retryAfter(res.Header.Get("Retry-After"), c.retryAfterDefault())
				log.WithFields(log.Fields{"shop": shop, "retry_after": wait}).
					Warn("rate limited by shopify, retrying")
				if err := sleepCtx(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr

		default:
			return nil, &StatusError{Code: res.StatusCode, Body: string(raw)}
		}
	}
	return nil, lastErr
}

func retryAfter(header string, fallback time.Duration) time.Duration {
	h := strings.TrimSpace(header)
	if h == "" {
		return fallback
	}
	if secs, err := strconv.ParseFloat(h, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
