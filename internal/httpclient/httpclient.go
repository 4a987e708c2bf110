// Package httpclient holds the request/decode loop shared by the map and weather
// vendors. Every failure comes back classified through apierr.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/UnknownOlympus/hermes/internal/apierr"
)

// DefaultTimeout bounds every outbound call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a vendor response is read.
const maxBodySize = 4 << 20

// Doer defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns an *http.Client with the given timeout, or DefaultTimeout when it is not positive.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Request describes a single GET call against a vendor API.
type Request struct {
	Provider string            // Provider name used in errors, e.g. "baidu".
	Op       string            // Operation name used in errors, e.g. "geocode".
	URL      string            // Fully built URL including the query string.
	Header   map[string]string // Extra headers.
}

// GetJSON executes req and decodes the JSON body into out.
// Network failures and non-2xx statuses are transport errors; an undecodable
// body is a malformed response.
func GetJSON(ctx context.Context, client Doer, req Request, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return apierr.Transport(req.Provider, req.Op, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range req.Header {
		httpReq.Header.Set(key, value)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return apierr.Transport(req.Provider, req.Op, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return apierr.Transport(req.Provider, req.Op, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return apierr.Transport(req.Provider, req.Op, &StatusError{Code: resp.StatusCode, Body: string(body)})
	}

	if err = json.Unmarshal(body, out); err != nil {
		return apierr.Malformed(req.Provider, req.Op, fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}

// StatusError is returned when a vendor answers with a non-2xx HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	const maxShown = 200
	body := e.Body
	if len(body) > maxShown {
		body = body[:maxShown] + "..."
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, body)
}
