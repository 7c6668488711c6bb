// Package httpfetch downloads binary documents over HTTP.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds one fetch attempt.
const DefaultTimeout = 30 * time.Second

// Error describes a failed fetch.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Fetcher retrieves raw bytes with a per-request timeout.
type Fetcher struct {
	client *http.Client
}

// NewFetcher constructs a Fetcher. timeout <= 0 uses DefaultTimeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch GETs url and returns the body. Non-2xx statuses are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Message: "create request", Cause: err}
	}
	req.Header.Set("Accept", "application/pdf,application/octet-stream,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Message: fmt.Sprintf("http %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Message: "read body", Cause: err}
	}
	return body, nil
}
