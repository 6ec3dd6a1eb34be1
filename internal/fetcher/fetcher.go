// Package fetcher retrieves documents from the origin site over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// FetchError marks a transport-class failure: connection error, timeout or a
// non-success status from the origin. Callers treat it as transient.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher wraps a shared resty client configured for the process lifetime.
type Fetcher struct {
	client *resty.Client
}

// New creates a fetcher with transport-level retry on transient failures.
func New() *Fetcher {
	return &Fetcher{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(2 * time.Second).
			SetRetryMaxWaitTime(10 * time.Second),
	}
}

// Get retrieves the raw body of the given URL. The body is fully consumed
// before return; a connection failure or non-2xx status yields a *FetchError.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode()}
	}

	return resp.Body(), nil
}

// Ping issues a best-effort GET against the given URL and reports only
// whether it succeeded. Used for the liveness side call.
func (f *Fetcher) Ping(ctx context.Context, url string) error {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	if !resp.IsSuccess() {
		return &FetchError{URL: url, StatusCode: resp.StatusCode()}
	}
	return nil
}
