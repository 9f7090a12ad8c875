package llm

import (
	"context"
	"net/http"
	"time"
)

const (
	maxRetries     = 3
	retryBaseDelay = 250 * time.Millisecond
)

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// doWithRetry executes an HTTP request with exponential backoff on rate
// limits and server errors. The request is rebuilt for every attempt so the
// body reader is never consumed twice.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	delay := retryBaseDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if retryableStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			lastErr = &httpStatusError{status: resp.Status, code: resp.StatusCode}
			continue
		}
		return resp, nil
	}

	return nil, lastErr
}

type httpStatusError struct {
	status string
	code   int
}

func (e *httpStatusError) Error() string {
	return "llm: retryable status " + e.status
}
