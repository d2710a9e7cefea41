package upstream

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RetryPolicy retries HTTP 429 responses only. Other failures are returned
// to the caller on the first attempt.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is used when the response carries no usable Retry-After.
	Backoff time.Duration
}

// newRetryingClient wraps inner in the retry policy. When the last attempt is
// still a 429 the response itself is returned so callers can pass the status on.
func newRetryingClient(inner *http.Client, policy RetryPolicy) *http.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = inner
	rc.Logger = nil
	rc.RetryMax = max(policy.MaxAttempts-1, 0)
	rc.CheckRetry = retryOn429
	rc.Backoff = retryAfterBackoff(policy.Backoff)
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return rc.StandardClient()
}

func retryOn429(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, err
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

func retryAfterBackoff(fallback time.Duration) retryablehttp.Backoff {
	return func(_, _ time.Duration, _ int, resp *http.Response) time.Duration {
		if resp != nil {
			if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
				return d
			}
		}
		return fallback
	}
}

// parseRetryAfter reads the delay-seconds form of Retry-After.
func parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
