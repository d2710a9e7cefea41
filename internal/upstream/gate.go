package upstream

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RateGate is a RoundTripper that spaces requests to one host at least
// MinInterval apart. Requests to other hosts pass straight through, so
// redirects to an image CDN are not throttled. Callers block until their
// slot comes up; nothing is dropped.
type RateGate struct {
	base    http.RoundTripper
	host    string
	limiter *rate.Limiter
}

func NewRateGate(base http.RoundTripper, host string, minInterval time.Duration) *RateGate {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RateGate{
		base:    base,
		host:    host,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (g *RateGate) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host == g.host {
		if err := g.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate gate: %w", err)
		}
	}
	return g.base.RoundTrip(req)
}
