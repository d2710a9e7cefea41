// Package redis wraps the go-redis client so stores depend on an interface
// that miniredis-backed clients also satisfy in tests.
package redis

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the subset of go-redis the stores rely on.
type Client interface {
	redis.UniversalClient
}

type Options struct {
	PoolSize        int
	MinIdleConns    int
	ConnMaxIdleTime time.Duration
	MaxRetries      int
}

// NewClient creates a client for a single instance. Redis connects lazily so
// no round trip happens here.
func NewClient(endpoint string, opts *Options) (Client, error) {
	if endpoint == "" {
		return nil, errors.New("redis: endpoint is required")
	}

	if opts == nil {
		opts = &Options{}
	}

	return redis.NewClient(&redis.Options{
		Addr:            endpoint,
		MinIdleConns:    opts.MinIdleConns,
		PoolSize:        opts.PoolSize,
		ConnMaxIdleTime: opts.ConnMaxIdleTime,
		MaxRetries:      opts.MaxRetries,
	}), nil
}

// NewClientFromURL accepts redis:// URLs as well as bare host:port endpoints.
func NewClientFromURL(rawURL string) (Client, error) {
	if rawURL == "" {
		return nil, errors.New("redis: endpoint is required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return NewClient(rawURL, nil)
	}
	return redis.NewClient(opts), nil
}
