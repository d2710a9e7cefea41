package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dom/lotus-draft/internal/pkg/clock"
	"golang.org/x/sync/singleflight"
)

type ScryfallConfig struct {
	BaseURL      string
	MinInterval  time.Duration
	CacheTTL     time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	Timeout      time.Duration
	UserAgent    string
	Clock        clock.Clock
	// Transport is the innermost RoundTripper; tests swap it out.
	Transport http.RoundTripper
}

// ScryfallClient is the single process-wide path to the card database. All
// lookups share one rate gate, one retry policy and one response cache.
type ScryfallClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	cache     *TTLCache[json.RawMessage]
	inflight  singleflight.Group
}

func NewScryfallClient(cfg ScryfallConfig) (*ScryfallClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid scryfall base URL %q", cfg.BaseURL)
	}

	gate := NewRateGate(cfg.Transport, base.Host, cfg.MinInterval)
	inner := &http.Client{Transport: gate, Timeout: cfg.Timeout}

	return &ScryfallClient{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		http: newRetryingClient(inner, RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     cfg.RetryBackoff,
		}),
		cache: NewTTLCache[json.RawMessage](cfg.CacheTTL, cfg.Clock),
	}, nil
}

func cardCacheKey(name, set string) string {
	return name + "-" + set
}

// LookupCard returns the raw card object for an exact card name. Successful
// responses are cached under name and set; concurrent misses for the same key
// share one upstream request.
func (c *ScryfallClient) LookupCard(ctx context.Context, name, set string) (json.RawMessage, error) {
	key := cardCacheKey(name, set)
	if data, ok := c.cache.Get(key); ok {
		return data, nil
	}

	// The shared fetch outlives any one caller; the client timeout bounds it.
	ch := c.inflight.DoChan(key, func() (any, error) {
		return c.fetchCard(context.WithoutCancel(ctx), key, name)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("lookup %q: %w", name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}

func (c *ScryfallClient) fetchCard(ctx context.Context, key, name string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("exact", name)
	resp, err := c.get(ctx, "/cards/named?"+q.Encode(), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ServiceScryfall, err)
	}
	if !json.Valid(body) {
		return nil, malformed(ServiceScryfall, "card %q: invalid JSON", name)
	}

	data := json.RawMessage(body)
	c.cache.Set(key, data)
	return data, nil
}

// Card looks up and decodes a card.
func (c *ScryfallClient) Card(ctx context.Context, name, set string) (*ScryfallCard, error) {
	data, err := c.LookupCard(ctx, name, set)
	if err != nil {
		return nil, err
	}
	var card ScryfallCard
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, malformed(ServiceScryfall, "card %q: %v", name, err)
	}
	return &card, nil
}

// CardImage follows the image redirect for a card and returns the bytes.
func (c *ScryfallClient) CardImage(ctx context.Context, name, version string) (*Binary, error) {
	q := url.Values{}
	q.Set("exact", name)
	q.Set("format", "image")
	q.Set("version", version)
	resp, err := c.get(ctx, "/cards/named?"+q.Encode(), "image/*")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ServiceScryfall, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &Binary{Body: body, ContentType: contentType}, nil
}

func (c *ScryfallClient) get(ctx context.Context, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ServiceScryfall, err)
	}
	if err := checkStatus(ServiceScryfall, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ScryfallCard is the subset of a Scryfall card object the draft uses.
type ScryfallCard struct {
	Name            string            `json:"name"`
	CMC             float64           `json:"cmc"`
	Set             string            `json:"set"`
	CollectorNumber string            `json:"collector_number"`
	ImageURIs       map[string]string `json:"image_uris,omitempty"`
	CardFaces       []ScryfallFace    `json:"card_faces,omitempty"`
}

type ScryfallFace struct {
	Name      string            `json:"name"`
	ImageURIs map[string]string `json:"image_uris,omitempty"`
}

// ImageURL picks the requested image version, falling back to the front face
// of double-faced cards. It returns "" when neither carries one.
func (c *ScryfallCard) ImageURL(version string) string {
	if u := c.ImageURIs[version]; u != "" {
		return u
	}
	if len(c.CardFaces) > 0 {
		return c.CardFaces[0].ImageURIs[version]
	}
	return ""
}
