package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// BoosterClient talks to the booster generation service, which also serves
// the set catalog and set icons.
type BoosterClient struct {
	baseURL string
	http    *http.Client
}

func NewBoosterClient(baseURL string, timeout time.Duration) *BoosterClient {
	return &BoosterClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type boosterResponse struct {
	Pack  []string `json:"pack"`
	Set   string   `json:"set"`
	Count int      `json:"count"`
}

// FetchPack returns the card names of one freshly generated booster. It keeps
// no state between calls and does not retry.
func (c *BoosterClient) FetchPack(ctx context.Context, setCode string) ([]string, error) {
	q := url.Values{}
	q.Set("set", setCode)
	resp, err := c.get(ctx, "/booster?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, malformed(ServiceBooster, "decode booster: %v", err)
	}
	var out boosterResponse
	packField, ok := raw["pack"]
	if !ok {
		return nil, malformed(ServiceBooster, "'pack' array is missing")
	}
	if err := json.Unmarshal(packField, &out.Pack); err != nil || out.Pack == nil {
		return nil, malformed(ServiceBooster, "'pack' is not an array of card names")
	}
	return out.Pack, nil
}

// SetSummary is one entry of the set catalog.
type SetSummary struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	HasModel bool   `json:"has_model"`
	HasIcon  bool   `json:"has_icon"`
}

// SetList is the catalog body as the booster service sends it.
type SetList struct {
	Sets  []SetSummary `json:"sets"`
	Count int          `json:"count"`
}

// ListSets returns the catalog body unchanged so fields unknown to this
// server still reach the browser.
func (c *BoosterClient) ListSets(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.get(ctx, "/sets")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ServiceBooster, err)
	}
	if !json.Valid(body) {
		return nil, malformed(ServiceBooster, "sets: invalid JSON")
	}
	return body, nil
}

func (c *BoosterClient) SetIcon(ctx context.Context, code string) (*Binary, error) {
	resp, err := c.get(ctx, "/sets/"+url.PathEscape(code)+"/icon")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ServiceBooster, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/svg+xml"
	}
	return &Binary{Body: body, ContentType: contentType}, nil
}

func (c *BoosterClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ServiceBooster, err)
	}
	if err := checkStatus(ServiceBooster, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
