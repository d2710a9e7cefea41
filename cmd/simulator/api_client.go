package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/upstream"
	"github.com/dom/lotus-draft/internal/websocket"
)

// APIClient handles HTTP communication with the backend
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type Session struct {
	SessionID string    `json:"sessionId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StartSession obtains a session token, reusing token when it is still valid.
func (c *APIClient) StartSession(token string) (*Session, error) {
	c.token = token

	var session Session
	if err := c.do(http.MethodGet, "/session", nil, http.StatusOK, &session); err != nil {
		return nil, err
	}
	c.token = session.Token
	return &session, nil
}

// ListSets fetches the set catalog
func (c *APIClient) ListSets() ([]upstream.SetSummary, error) {
	var result upstream.SetList
	if err := c.do(http.MethodGet, "/sets", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return result.Sets, nil
}

// Enter resumes the session's draft or starts one for setCode
func (c *APIClient) Enter(setCode string) (*websocket.DraftView, error) {
	var view websocket.DraftView
	err := c.do(http.MethodPost, "/draft/enter", map[string]string{"set": setCode}, http.StatusOK, &view)
	return &view, err
}

// Restart throws the current draft away and deals a new one
func (c *APIClient) Restart(setCode string) (*websocket.DraftView, error) {
	var view websocket.DraftView
	err := c.do(http.MethodPost, "/draft/restart", map[string]string{"set": setCode}, http.StatusOK, &view)
	return &view, err
}

// Pick confirms the human pick for the current round
func (c *APIClient) Pick(cardID string) (*websocket.DraftView, error) {
	var view websocket.DraftView
	err := c.do(http.MethodPost, "/draft/pick", map[string]string{"cardId": cardID}, http.StatusOK, &view)
	return &view, err
}

// Continue retries dealing the next booster after a failed fetch
func (c *APIClient) Continue() (*websocket.DraftView, error) {
	var view websocket.DraftView
	err := c.do(http.MethodPost, "/draft/continue", nil, http.StatusOK, &view)
	return &view, err
}

// Draft fetches the current draft view
func (c *APIClient) Draft() (*websocket.DraftView, error) {
	var view websocket.DraftView
	err := c.do(http.MethodGet, "/draft", nil, http.StatusOK, &view)
	return &view, err
}

// Curve fetches the human pool grouped by mana value
func (c *APIClient) Curve() ([]domain.CurveColumn, error) {
	var curve []domain.CurveColumn
	err := c.do(http.MethodGet, "/draft/curve", nil, http.StatusOK, &curve)
	return curve, err
}

// Export fetches the pool as an Arena deck list
func (c *APIClient) Export() (string, error) {
	resp, err := c.request(http.MethodGet, "/draft/export", nil)
	if err != nil {
		return "", fmt.Errorf("export request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("export failed (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return string(bodyBytes), nil
}

// Predictions fetches the model ranking for the current pack
func (c *APIClient) Predictions() (*websocket.PredictionsPayload, error) {
	var preds websocket.PredictionsPayload
	err := c.do(http.MethodGet, "/draft/predictions", nil, http.StatusOK, &preds)
	return &preds, err
}

// EnablePredictions switches the prediction overlay on or off
func (c *APIClient) EnablePredictions(enabled bool) error {
	return c.do(http.MethodPut, "/settings", map[string]bool{"isAiPredictionEnabled": enabled}, http.StatusOK, nil)
}

func (c *APIClient) do(method, path string, body interface{}, status int, out interface{}) error {
	resp, err := c.request(method, path, body)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != status {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(bytes.TrimSpace(bodyBytes))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *APIClient) request(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// StatusError is a non-success response from the server.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed (status %d): %s", e.Method, e.Path, e.Status, e.Body)
}
