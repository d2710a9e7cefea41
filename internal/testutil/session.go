package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

// Session is a browser session against a TestServer.
type Session struct {
	t     *testing.T
	ts    *TestServer
	Token string
	ID    string
}

// NewSession asks the server for a fresh session token.
func (ts *TestServer) NewSession(t *testing.T) *Session {
	t.Helper()

	resp, err := http.Get(ts.APIURL("/session"))
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		SessionID string `json:"sessionId"`
		Token     string `json:"token"`
	}
	AssertJSONResponse(t, resp, &body)
	if body.Token == "" {
		t.Fatalf("session response carried no token")
	}

	return &Session{t: t, ts: ts, Token: body.Token, ID: body.SessionID}
}

// Do sends an authenticated request. The caller closes the body.
func (s *Session) Do(method, path string, body interface{}) *http.Response {
	s.t.Helper()

	req := CreateAuthenticatedRequest(s.t, method, s.ts.APIURL(path), body, s.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// DoJSON sends a request, requires the expected status and decodes the body.
func (s *Session) DoJSON(method, path string, body interface{}, status int, out interface{}) {
	s.t.Helper()

	resp := s.Do(method, path, body)
	defer resp.Body.Close()
	if resp.StatusCode != status {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		s.t.Fatalf("%s %s: status %d, want %d: %s", method, path, resp.StatusCode, status, buf.String())
	}
	if out != nil {
		AssertJSONResponse(s.t, resp, out)
	}
}

// WebSocket connects a websocket client for this session.
func (s *Session) WebSocket() *WSClient {
	s.t.Helper()
	return NewWSClient(s.t, s.ts.WebSocketURL(s.Token))
}

// CreateAuthenticatedRequest creates an HTTP request with a session token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}
