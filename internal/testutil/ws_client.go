package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dom/lotus-draft/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
)

// WSClient is a test WebSocket client
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan *websocket.Message
	errors   chan error
	done     chan struct{}
	mu       sync.Mutex
}

// NewWSClient creates a new WebSocket test client
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	dialer := gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}

	client := &WSClient{
		t:        t,
		conn:     conn,
		messages: make(chan *websocket.Message, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

// readPump reads messages from the WebSocket connection
func (c *WSClient) readPump() {
	defer close(c.messages)
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				select {
				case <-c.done:
					return
				case c.errors <- err:
				}
				return
			}

			var msg websocket.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.errors <- err
				continue
			}

			select {
			case c.messages <- &msg:
			case <-c.done:
				return
			}
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		// Send close frame and close connection without artificial delay
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// send writes a client message to the server
func (c *WSClient) send(msgType websocket.MessageType, payload interface{}) {
	c.t.Helper()

	var payloadBytes json.RawMessage
	if payload != nil {
		var err error
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("failed to marshal payload: %v", err)
		}
	}

	data, err := json.Marshal(&websocket.Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		c.t.Fatalf("failed to marshal message: %v", err)
	}

	c.mu.Lock()
	err = c.conn.WriteMessage(gorillaWS.TextMessage, data)
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send %s: %v", msgType, err)
	}
}

// SendRaw writes an arbitrary text frame.
func (c *WSClient) SendRaw(data string) {
	c.t.Helper()

	c.mu.Lock()
	err := c.conn.WriteMessage(gorillaWS.TextMessage, []byte(data))
	c.mu.Unlock()

	if err != nil {
		c.t.Fatalf("failed to send raw message: %v", err)
	}
}

func (c *WSClient) SyncState() {
	c.send(websocket.MessageTypeSyncState, nil)
}

func (c *WSClient) SelectCard(cardID string) {
	c.send(websocket.MessageTypeSelectCard, websocket.SelectCardPayload{CardID: cardID})
}

// ConfirmPick confirms cardID, or the current selection when cardID is empty.
func (c *WSClient) ConfirmPick(cardID string) {
	c.send(websocket.MessageTypeConfirmPick, websocket.ConfirmPickPayload{CardID: cardID})
}

func (c *WSClient) RestartDraft(setCode string) {
	c.send(websocket.MessageTypeRestartDraft, websocket.RestartDraftPayload{SetCode: setCode})
}

func (c *WSClient) ContinueBooster() {
	c.send(websocket.MessageTypeContinueBooster, nil)
}

// ExpectMessage waits for a message of the specified type
func (c *WSClient) ExpectMessage(msgType websocket.MessageType, timeout time.Duration) *websocket.Message {
	c.t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				c.t.Fatalf("connection closed while waiting for %s", msgType)
			}
			if msg.Type == msgType {
				return msg
			}
			// Skip other message types
		case err := <-c.errors:
			c.t.Fatalf("error while waiting for %s: %v", msgType, err)
		case <-deadline:
			c.t.Fatalf("timeout waiting for message type %s", msgType)
		}
	}
}

func decodePayload[T any](c *WSClient, msg *websocket.Message) *T {
	c.t.Helper()

	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.t.Fatalf("failed to decode %s payload: %v", msg.Type, err)
	}
	return &payload
}

// ExpectStateSync waits for and decodes a STATE_SYNC message
func (c *WSClient) ExpectStateSync(timeout time.Duration) *websocket.DraftView {
	c.t.Helper()
	return decodePayload[websocket.DraftView](c, c.ExpectMessage(websocket.MessageTypeStateSync, timeout))
}

// ExpectCardSelected waits for and decodes a CARD_SELECTED message
func (c *WSClient) ExpectCardSelected(timeout time.Duration) *websocket.CardSelectedPayload {
	c.t.Helper()
	return decodePayload[websocket.CardSelectedPayload](c, c.ExpectMessage(websocket.MessageTypeCardSelected, timeout))
}

// ExpectRoundResolved waits for and decodes a ROUND_RESOLVED message
func (c *WSClient) ExpectRoundResolved(timeout time.Duration) *websocket.DraftView {
	c.t.Helper()
	return decodePayload[websocket.DraftView](c, c.ExpectMessage(websocket.MessageTypeRoundResolved, timeout))
}

// ExpectBoosterStarted waits for and decodes a BOOSTER_STARTED message
func (c *WSClient) ExpectBoosterStarted(timeout time.Duration) *websocket.BoosterStartedPayload {
	c.t.Helper()
	return decodePayload[websocket.BoosterStartedPayload](c, c.ExpectMessage(websocket.MessageTypeBoosterStarted, timeout))
}

// ExpectDraftCompleted waits for and decodes a DRAFT_COMPLETED message
func (c *WSClient) ExpectDraftCompleted(timeout time.Duration) *websocket.DraftCompletedPayload {
	c.t.Helper()
	return decodePayload[websocket.DraftCompletedPayload](c, c.ExpectMessage(websocket.MessageTypeDraftCompleted, timeout))
}

// ExpectPredictions waits for and decodes a PREDICTIONS message
func (c *WSClient) ExpectPredictions(timeout time.Duration) *websocket.PredictionsPayload {
	c.t.Helper()
	return decodePayload[websocket.PredictionsPayload](c, c.ExpectMessage(websocket.MessageTypePredictions, timeout))
}

// ExpectError waits for and decodes an ERROR message
func (c *WSClient) ExpectError(timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()
	return decodePayload[websocket.ErrorPayload](c, c.ExpectMessage(websocket.MessageTypeError, timeout))
}

// ExpectErrorWithCode waits for an ERROR message with a specific code
func (c *WSClient) ExpectErrorWithCode(code string, timeout time.Duration) *websocket.ErrorPayload {
	c.t.Helper()

	payload := c.ExpectError(timeout)
	if payload.Code != code {
		c.t.Fatalf("expected error code %s, got %s: %s", code, payload.Code, payload.Message)
	}
	return payload
}

// ExpectNoMessage verifies no messages are received within timeout
func (c *WSClient) ExpectNoMessage(timeout time.Duration) {
	c.t.Helper()

	select {
	case msg := <-c.messages:
		if msg != nil {
			c.t.Fatalf("unexpected message received: %s", msg.Type)
		}
	case <-time.After(timeout):
		// Expected - no message received
	}
}

// DrainMessages drains all pending messages from the channel with a timeout.
// It waits for messages to settle, then drains everything currently buffered.
func (c *WSClient) DrainMessages() {
	c.DrainMessagesWithTimeout(100 * time.Millisecond)
}

// DrainMessagesWithTimeout drains messages, waiting up to timeout for the channel to settle.
// This replaces the old sleep+drain pattern with a proper implementation.
func (c *WSClient) DrainMessagesWithTimeout(timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.messages:
			if msg == nil {
				return
			}
			// Reset deadline when we receive a message - more might be coming
			deadline = time.After(50 * time.Millisecond)
		case <-deadline:
			// No messages for timeout duration, channel is settled
			return
		case <-c.done:
			return
		}
	}
}
