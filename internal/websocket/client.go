package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	// commandTimeout bounds how long one websocket message waits on the room.
	commandTimeout = 2 * time.Minute
)

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	room      *Room
	sessionID uuid.UUID
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionID uuid.UUID) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("failed to unmarshal message: %v", err)
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	if c.room == nil {
		return
	}

	var cmd Command
	switch msg.Type {
	case MessageTypeSyncState:
		cmd = Command{Type: CommandSync}

	case MessageTypeSelectCard:
		var payload SelectCardPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_PAYLOAD", "Invalid select card payload")
			return
		}
		cmd = Command{Type: CommandSelect, CardID: payload.CardID}

	case MessageTypeConfirmPick:
		var payload ConfirmPickPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				c.sendError("INVALID_PAYLOAD", "Invalid confirm pick payload")
				return
			}
		}
		cmd = Command{Type: CommandPick, CardID: payload.CardID}

	case MessageTypeRestartDraft:
		var payload RestartDraftPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				c.sendError("INVALID_PAYLOAD", "Invalid restart payload")
				return
			}
		}
		cmd = Command{Type: CommandRestart, SetCode: payload.SetCode}

	case MessageTypeContinueBooster:
		cmd = Command{Type: CommandContinue}

	default:
		c.sendError("UNKNOWN_MESSAGE", "Unknown message type: "+string(msg.Type))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	res := c.room.Do(ctx, cmd)

	if cmd.Type == CommandSync {
		// A session without a draft still gets its (empty) view.
		if res.View != nil {
			m, err := NewMessage(MessageTypeStateSync, res.View)
			if err == nil {
				c.Send(m)
			}
		}
		if res.Err != nil && !errors.Is(res.Err, domain.ErrNoActiveDraft) {
			c.sendError(ErrorCode(res.Err), res.Err.Error())
		}
		return
	}
	if res.Err != nil {
		c.sendError(ErrorCode(res.Err), res.Err.Error())
	}
}

func (c *Client) sendError(code, message string) {
	msg, _ := NewMessage(MessageTypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
	c.Send(msg)
}

func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal message: %v", err)
		return
	}
	c.trySend(data)
}

// trySend drops the message when the buffer is full or the client is gone.
func (c *Client) trySend(data []byte) {
	defer func() {
		if recover() != nil {
			// Channel closed, client is disconnecting - skip silently
		}
	}()

	select {
	case c.send <- data:
	default:
	}
}

// Close closes the outgoing channel, which makes WritePump send a close frame.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
