package websocket

import (
	"encoding/json"
	"log"

	"github.com/dom/lotus-draft/internal/domain"
)

// EventEmitter sends draft events to the clients of one room. It is only
// used from the room's Run goroutine.
type EventEmitter struct {
	room *Room
}

func NewEventEmitter(room *Room) *EventEmitter {
	return &EventEmitter{room: room}
}

// Broadcast sends a message to all clients in the room.
func (e *EventEmitter) Broadcast(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal message: %v", err)
		return
	}
	for client := range e.room.clients {
		client.trySend(data)
	}
}

// SendTo sends a message to a specific client.
func (e *EventEmitter) SendTo(client *Client, msg *Message) {
	client.Send(msg)
}

func (e *EventEmitter) emit(msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		log.Printf("failed to build %s message: %v", msgType, err)
		return
	}
	e.Broadcast(msg)
}

// --- Draft lifecycle events ---

func (e *EventEmitter) StateSync(view DraftView) {
	e.emit(MessageTypeStateSync, view)
}

func (e *EventEmitter) CardSelected(cardID string) {
	e.emit(MessageTypeCardSelected, CardSelectedPayload{CardID: cardID})
}

func (e *EventEmitter) RoundResolved(view DraftView) {
	e.emit(MessageTypeRoundResolved, view)
}

func (e *EventEmitter) BoosterStarted(view DraftView) {
	e.emit(MessageTypeBoosterStarted, BoosterStartedPayload{
		Booster:   view.Booster,
		Direction: view.Direction,
		View:      view,
	})
}

func (e *EventEmitter) DraftCompleted(arenaList string, picks []domain.Card) {
	e.emit(MessageTypeDraftCompleted, DraftCompletedPayload{
		ArenaList: arenaList,
		Picks:     picks,
	})
}

// --- Overlay events ---

func (e *EventEmitter) Predictions(payload PredictionsPayload) {
	e.emit(MessageTypePredictions, payload)
}

// --- Error events ---

// Error broadcasts a failure that is not tied to one client's request.
func (e *EventEmitter) Error(code, message string) {
	e.emit(MessageTypeError, ErrorPayload{Code: code, Message: message})
}

// SendError sends an error to a specific client.
func (e *EventEmitter) SendError(client *Client, code, message string) {
	client.sendError(code, message)
}
