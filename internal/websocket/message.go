package websocket

import (
	"encoding/json"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/upstream"
)

type MessageType string

const (
	// Client to Server
	MessageTypeSyncState       MessageType = "SYNC_STATE"
	MessageTypeSelectCard      MessageType = "SELECT_CARD"
	MessageTypeConfirmPick     MessageType = "CONFIRM_PICK"
	MessageTypeRestartDraft    MessageType = "RESTART_DRAFT"
	MessageTypeContinueBooster MessageType = "CONTINUE_BOOSTER"

	// Server to Client
	MessageTypeStateSync      MessageType = "STATE_SYNC"
	MessageTypeCardSelected   MessageType = "CARD_SELECTED"
	MessageTypeRoundResolved  MessageType = "ROUND_RESOLVED"
	MessageTypeBoosterStarted MessageType = "BOOSTER_STARTED"
	MessageTypeDraftCompleted MessageType = "DRAFT_COMPLETED"
	MessageTypePredictions    MessageType = "PREDICTIONS"
	MessageTypeError          MessageType = "ERROR"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Client to Server payloads

type SelectCardPayload struct {
	CardID string `json:"cardId"`
}

// ConfirmPickPayload may omit the card to confirm the current selection.
type ConfirmPickPayload struct {
	CardID string `json:"cardId,omitempty"`
}

type RestartDraftPayload struct {
	SetCode string `json:"set"`
}

// Server to Client payloads

// DraftView is the human's view of a draft. Bot packs are reduced to sizes.
type DraftView struct {
	SessionID      string           `json:"sessionId"`
	SetCode        string           `json:"setCode"`
	Phase          domain.Phase     `json:"phase"`
	Booster        int              `json:"currentBooster"`
	Pick           int              `json:"currentPick"`
	Direction      domain.Direction `json:"direction"`
	Pack           []domain.Card    `json:"pack"`
	Picks          []domain.Card    `json:"picks"`
	SeatPackSizes  []int            `json:"seatPackSizes"`
	SeatPickCounts []int            `json:"seatPickCounts"`
	SelectedCardID string           `json:"selectedCardId,omitempty"`
	Settings       domain.Settings  `json:"settings"`
	// Error is the last failed operation, kept until the next success so a
	// reconnecting client can offer a retry.
	Error *ErrorPayload `json:"error,omitempty"`
}

type CardSelectedPayload struct {
	CardID string `json:"cardId"`
}

type BoosterStartedPayload struct {
	Booster   int              `json:"booster"`
	Direction domain.Direction `json:"direction"`
	View      DraftView        `json:"view"`
}

type DraftCompletedPayload struct {
	ArenaList string        `json:"arenaList"`
	Picks     []domain.Card `json:"picks"`
}

type PredictionsPayload struct {
	Fingerprint string                `json:"fingerprint"`
	Predictions []upstream.Prediction `json:"predictions"`
	Pending     bool                  `json:"pending"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
