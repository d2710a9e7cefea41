package websocket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/service"
	"github.com/dom/lotus-draft/internal/upstream"
	"github.com/google/uuid"
)

var (
	ErrRoomClosed          = errors.New("room closed")
	ErrNoCardSelected      = errors.New("no card selected")
	ErrInvalidBucket       = errors.New("invalid curve bucket")
	ErrUnknownCommand      = errors.New("unknown command")
	ErrPredictionsDisabled = errors.New("predictions disabled")
)

type CommandType string

const (
	CommandEnter       CommandType = "enter"
	CommandLeave       CommandType = "leave"
	CommandRestart     CommandType = "restart"
	CommandSync        CommandType = "sync"
	CommandSelect      CommandType = "select"
	CommandPick        CommandType = "pick"
	CommandContinue    CommandType = "continue"
	CommandMoveCard    CommandType = "move_card"
	CommandPredictions CommandType = "predictions"
	CommandSettings    CommandType = "settings"
)

// Command is one request against a session's draft.
type Command struct {
	Type     CommandType
	SetCode  string
	CardID   string
	Bucket   int
	Settings domain.Settings

	reply chan Result
}

type Result struct {
	View        *DraftView
	Predictions *PredictionsPayload
	Err         error
}

type predictionResult struct {
	fingerprint string
	predictions []upstream.Prediction
	err         error
}

// Room owns one session's draft. Every state change runs on the Run
// goroutine; REST handlers and websocket clients submit Commands and wait for
// the Result.
type Room struct {
	sessionID uuid.UUID
	drafts    *service.DraftService
	store     *service.DraftStore
	overlay   *service.PredictionOverlay
	emitter   *EventEmitter
	clients   map[*Client]bool

	draft          *service.Draft
	selectedCardID string
	lastError      *ErrorPayload
	settings       domain.Settings
	settingsLoaded bool

	// Read by the hub's idle sweep.
	clientCount atomic.Int32
	lastActive  atomic.Int64

	ctx         context.Context
	cancel      context.CancelFunc
	join        chan *Client
	leave       chan *Client
	commands    chan *Command
	predictions chan predictionResult
	stop        chan struct{}
	stopOnce    sync.Once
	done        chan struct{}
}

func NewRoom(sessionID uuid.UUID, drafts *service.DraftService, store *service.DraftStore) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Room{
		sessionID:   sessionID,
		drafts:      drafts,
		store:       store,
		overlay:     service.NewPredictionOverlay(),
		clients:     make(map[*Client]bool),
		settings:    domain.DefaultSettings(),
		ctx:         ctx,
		cancel:      cancel,
		join:        make(chan *Client),
		leave:       make(chan *Client),
		commands:    make(chan *Command),
		predictions: make(chan predictionResult),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	r.emitter = NewEventEmitter(r)
	r.touch()
	return r
}

func (r *Room) SessionID() uuid.UUID {
	return r.sessionID
}

func (r *Room) Run() {
	defer close(r.done)

	for {
		select {
		case <-r.stop:
			r.overlay.Reset()
			for client := range r.clients {
				delete(r.clients, client)
				client.Close()
			}
			return

		case client := <-r.join:
			r.handleJoin(client)

		case client := <-r.leave:
			r.handleLeave(client)

		case cmd := <-r.commands:
			r.touch()
			cmd.reply <- r.handleCommand(cmd)

		case res := <-r.predictions:
			r.handlePrediction(res)
		}
	}
}

// Stop ends the room's loop and cancels outstanding upstream calls.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		r.cancel()
		close(r.stop)
	})
}

// Wait blocks until Run has returned.
func (r *Room) Wait() {
	<-r.done
}

// Do submits a command and waits for its result.
func (r *Room) Do(ctx context.Context, cmd Command) Result {
	cmd.reply = make(chan Result, 1)

	select {
	case r.commands <- &cmd:
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	case <-r.done:
		return Result{Err: ErrRoomClosed}
	}

	select {
	case res := <-cmd.reply:
		return res
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	case <-r.done:
		return Result{Err: ErrRoomClosed}
	}
}

// Join attaches a websocket client. It receives a STATE_SYNC right away.
func (r *Room) Join(client *Client) {
	select {
	case r.join <- client:
	case <-r.done:
		client.Close()
	}
}

func (r *Room) Leave(client *Client) {
	select {
	case r.leave <- client:
	case <-r.done:
		client.Close()
	}
}

// Idle reports whether the room has had no clients and no commands for d.
func (r *Room) Idle(now time.Time, d time.Duration) bool {
	if r.clientCount.Load() > 0 {
		return false
	}
	return now.Sub(time.Unix(0, r.lastActive.Load())) >= d
}

func (r *Room) touch() {
	r.lastActive.Store(time.Now().UnixNano())
}

func (r *Room) handleJoin(client *Client) {
	r.clients[client] = true
	r.clientCount.Store(int32(len(r.clients)))
	r.touch()

	r.loadSettings()
	r.restore()

	msg, err := NewMessage(MessageTypeStateSync, r.view())
	if err == nil {
		r.emitter.SendTo(client, msg)
	}
	if fp, preds := r.overlay.Current(); preds != nil {
		msg, err := NewMessage(MessageTypePredictions, PredictionsPayload{Fingerprint: fp, Predictions: preds})
		if err == nil {
			r.emitter.SendTo(client, msg)
		}
	}
}

func (r *Room) handleLeave(client *Client) {
	if _, ok := r.clients[client]; !ok {
		return
	}
	delete(r.clients, client)
	r.clientCount.Store(int32(len(r.clients)))
	r.touch()
	client.Close()
}

func (r *Room) loadSettings() {
	if r.settingsLoaded {
		return
	}
	r.settings = r.store.LoadSettings(r.ctx, r.sessionID)
	r.settingsLoaded = true
}

// restore picks up a saved draft when the room has none in memory, as after
// a server restart or an idle sweep.
func (r *Room) restore() {
	if r.draft != nil {
		return
	}
	if d, ok := r.drafts.Restore(r.ctx, r.sessionID); ok {
		r.draft = d
	}
}

func (r *Room) handleCommand(cmd *Command) Result {
	r.loadSettings()

	switch cmd.Type {
	case CommandEnter:
		return r.enter(cmd.SetCode)
	case CommandLeave:
		return r.leaveDraft()
	case CommandRestart:
		return r.restart(cmd.SetCode)
	case CommandSync:
		r.restore()
		res := r.result()
		if r.draft == nil {
			res.Err = domain.ErrNoActiveDraft
		}
		return res
	case CommandSelect:
		return r.selectCard(cmd.CardID)
	case CommandPick:
		return r.pick(cmd.CardID)
	case CommandContinue:
		return r.continueBooster()
	case CommandMoveCard:
		return r.moveCard(cmd.CardID, cmd.Bucket)
	case CommandPredictions:
		return r.currentPredictions()
	case CommandSettings:
		r.settings = cmd.Settings.Normalized()
		r.refreshPredictions()
		r.emitter.StateSync(r.view())
		return r.result()
	}
	return Result{Err: fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Type)}
}

// adopt takes whatever state an engine call produced, even alongside an
// error, and records the error for the view.
func (r *Room) adopt(d *service.Draft, err error) {
	if d != nil {
		if r.draft == nil || !samePack(r.draft, d) {
			r.selectedCardID = ""
		}
		r.draft = d
	}
	if err != nil {
		r.lastError = &ErrorPayload{Code: ErrorCode(err), Message: err.Error()}
		log.Printf("ERROR [Room.adopt] session %s: %v", r.sessionID, err)
	} else {
		r.lastError = nil
	}
}

func samePack(a, b *service.Draft) bool {
	return service.PackFingerprint(a.HumanPack()) == service.PackFingerprint(b.HumanPack())
}

func (r *Room) enter(setCode string) Result {
	d, err := r.drafts.Enter(r.ctx, r.sessionID, setCode)
	r.adopt(d, err)
	r.refreshPredictions()
	r.emitter.StateSync(r.view())
	return r.resultWith(err)
}

func (r *Room) restart(setCode string) Result {
	if setCode == "" && r.draft != nil {
		setCode = r.draft.SetCode
	}
	d, err := r.drafts.Restart(r.ctx, r.sessionID, setCode)
	r.selectedCardID = ""
	r.adopt(d, err)
	r.refreshPredictions()
	r.emitter.StateSync(r.view())
	return r.resultWith(err)
}

func (r *Room) leaveDraft() Result {
	if err := r.drafts.Leave(r.ctx, r.sessionID); err != nil {
		log.Printf("ERROR [Room.leaveDraft] session %s: %v", r.sessionID, err)
	}
	r.draft = nil
	r.selectedCardID = ""
	r.lastError = nil
	r.overlay.Reset()
	return Result{}
}

func (r *Room) requireDraft() error {
	r.restore()
	if r.draft == nil {
		return domain.ErrNoActiveDraft
	}
	return nil
}

func (r *Room) selectCard(cardID string) Result {
	if err := r.requireDraft(); err != nil {
		return Result{Err: err}
	}
	if err := service.PickPhaseError(r.draft.Phase()); err != nil {
		return Result{Err: err}
	}
	if domain.IndexOfCard(r.draft.HumanPack(), cardID) < 0 {
		return Result{Err: domain.ErrCardNotInPack}
	}
	r.selectedCardID = cardID
	r.emitter.CardSelected(cardID)
	return r.result()
}

func (r *Room) pick(cardID string) Result {
	if err := r.requireDraft(); err != nil {
		return Result{Err: err}
	}
	if cardID == "" {
		cardID = r.selectedCardID
	}
	if cardID == "" {
		return Result{Err: ErrNoCardSelected}
	}

	before := r.draft
	d, err := r.drafts.ResolveRound(r.ctx, before, cardID)
	if d == nil && err != nil {
		// Rejected before anything changed.
		return Result{Err: err}
	}
	r.selectedCardID = ""
	r.adopt(d, err)

	view := r.view()
	r.emitter.RoundResolved(view)
	switch {
	case r.draft.State.Booster != before.State.Booster:
		r.emitter.BoosterStarted(view)
	case r.draft.Phase() == domain.PhaseComplete:
		r.emitter.DraftCompleted(r.drafts.ExportList(r.draft), r.draft.State.Human().Picks)
	}
	r.refreshPredictions()
	return r.resultWith(err)
}

func (r *Room) continueBooster() Result {
	if err := r.requireDraft(); err != nil {
		return Result{Err: err}
	}
	d, err := r.drafts.ContinueBooster(r.ctx, r.draft)
	if d == nil {
		return Result{Err: err}
	}
	r.adopt(d, err)
	if err == nil {
		r.emitter.BoosterStarted(r.view())
	} else {
		r.emitter.StateSync(r.view())
	}
	r.refreshPredictions()
	return r.resultWith(err)
}

func (r *Room) moveCard(cardID string, bucket int) Result {
	if err := r.requireDraft(); err != nil {
		return Result{Err: err}
	}
	if bucket < 0 {
		return Result{Err: ErrInvalidBucket}
	}
	d, err := r.drafts.MoveCard(r.ctx, r.draft, cardID, bucket)
	if err != nil {
		return Result{Err: err}
	}
	r.draft = d
	r.emitter.StateSync(r.view())
	return r.result()
}

// refreshPredictions asks for a ranking of the human's pack when the overlay
// is on and the pack changed. A response for an older pack is dropped.
func (r *Room) refreshPredictions() {
	if !r.settings.AIPredictionEnabled || r.draft == nil || r.draft.Phase() != domain.PhaseAwaitingHumanPick {
		r.overlay.Reset()
		return
	}
	r.requestPredictions()
}

func (r *Room) requestPredictions() {
	d := r.draft
	fp := service.PackFingerprint(d.HumanPack())
	ctx, started := r.overlay.Begin(r.ctx, fp)
	if !started {
		return
	}

	go func() {
		preds, err := r.drafts.Predict(ctx, d)
		select {
		case r.predictions <- predictionResult{fingerprint: fp, predictions: preds, err: err}:
		case <-r.done:
		}
	}()
}

func (r *Room) handlePrediction(res predictionResult) {
	if res.err != nil {
		if r.overlay.Fail(res.fingerprint) && !errors.Is(res.err, context.Canceled) {
			log.Printf("WARN [Room.handlePrediction] session %s: %v", r.sessionID, res.err)
			r.emitter.Error("PREDICTION_FAILED", res.err.Error())
		}
		return
	}
	if !r.overlay.Accept(res.fingerprint, res.predictions) {
		return
	}
	r.emitter.Predictions(PredictionsPayload{Fingerprint: res.fingerprint, Predictions: res.predictions})
}

func (r *Room) currentPredictions() Result {
	if err := r.requireDraft(); err != nil {
		return Result{Err: err}
	}
	if r.draft.Phase() != domain.PhaseAwaitingHumanPick {
		return Result{Err: service.PickPhaseError(r.draft.Phase())}
	}
	if !r.settings.AIPredictionEnabled {
		return Result{Err: ErrPredictionsDisabled}
	}

	fp := service.PackFingerprint(r.draft.HumanPack())
	current, preds := r.overlay.Current()
	if current != fp || preds == nil {
		r.requestPredictions()
		return Result{Predictions: &PredictionsPayload{Fingerprint: fp, Pending: true}}
	}
	return Result{Predictions: &PredictionsPayload{Fingerprint: fp, Predictions: preds}}
}

func (r *Room) result() Result {
	view := r.view()
	return Result{View: &view}
}

func (r *Room) resultWith(err error) Result {
	res := Result{Err: err}
	if r.draft != nil {
		view := r.view()
		res.View = &view
	}
	return res
}

func (r *Room) view() DraftView {
	view := DraftView{
		SessionID:      r.sessionID.String(),
		Phase:          domain.PhaseInitializing,
		Pack:           []domain.Card{},
		Picks:          []domain.Card{},
		SeatPackSizes:  make([]int, domain.SeatCount),
		SeatPickCounts: make([]int, domain.SeatCount),
		SelectedCardID: r.selectedCardID,
		Settings:       r.settings,
		Error:          r.lastError,
	}
	if r.draft == nil {
		return view
	}

	state := r.draft.State
	view.SetCode = r.draft.SetCode
	view.Phase = state.Phase()
	view.Booster = state.Booster
	view.Pick = state.Pick
	view.Direction = state.Direction
	view.Pack = state.Human().CurrentPack
	view.Picks = state.Human().Picks
	for i, p := range state.Players {
		view.SeatPackSizes[i] = len(p.CurrentPack)
		view.SeatPickCounts[i] = len(p.Picks)
	}
	return view
}

// ErrorCode maps an error to the code sent in ERROR messages.
func ErrorCode(err error) string {
	var upErr *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrCardNotInPack):
		return "CARD_NOT_IN_PACK"
	case errors.Is(err, domain.ErrCardNotPicked):
		return "CARD_NOT_PICKED"
	case errors.Is(err, domain.ErrDraftComplete):
		return "DRAFT_COMPLETE"
	case errors.Is(err, domain.ErrBoosterPending):
		return "BOOSTER_PENDING"
	case errors.Is(err, domain.ErrBoosterInProgress):
		return "BOOSTER_IN_PROGRESS"
	case errors.Is(err, domain.ErrNoActiveDraft):
		return "NO_ACTIVE_DRAFT"
	case errors.Is(err, ErrNoCardSelected):
		return "NO_CARD_SELECTED"
	case errors.Is(err, ErrInvalidBucket):
		return "INVALID_BUCKET"
	case errors.Is(err, ErrPredictionsDisabled):
		return "PREDICTIONS_DISABLED"
	case errors.As(err, &upErr):
		return "UPSTREAM_UNAVAILABLE"
	}
	return "INTERNAL_ERROR"
}
