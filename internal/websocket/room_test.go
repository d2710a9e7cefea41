package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dom/lotus-draft/internal/config"
	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/pkg/clock"
	"github.com/dom/lotus-draft/internal/repository/memory"
	"github.com/dom/lotus-draft/internal/service"
	"github.com/dom/lotus-draft/internal/upstream"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPacks struct {
	n atomic.Int64
}

func (p *stubPacks) FetchPack(ctx context.Context, setCode string) ([]string, error) {
	n := p.n.Add(1)
	return []string{
		fmt.Sprintf("card %d-a", n),
		fmt.Sprintf("card %d-b", n),
		fmt.Sprintf("card %d-c", n),
	}, nil
}

type stubCards struct{}

func (stubCards) Card(ctx context.Context, name, set string) (*upstream.ScryfallCard, error) {
	return &upstream.ScryfallCard{Name: name, CMC: 1, Set: set, CollectorNumber: "1"}, nil
}

// gatedPredictor holds requests for packs whose first card has a gate until
// the gate is closed. Everything else is answered at once.
type gatedPredictor struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGatedPredictor() *gatedPredictor {
	return &gatedPredictor{gates: make(map[string]chan struct{})}
}

func (p *gatedPredictor) gate(first string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.gates[first]
	if !ok {
		g = make(chan struct{})
		p.gates[first] = g
	}
	return g
}

func (p *gatedPredictor) Predict(ctx context.Context, in upstream.PredictRequest) ([]upstream.Prediction, error) {
	p.mu.Lock()
	g, gated := p.gates[in.Pack[0]]
	p.mu.Unlock()
	if gated {
		select {
		case <-g:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []upstream.Prediction{{CardName: in.Pack[0], Probability: 1}}, nil
}

func newTestRoom(t *testing.T, predictor service.Predictor) (*Room, *service.Services) {
	t.Helper()

	cfg := &config.Config{
		SessionSecret:  "secret",
		SessionTTL:     time.Hour,
		BotPickTimeout: time.Second,
		ImageVersion:   "png",
		DefaultSet:     "mh3",
	}
	repos := memory.NewRepositories(time.Hour, clock.New())
	services := service.NewServices(repos, service.Clients{
		Packs:     &stubPacks{},
		Cards:     stubCards{},
		Predictor: predictor,
	}, cfg)

	room := NewRoom(uuid.New(), services.Draft, services.Store)
	go room.Run()
	t.Cleanup(func() {
		room.Stop()
		room.Wait()
	})
	return room, services
}

func do(t *testing.T, room *Room, cmd Command) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return room.Do(ctx, cmd)
}

func TestRoom_EnterAndPick(t *testing.T) {
	room, _ := newTestRoom(t, newGatedPredictor())

	res := do(t, room, Command{Type: CommandEnter})
	require.NoError(t, res.Err)
	require.NotNil(t, res.View)
	assert.Equal(t, "mh3", res.View.SetCode)
	require.Len(t, res.View.Pack, 3)

	res = do(t, room, Command{Type: CommandSelect, CardID: res.View.Pack[2].ID})
	require.NoError(t, res.Err)
	selected := res.View.SelectedCardID

	res = do(t, room, Command{Type: CommandPick})
	require.NoError(t, res.Err)
	require.Len(t, res.View.Picks, 1)
	assert.Equal(t, selected, res.View.Picks[0].ID)
	assert.Empty(t, res.View.SelectedCardID)
}

func TestRoom_CommandsWithoutDraft(t *testing.T) {
	room, _ := newTestRoom(t, newGatedPredictor())

	res := do(t, room, Command{Type: CommandSync})
	assert.ErrorIs(t, res.Err, domain.ErrNoActiveDraft)
	require.NotNil(t, res.View)
	assert.Equal(t, domain.PhaseInitializing, res.View.Phase)

	for _, typ := range []CommandType{CommandSelect, CommandPick, CommandContinue, CommandPredictions} {
		res := do(t, room, Command{Type: typ, CardID: "x"})
		assert.ErrorIs(t, res.Err, domain.ErrNoActiveDraft, "command %s", typ)
	}

	res = do(t, room, Command{Type: "dance"})
	assert.ErrorIs(t, res.Err, ErrUnknownCommand)
}

func TestRoom_StalePredictionsAreDropped(t *testing.T) {
	predictor := newGatedPredictor()
	room, _ := newTestRoom(t, predictor)

	res := do(t, room, Command{Type: CommandEnter})
	require.NoError(t, res.Err)
	pack := res.View.Pack
	firstPack := service.PackFingerprint(pack)
	firstGate := predictor.gate(pack[0].Name)

	res = do(t, room, Command{Type: CommandSettings, Settings: domain.Settings{AIPredictionEnabled: true}})
	require.NoError(t, res.Err)

	pending := do(t, room, Command{Type: CommandPredictions})
	require.NoError(t, pending.Err)
	assert.True(t, pending.Predictions.Pending)
	assert.Equal(t, firstPack, pending.Predictions.Fingerprint)

	// Pick before the first ranking arrives; the pack changes.
	res = do(t, room, Command{Type: CommandPick, CardID: pack[0].ID})
	require.NoError(t, res.Err)
	secondPack := service.PackFingerprint(res.View.Pack)
	require.NotEqual(t, firstPack, secondPack)
	close(firstGate)

	var final Result
	require.Eventually(t, func() bool {
		final = do(t, room, Command{Type: CommandPredictions})
		return final.Err == nil && !final.Predictions.Pending
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, secondPack, final.Predictions.Fingerprint)
	require.Len(t, final.Predictions.Predictions, 1)
	assert.Equal(t, res.View.Pack[0].Name, final.Predictions.Predictions[0].CardName)
}

func TestRoom_PredictionsDisabled(t *testing.T) {
	room, _ := newTestRoom(t, newGatedPredictor())
	require.NoError(t, do(t, room, Command{Type: CommandEnter}).Err)

	res := do(t, room, Command{Type: CommandPredictions})
	assert.ErrorIs(t, res.Err, ErrPredictionsDisabled)
}

func TestRoom_MoveCard(t *testing.T) {
	room, _ := newTestRoom(t, newGatedPredictor())
	res := do(t, room, Command{Type: CommandEnter})
	require.NoError(t, res.Err)
	res = do(t, room, Command{Type: CommandPick, CardID: res.View.Pack[0].ID})
	require.NoError(t, res.Err)
	picked := res.View.Picks[0].ID

	res = do(t, room, Command{Type: CommandMoveCard, CardID: picked, Bucket: -1})
	assert.ErrorIs(t, res.Err, ErrInvalidBucket)

	res = do(t, room, Command{Type: CommandMoveCard, CardID: picked, Bucket: 4})
	require.NoError(t, res.Err)
	assert.Equal(t, 4, res.View.Picks[0].CurveValue())
}

func TestRoom_StopRejectsCommands(t *testing.T) {
	room, _ := newTestRoom(t, newGatedPredictor())
	room.Stop()
	room.Wait()

	res := do(t, room, Command{Type: CommandSync})
	assert.ErrorIs(t, res.Err, ErrRoomClosed)
}

func TestHub_SweepsIdleRooms(t *testing.T) {
	_, services := newTestRoom(t, newGatedPredictor())
	hub := NewHub(services.Draft, services.Store, time.Minute)
	go hub.Run()
	defer hub.Stop()

	sessionID := uuid.New()
	room := hub.Room(sessionID)
	require.NotNil(t, room)
	assert.Same(t, room, hub.Room(sessionID))
	assert.Equal(t, 1, hub.RoomCount())

	hub.sweepIdle(time.Now())
	assert.Equal(t, 1, hub.RoomCount(), "recently active room is kept")

	hub.sweepIdle(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, hub.RoomCount())

	// A swept session gets a fresh room on next use.
	res := hub.Do(context.Background(), sessionID, Command{Type: CommandSync})
	assert.ErrorIs(t, res.Err, domain.ErrNoActiveDraft)
	assert.Equal(t, 1, hub.RoomCount())
}
