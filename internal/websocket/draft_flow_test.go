package websocket_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/testutil"
	"github.com/dom/lotus-draft/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultTimeout = 5 * time.Second

func enter(t *testing.T, s *testutil.Session, set string) websocket.DraftView {
	t.Helper()
	var view websocket.DraftView
	s.DoJSON(http.MethodPost, "/draft/enter", map[string]string{"set": set}, http.StatusOK, &view)
	return view
}

func TestDraftFlow_ConnectWithoutDraft(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)

	ws := s.WebSocket()
	view := ws.ExpectStateSync(defaultTimeout)

	assert.Equal(t, s.ID, view.SessionID)
	assert.Equal(t, domain.PhaseInitializing, view.Phase)
	assert.Empty(t, view.Pack)
	assert.Len(t, view.SeatPackSizes, domain.SeatCount)

	ws.SyncState()
	view = ws.ExpectStateSync(defaultTimeout)
	assert.Equal(t, domain.PhaseInitializing, view.Phase)
	ws.ExpectNoMessage(100 * time.Millisecond)
}

func TestDraftFlow_EnterBroadcastsState(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)

	ws := s.WebSocket()
	ws.ExpectStateSync(defaultTimeout)

	enter(t, s, "mh3")

	view := ws.ExpectStateSync(defaultTimeout)
	assert.Equal(t, domain.PhaseAwaitingHumanPick, view.Phase)
	assert.Equal(t, "mh3", view.SetCode)
	assert.Len(t, view.Pack, 3)

	ws.DrainMessages()
}

func TestDraftFlow_SelectAndConfirm(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)
	first := enter(t, s, "mh3")

	ws := s.WebSocket()
	view := ws.ExpectStateSync(defaultTimeout)
	require.Equal(t, first.Pack, view.Pack)

	t.Run("confirm without selection is rejected", func(t *testing.T) {
		ws.ConfirmPick("")
		ws.ExpectErrorWithCode("NO_CARD_SELECTED", defaultTimeout)
	})

	t.Run("selecting a card outside the pack is rejected", func(t *testing.T) {
		ws.SelectCard("not-a-card")
		ws.ExpectErrorWithCode("CARD_NOT_IN_PACK", defaultTimeout)
	})

	target := view.Pack[1].ID
	testutil.AssertCardInPack(t, view.Pack, target)
	ws.SelectCard(target)
	selected := ws.ExpectCardSelected(defaultTimeout)
	assert.Equal(t, target, selected.CardID)

	ws.ConfirmPick("")
	resolved := ws.ExpectRoundResolved(defaultTimeout)
	assert.Equal(t, 2, resolved.Pick)
	require.Len(t, resolved.Picks, 1)
	assert.Equal(t, target, resolved.Picks[0].ID)
	assert.Len(t, resolved.Pack, 2)
	assert.Empty(t, resolved.SelectedCardID)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1}, resolved.SeatPickCounts)
}

func TestDraftFlow_FullDraft(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.Upstream.SetPackSize(2)
	s := ts.NewSession(t)
	enter(t, s, "mh3")

	ws := s.WebSocket()
	view := ws.ExpectStateSync(defaultTimeout)

	for booster := 1; booster <= domain.BoosterCount; booster++ {
		require.Equal(t, booster, view.Booster)
		assert.Equal(t, domain.DirectionForBooster(booster), view.Direction)

		ws.ConfirmPick(view.Pack[0].ID)
		view = ws.ExpectRoundResolved(defaultTimeout)
		require.Len(t, view.Pack, 1)

		ws.ConfirmPick(view.Pack[0].ID)
		view = ws.ExpectRoundResolved(defaultTimeout)

		if booster < domain.BoosterCount {
			started := ws.ExpectBoosterStarted(defaultTimeout)
			assert.Equal(t, booster+1, started.Booster)
			assert.Equal(t, domain.DirectionForBooster(booster+1), started.Direction)
			view = &started.View
		}
	}

	completed := ws.ExpectDraftCompleted(defaultTimeout)
	assert.Len(t, completed.Picks, 6)
	assert.Len(t, strings.Split(completed.ArenaList, "\n"), 6)
	assert.Equal(t, domain.PhaseComplete, view.Phase)

	ws.ConfirmPick(view.Picks[0].ID)
	ws.ExpectErrorWithCode("DRAFT_COMPLETE", defaultTimeout)
}

func TestDraftFlow_RestartDraft(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)
	enter(t, s, "mh3")

	ws := s.WebSocket()
	view := ws.ExpectStateSync(defaultTimeout)
	ws.ConfirmPick(view.Pack[0].ID)
	ws.ExpectRoundResolved(defaultTimeout)

	ws.RestartDraft("blb")
	view = ws.ExpectStateSync(defaultTimeout)
	assert.Equal(t, "blb", view.SetCode)
	assert.Equal(t, 1, view.Pick)
	assert.Empty(t, view.Picks)
}

func TestDraftFlow_BoosterFailureAndContinue(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.Upstream.SetPackSize(1)
	s := ts.NewSession(t)
	enter(t, s, "mh3")

	ws := s.WebSocket()
	view := ws.ExpectStateSync(defaultTimeout)

	ts.Upstream.FailBooster(http.StatusServiceUnavailable)
	ws.ConfirmPick(view.Pack[0].ID)
	view = ws.ExpectRoundResolved(defaultTimeout)
	assert.Equal(t, domain.PhaseStartingBooster, view.Phase)
	require.NotNil(t, view.Error)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", view.Error.Code)
	ws.ExpectErrorWithCode("UPSTREAM_UNAVAILABLE", defaultTimeout)

	ws.SelectCard("anything")
	ws.ExpectErrorWithCode("BOOSTER_PENDING", defaultTimeout)

	ts.Upstream.FailBooster(0)
	ws.ContinueBooster()
	started := ws.ExpectBoosterStarted(defaultTimeout)
	assert.Equal(t, 2, started.Booster)
	assert.Equal(t, domain.PhaseAwaitingHumanPick, started.View.Phase)
	assert.Nil(t, started.View.Error)

	ws.ContinueBooster()
	ws.ExpectErrorWithCode("BOOSTER_IN_PROGRESS", defaultTimeout)
}

func TestDraftFlow_TwoTabsShareTheDraft(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)
	enter(t, s, "mh3")

	tab1 := s.WebSocket()
	tab2 := s.WebSocket()
	view := tab1.ExpectStateSync(defaultTimeout)
	tab2.ExpectStateSync(defaultTimeout)

	tab1.SelectCard(view.Pack[0].ID)
	assert.Equal(t, view.Pack[0].ID, tab2.ExpectCardSelected(defaultTimeout).CardID)

	tab2.ConfirmPick("")
	assert.Equal(t, 2, tab1.ExpectRoundResolved(defaultTimeout).Pick)
}

func TestDraftFlow_Predictions(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)
	s.DoJSON(http.MethodPut, "/settings", map[string]bool{"isAiPredictionEnabled": true}, http.StatusOK, nil)

	ws := s.WebSocket()
	ws.ExpectStateSync(defaultTimeout)

	ts.Upstream.SetPredictor(func(pack, deck []string) string {
		return pack[len(pack)-1]
	})
	view := enter(t, s, "mh3")

	preds := ws.ExpectPredictions(defaultTimeout)
	require.Len(t, preds.Predictions, 1)
	assert.Equal(t, view.Pack[len(view.Pack)-1].Name, preds.Predictions[0].CardName)
	assert.False(t, preds.Pending)

	t.Run("a new tab gets the current ranking", func(t *testing.T) {
		late := s.WebSocket()
		late.ExpectStateSync(defaultTimeout)
		got := late.ExpectPredictions(defaultTimeout)
		assert.Equal(t, preds.Fingerprint, got.Fingerprint)
	})

	t.Run("failures are reported", func(t *testing.T) {
		ts.Upstream.FailPredict(http.StatusInternalServerError)
		ws.ConfirmPick(view.Pack[0].ID)
		ws.ExpectRoundResolved(defaultTimeout)
		ws.ExpectErrorWithCode("PREDICTION_FAILED", defaultTimeout)
	})
}

func TestDraftFlow_UnknownMessage(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)

	ws := s.WebSocket()
	ws.ExpectStateSync(defaultTimeout)

	ws.SendRaw(`{"type":"DANCE","payload":{}}`)
	ws.ExpectErrorWithCode("UNKNOWN_MESSAGE", defaultTimeout)
}
