package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/testutil"
	"github.com/dom/lotus-draft/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_DefaultsAndUpdate(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)

	var settings domain.Settings
	s.DoJSON(http.MethodGet, "/settings", nil, http.StatusOK, &settings)
	assert.Equal(t, domain.DefaultSettings(), settings)

	t.Run("partial updates keep other fields", func(t *testing.T) {
		var saved domain.Settings
		s.DoJSON(http.MethodPut, "/settings", map[string]bool{"isHoverPreviewEnabled": false}, http.StatusOK, &saved)
		assert.False(t, saved.HoverPreviewEnabled)
		assert.Equal(t, domain.DefaultCardWidth, saved.CardWidth)
	})

	t.Run("card width is clamped", func(t *testing.T) {
		var saved domain.Settings
		s.DoJSON(http.MethodPut, "/settings", map[string]int{"cardWidth": 100000}, http.StatusOK, &saved)
		assert.Equal(t, domain.MaxCardWidth, saved.CardWidth)

		var loaded domain.Settings
		s.DoJSON(http.MethodGet, "/settings", nil, http.StatusOK, &loaded)
		assert.Equal(t, saved, loaded)
	})
}

func TestSettings_PredictionsFollowToggle(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)

	var view websocket.DraftView
	s.DoJSON(http.MethodPost, "/draft/enter", nil, http.StatusOK, &view)

	resp := s.Do(http.MethodGet, "/draft/predictions", nil)
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp, http.StatusConflict)

	s.DoJSON(http.MethodPut, "/settings", map[string]bool{"isAiPredictionEnabled": true}, http.StatusOK, nil)

	require.Eventually(t, func() bool {
		var preds websocket.PredictionsPayload
		s.DoJSON(http.MethodGet, "/draft/predictions", nil, http.StatusOK, &preds)
		return !preds.Pending && len(preds.Predictions) == 1 && preds.Predictions[0].CardName == view.Pack[0].Name
	}, 2*time.Second, 20*time.Millisecond)
}
