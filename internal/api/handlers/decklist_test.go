package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/dom/lotus-draft/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecklist_Parse(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)

	list := "2 Ornithopter (MH3) 12\nnot a card line\n1 Unknown Relic (MH3) 3"

	var body struct {
		Cards []struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			CMC             int    `json:"cmc"`
			SetCode         string `json:"setCode"`
			CollectorNumber string `json:"collectorNumber"`
			Enriched        bool   `json:"enriched"`
		} `json:"cards"`
	}
	s.DoJSON(http.MethodPost, "/decklist/parse", map[string]string{"list": list}, http.StatusOK, &body)

	require.Len(t, body.Cards, 3)
	assert.Equal(t, "Ornithopter-MH3-12-0", body.Cards[0].ID)
	assert.Equal(t, "Ornithopter-MH3-12-1", body.Cards[1].ID)
	assert.Equal(t, "12", body.Cards[0].CollectorNumber)
	assert.Equal(t, 2, body.Cards[0].CMC)
	assert.True(t, body.Cards[0].Enriched)

	// Lookup failures fall back to a placeholder.
	assert.Equal(t, "Unknown Relic", body.Cards[2].Name)
	assert.Equal(t, 0, body.Cards[2].CMC)
	assert.False(t, body.Cards[2].Enriched)
}

func TestDecklist_EmptyList(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)

	var body struct {
		Cards []interface{} `json:"cards"`
	}
	s.DoJSON(http.MethodPost, "/decklist/parse", map[string]string{"list": ""}, http.StatusOK, &body)
	assert.NotNil(t, body.Cards)
	assert.Empty(t, body.Cards)
}

func TestDecklist_RejectsOversizedLists(t *testing.T) {
	ts := testutil.NewTestServer(t)
	s := ts.NewSession(t)

	t.Run("copies per line", func(t *testing.T) {
		resp := s.Do(http.MethodPost, "/decklist/parse", map[string]string{"list": "3000000 Island (M21) 1"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("total cards", func(t *testing.T) {
		list := strings.Repeat("250 Island (M21) 1\n", 5)
		resp := s.Do(http.MethodPost, "/decklist/parse", map[string]string{"list": list})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
