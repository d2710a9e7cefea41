package upstream_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictionClient_Predict(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{name: "ranked predictions", status: 200, body: `{"predictions":[{"card_name":"Counterspell","probability":0.7},{"card_name":"Opt","probability":0.2}]}`, want: "Counterspell"},
		{name: "legacy prediction list", status: 200, body: `{"prediction":[{"card_name":"Opt","probability":0.9}]}`, want: "Opt"},
		{name: "single name", status: 200, body: `{"prediction":"Opt"}`, want: "Opt"},
		{name: "pick field", status: 200, body: `{"pick":"Counterspell"}`, want: "Counterspell"},
		{name: "empty", status: 200, body: `{"predictions":[]}`, wantErr: domain.ErrMalformedResponse},
		{name: "server error", status: 500, body: `boom`, wantErr: domain.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/predict", r.URL.Path)
				var req upstream.PredictRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, []string{"Counterspell", "Opt"}, req.Pack)
				assert.Equal(t, []string{}, req.Deck)
				assert.Equal(t, "mh3", req.Set)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := upstream.NewPredictionClient(srv.URL, time.Second).Predict(context.Background(), upstream.PredictRequest{
				Pack: []string{"Counterspell", "Opt"},
				Set:  "mh3",
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got[0].CardName)
		})
	}
}
