package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/pkg/clock"
	"github.com/dom/lotus-draft/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boltJSON = `{
	"name": "Lightning Bolt",
	"cmc": 1.0,
	"set": "m10",
	"collector_number": "146",
	"image_uris": {"png": "https://cards.example/bolt.png", "normal": "https://cards.example/bolt.jpg"}
}`

func newScryfall(t *testing.T, srv *httptest.Server, fake *clock.Fake) *upstream.ScryfallClient {
	t.Helper()
	var clk clock.Clock
	if fake != nil {
		clk = fake
	}
	c, err := upstream.NewScryfallClient(upstream.ScryfallConfig{
		BaseURL:      srv.URL,
		MinInterval:  time.Millisecond,
		CacheTTL:     24 * time.Hour,
		MaxAttempts:  3,
		RetryBackoff: 20 * time.Millisecond,
		Timeout:      5 * time.Second,
		Clock:        clk,
	})
	require.NoError(t, err)
	return c
}

func TestScryfallClient_LookupCard_Caches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/cards/named", r.URL.Path)
		assert.Equal(t, "Lightning Bolt", r.URL.Query().Get("exact"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(boltJSON))
	}))
	defer srv.Close()

	fake := clock.NewFake(time.Now())
	c := newScryfall(t, srv, fake)
	ctx := context.Background()

	data, err := c.LookupCard(ctx, "Lightning Bolt", "m10")
	require.NoError(t, err)
	assert.JSONEq(t, boltJSON, string(data))

	_, err = c.LookupCard(ctx, "Lightning Bolt", "m10")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second lookup should hit the cache")

	_, err = c.LookupCard(ctx, "Lightning Bolt", "2xm")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "cache is keyed by name and set")

	fake.Advance(24 * time.Hour)
	_, err = c.LookupCard(ctx, "Lightning Bolt", "m10")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load(), "expired entry is refetched")
}

func TestScryfallClient_LookupCard_SharedFetchSurvivesCancel(t *testing.T) {
	var calls atomic.Int32
	arrived := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(arrived)
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(boltJSON))
	}))
	defer srv.Close()

	c := newScryfall(t, srv, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.LookupCard(firstCtx, "Lightning Bolt", "m10")
		firstErr <- err
	}()
	<-arrived

	type result struct {
		data []byte
		err  error
	}
	second := make(chan result, 1)
	go func() {
		data, err := c.LookupCard(context.Background(), "Lightning Bolt", "m10")
		second <- result{data, err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.JSONEq(t, boltJSON, string(res.data))
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestScryfallClient_Card(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(boltJSON))
	}))
	defer srv.Close()

	card, err := newScryfall(t, srv, nil).Card(context.Background(), "Lightning Bolt", "m10")
	require.NoError(t, err)
	assert.Equal(t, 1.0, card.CMC)
	assert.Equal(t, "146", card.CollectorNumber)
	assert.Equal(t, "https://cards.example/bolt.png", card.ImageURL("png"))
}

func TestScryfallCard_ImageURL(t *testing.T) {
	dfc := &upstream.ScryfallCard{
		CardFaces: []upstream.ScryfallFace{
			{Name: "Front", ImageURIs: map[string]string{"png": "front.png"}},
			{Name: "Back", ImageURIs: map[string]string{"png": "back.png"}},
		},
	}
	assert.Equal(t, "front.png", dfc.ImageURL("png"))
	assert.Equal(t, "", dfc.ImageURL("large"))
	assert.Equal(t, "", (&upstream.ScryfallCard{}).ImageURL("png"))
}

func TestScryfallClient_RetriesOn429(t *testing.T) {
	tests := []struct {
		name       string
		failures   int32
		retryAfter string
		wantErr    error
		wantCalls  int32
		minElapsed time.Duration
	}{
		{name: "succeeds after retry-after", failures: 2, retryAfter: "0", wantCalls: 3},
		{name: "fixed backoff without header", failures: 1, wantCalls: 2, minElapsed: 20 * time.Millisecond},
		{name: "gives up after three attempts", failures: 10, retryAfter: "0", wantErr: domain.ErrRateLimited, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				if n <= tt.failures {
					if tt.retryAfter != "" {
						w.Header().Set("Retry-After", tt.retryAfter)
					}
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				w.Write([]byte(boltJSON))
			}))
			defer srv.Close()

			start := time.Now()
			_, err := newScryfall(t, srv, nil).LookupCard(context.Background(), "Lightning Bolt", "m10")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				var upErr *domain.UpstreamError
				require.True(t, errors.As(err, &upErr))
				assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
			assert.GreaterOrEqual(t, time.Since(start), tt.minElapsed)
		})
	}
}

func TestScryfallClient_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newScryfall(t, srv, nil).LookupCard(context.Background(), "Not A Card", "mh3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScryfallClient_CardImage(t *testing.T) {
	var imageHits atomic.Int32
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		imageHits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("PNGDATA"))
	}))
	defer images.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image", r.URL.Query().Get("format"))
		assert.Equal(t, "png", r.URL.Query().Get("version"))
		http.Redirect(w, r, images.URL+"/bolt.png", http.StatusFound)
	}))
	defer api.Close()

	img, err := newScryfall(t, api, nil).CardImage(context.Background(), "Lightning Bolt", "png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, []byte("PNGDATA"), img.Body)
	assert.Equal(t, int32(1), imageHits.Load())
}

func TestNewScryfallClient_InvalidURL(t *testing.T) {
	_, err := upstream.NewScryfallClient(upstream.ScryfallConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}
