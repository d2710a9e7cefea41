package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
)

// FakeUpstream serves the booster, prediction and card database APIs from
// one httptest server.
type FakeUpstream struct {
	Server *httptest.Server

	mu             sync.Mutex
	packSize       int
	boosterStatus  int
	predictStatus  int
	scryfallStatus int
	predictFn      func(pack, deck []string) string

	BoosterCalls  atomic.Int64
	PredictCalls  atomic.Int64
	ScryfallCalls atomic.Int64
}

// TinyPNG is the image body served for every card.
var TinyPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func NewFakeUpstream(t *testing.T) *FakeUpstream {
	t.Helper()

	f := &FakeUpstream{packSize: 3}

	r := chi.NewRouter()
	r.Get("/booster", f.handleBooster)
	r.Get("/sets", f.handleSets)
	r.Get("/sets/{code}/icon", f.handleIcon)
	r.Post("/predict", f.handlePredict)
	r.Get("/cards/named", f.handleCard)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeUpstream) URL() string {
	return f.Server.URL
}

func (f *FakeUpstream) SetPackSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packSize = n
}

// FailBooster makes /booster answer with status; 0 restores normal replies.
func (f *FakeUpstream) FailBooster(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boosterStatus = status
}

func (f *FakeUpstream) FailPredict(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.predictStatus = status
}

func (f *FakeUpstream) FailScryfall(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scryfallStatus = status
}

// SetPredictor overrides the default choice, the first card of the pack.
func (f *FakeUpstream) SetPredictor(fn func(pack, deck []string) string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.predictFn = fn
}

func (f *FakeUpstream) status(v *int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *v
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (f *FakeUpstream) handleBooster(w http.ResponseWriter, r *http.Request) {
	n := f.BoosterCalls.Add(1)
	if status := f.status(&f.boosterStatus); status != 0 {
		http.Error(w, "booster unavailable", status)
		return
	}

	set := r.URL.Query().Get("set")
	f.mu.Lock()
	size := f.packSize
	f.mu.Unlock()

	pack := make([]string, size)
	for i := range pack {
		pack[i] = fmt.Sprintf("%s Card %d-%d", strings.ToUpper(set), n, i)
	}
	writeJSON(w, map[string]interface{}{"pack": pack, "set": set, "count": size})
}

func (f *FakeUpstream) handleSets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"sets": []map[string]interface{}{
			{"code": "mh3", "name": "Modern Horizons 3", "has_model": true, "has_icon": true},
			{"code": "blb", "name": "Bloomburrow", "has_model": false, "has_icon": true},
		},
		"count": 2,
	})
}

func (f *FakeUpstream) handleIcon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "missing" {
		http.Error(w, "no icon", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg"><title>%s</title></svg>`, code)
}

func (f *FakeUpstream) handlePredict(w http.ResponseWriter, r *http.Request) {
	f.PredictCalls.Add(1)
	if status := f.status(&f.predictStatus); status != 0 {
		http.Error(w, "model unavailable", status)
		return
	}

	var req struct {
		Pack []string `json:"pack"`
		Deck []string `json:"deck"`
		Set  string   `json:"set"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Pack) == 0 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	fn := f.predictFn
	f.mu.Unlock()

	choice := req.Pack[0]
	if fn != nil {
		choice = fn(req.Pack, req.Deck)
	}
	writeJSON(w, map[string]interface{}{
		"predictions": []map[string]interface{}{{"card_name": choice, "probability": 0.9}},
	})
}

func (f *FakeUpstream) handleCard(w http.ResponseWriter, r *http.Request) {
	f.ScryfallCalls.Add(1)
	if status := f.status(&f.scryfallStatus); status != 0 {
		writeJSONStatus(w, status, map[string]string{"object": "error"})
		return
	}

	name := r.URL.Query().Get("exact")
	if name == "" || strings.HasPrefix(name, "Unknown") {
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"object": "error", "code": "not_found"})
		return
	}

	if r.URL.Query().Get("format") == "image" {
		w.Header().Set("Content-Type", "image/png")
		w.Write(TinyPNG)
		return
	}

	writeJSON(w, map[string]interface{}{
		"object":           "card",
		"name":             name,
		"cmc":              2.0,
		"set":              "mh3",
		"collector_number": "7",
		"image_uris": map[string]string{
			"png": f.Server.URL + "/images/" + strings.ReplaceAll(name, " ", "_") + ".png",
		},
	})
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
