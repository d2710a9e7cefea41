package service

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/upstream"
)

// PackFingerprint identifies a pack by its sorted card names.
func PackFingerprint(pack []domain.Card) string {
	names := domain.CardNames(pack)
	slices.Sort(names)
	return strings.Join(names, ",")
}

// PredictionOverlay tracks the advisory ranking shown over the human's pack.
// Only the response for the most recent fingerprint is ever accepted.
type PredictionOverlay struct {
	mu          sync.Mutex
	fingerprint string
	cancel      context.CancelFunc
	predictions []upstream.Prediction
}

func NewPredictionOverlay() *PredictionOverlay {
	return &PredictionOverlay{}
}

// Begin starts tracking a new fingerprint and cancels any request in flight
// for the previous one. It returns false when fp is already current.
func (o *PredictionOverlay) Begin(parent context.Context, fp string) (context.Context, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if fp == o.fingerprint && (o.cancel != nil || o.predictions != nil) {
		return nil, false
	}
	if o.cancel != nil {
		o.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	o.fingerprint = fp
	o.cancel = cancel
	o.predictions = nil
	return ctx, true
}

// Accept stores predictions if fp is still current. Stale responses are
// dropped and false is returned.
func (o *PredictionOverlay) Accept(fp string, predictions []upstream.Prediction) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if fp != o.fingerprint {
		return false
	}
	o.finish()
	o.predictions = predictions
	return true
}

// Fail ends the request for fp. It reports whether fp was still current.
func (o *PredictionOverlay) Fail(fp string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if fp != o.fingerprint {
		return false
	}
	o.finish()
	o.fingerprint = ""
	return true
}

func (o *PredictionOverlay) Current() (string, []upstream.Prediction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fingerprint, o.predictions
}

// Reset cancels any request and forgets the current ranking.
func (o *PredictionOverlay) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finish()
	o.fingerprint = ""
	o.predictions = nil
}

func (o *PredictionOverlay) finish() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}
