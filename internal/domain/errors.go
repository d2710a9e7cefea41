package domain

import (
	"errors"
	"fmt"
)

// Upstream and storage errors
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrNotFound            = errors.New("not found")
	ErrMalformedResponse   = errors.New("malformed response")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

// Draft errors
var (
	ErrInvalidPacks      = errors.New("a draft needs 8 non-empty packs of equal size")
	ErrCardNotInPack     = errors.New("card is not in the current pack")
	ErrCardNotPicked     = errors.New("card is not in the draft pool")
	ErrDraftComplete     = errors.New("draft is complete")
	ErrBoosterPending    = errors.New("next booster has not been dealt")
	ErrBoosterInProgress = errors.New("current booster still has cards")
	ErrNoActiveDraft     = errors.New("no active draft")
)

var ErrDecklistTooLarge = errors.New("deck list has too many cards")

// UpstreamError describes a failed call to one of the external services.
// StatusCode is zero when no response was received.
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewStatusError maps an upstream HTTP status onto the error taxonomy.
func NewStatusError(service string, status int) *UpstreamError {
	var err error
	switch {
	case status == 429:
		err = ErrRateLimited
	case status == 404:
		err = ErrNotFound
	default:
		err = ErrUpstreamUnavailable
	}
	return &UpstreamError{Service: service, StatusCode: status, Err: err}
}
