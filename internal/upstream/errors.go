package upstream

import (
	"fmt"
	"io"
	"net/http"

	"github.com/dom/lotus-draft/internal/domain"
)

const (
	ServiceScryfall  = "scryfall"
	ServiceBooster   = "booster"
	ServicePredictor = "predictor"
)

func transportError(service string, err error) error {
	return &domain.UpstreamError{
		Service: service,
		Err:     fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err),
	}
}

func malformed(service string, format string, args ...any) error {
	return &domain.UpstreamError{
		Service: service,
		Err:     fmt.Errorf("%w: %s", domain.ErrMalformedResponse, fmt.Sprintf(format, args...)),
	}
}

// checkStatus drains and closes non-2xx responses and turns them into errors.
func checkStatus(service string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return domain.NewStatusError(service, resp.StatusCode)
}

// Binary is a passthrough payload such as an image.
type Binary struct {
	Body        []byte
	ContentType string
}
