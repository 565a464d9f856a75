package widget

import (
	"errors"
	"fmt"
)

// ErrMalformedBody is returned when the endpoint answers 2xx with a body
// that is not JSON.
var ErrMalformedBody = errors.New("widget: response body is not valid JSON")

// TransportError describes a failed exchange with the endpoint: the request
// could not be completed, or it completed with a non-2xx status.
type TransportError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("widget: status %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("widget: endpoint returned status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("widget: request failed: %v", e.Err)
	default:
		return "widget: request failed"
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
