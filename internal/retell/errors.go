package retell

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks a transport-level failure before any HTTP status was
// received.
var ErrUnavailable = errors.New("retell API unreachable")

// ProviderError is a non-success response from the Retell API.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("retell API error (%d): %s", e.StatusCode, e.Message)
}
