package remote

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable indicates that the backend could not be reached or
// the session is invalid. Fatal to the call that triggered the validation.
var ErrBackendUnavailable = errors.New("backend unavailable")

// NetworkError describes a failed backend operation. Transient failures
// (timeouts, connection loss, overload) are eligible for retry; permanent
// ones (auth, malformed payload) are surfaced immediately and never retried.
type NetworkError struct {
	Op        string // "fetch_all", "upsert", "ping"
	Status    int    // HTTP status, 0 for transport-level failures
	Transient bool
	Err       error
}

func (e *NetworkError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s failed (%s, status %d): %v", e.Op, kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Op, kind, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a network error worth retrying.
func IsTransient(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Transient
}
