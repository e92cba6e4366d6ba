package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied marks an action the caller's role may not perform.
	// Entry points treat it as a silent no-op.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidationSkip marks an action aborted locally before any network
	// call, e.g. an empty required field or an id missing from the snapshot.
	ErrValidationSkip = errors.New("validation skip")
)

// RemoteError is returned when the persistence service answers a command with
// a non-success status. Body holds the raw response text.
type RemoteError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *RemoteError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, body)
}

// IsRemote reports whether err wraps a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsSilent reports whether err is one of the locally handled outcomes that
// are never surfaced to the user.
func IsSilent(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrValidationSkip)
}
