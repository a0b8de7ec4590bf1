package backend

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the remote API has no record for the
// requested appointment id.
var ErrNotFound = errors.New("appointment not found")

// ConflictError is a remote-reported rejection: an overlapping slot or a
// concurrent modification. The message is surfaced to the caller verbatim;
// no automatic resolution is attempted.
type ConflictError struct {
	Message     string   `json:"error"`
	ConflictIDs []string `json:"conflict_ids,omitempty"`
}

func (e *ConflictError) Error() string {
	if len(e.ConflictIDs) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (conflicts: %s)", e.Message, strings.Join(e.ConflictIDs, ", "))
}

// TransportError covers network, timeout, and server failures. Local state
// is left unchanged on a TransportError, so the caller may safely retry the
// same operation; this client never retries on its own, since the original
// request may already have applied remotely.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
