package appointment

import (
	"errors"
	"fmt"
)

// ValidationError reports a locally detected input problem. It is raised
// before any remote call and is always recoverable by correcting input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports an action that is not legal from the
// appointment's current status.
type InvalidTransitionError struct {
	Current Status
	Action  Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an appointment in status %q", e.Action, e.Current)
}

// FinalizedError reports an edit attempted on an appointment whose status
// is terminal.
type FinalizedError struct {
	ID     string
	Status Status
}

func (e *FinalizedError) Error() string {
	return fmt.Sprintf("appointment %s is finalized (status %q) and cannot be modified", e.ID, e.Status)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}

func IsFinalized(err error) bool {
	var fe *FinalizedError
	return errors.As(err, &fe)
}
