package rsvp

import "errors"

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrDuplicatePhone = errors.New("phone already submitted for this event")
	ErrRateLimited    = errors.New("too many submissions")
	// ErrTimeout means the write did not confirm in time. The submission
	// may still have landed; callers must present it as unknown outcome,
	// not failure.
	ErrTimeout = errors.New("submission not confirmed in time")
)

// ValidationError carries the field-level reason a submission was
// rejected, suitable for showing to the guest.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + e.Field + ": " + e.Reason
}
