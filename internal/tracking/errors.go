package tracking

type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrInvalidStateTransition is a lifecycle call made in the wrong state.
	ErrInvalidStateTransition = constError("invalid state transition")

	ErrSessionNotFound = constError("session not found")

	// ErrSessionForbidden is a call on a session started by another user.
	ErrSessionForbidden = constError("session belongs to another user")
)
