package domain

import "errors"

var (
	// ErrUnauthorized means the handshake credential was missing, malformed,
	// expired or carried a bad signature.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means a non-host attempted a host-only action.
	ErrForbidden = errors.New("forbidden")

	// ErrMeetingNotFound means the referenced meeting id does not resolve.
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrMeetingEnded means the meeting has already been terminated.
	ErrMeetingEnded = errors.New("meeting already ended")

	// ErrUserNotFound means the referenced user id does not resolve.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidPayload means an inbound event carried a malformed payload.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrStoreUnavailable means a meeting-record store call failed or timed out.
	ErrStoreUnavailable = errors.New("store unavailable")
)
