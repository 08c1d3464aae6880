package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when a request carries no usable identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotFound is the parent of every missing-document error.
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound indicates the user document does not exist.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrChallengeNotFound indicates no challenge exists for the requested date.
	ErrChallengeNotFound = fmt.Errorf("challenge %w", ErrNotFound)
	// ErrAlreadySubmitted is returned on a second attempt for the same user and challenge date.
	ErrAlreadySubmitted = errors.New("already submitted")
	// ErrStoreUnavailable wraps failures of the document store.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrInvalidArgument indicates malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownNotification indicates a notification type without a template.
	ErrUnknownNotification = errors.New("unknown notification type")
	// ErrWrongChallengeKind is returned when a coding submission targets a challenge without test cases.
	ErrWrongChallengeKind = errors.New("challenge does not accept this submission kind")
	// ErrExecutorUnavailable wraps failures of the code execution service.
	ErrExecutorUnavailable = errors.New("code execution unavailable")
)
