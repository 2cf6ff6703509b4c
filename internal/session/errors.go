package session

import "errors"

var (
	ErrSessionAlreadyEnded = errors.New("session is already ended")
	ErrNoActiveSession     = errors.New("teacher has no active session")
)
