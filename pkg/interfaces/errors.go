package interfaces

import "errors"

// Common interface errors used across components.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCodeNotFound    = errors.New("classroom code not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUnauthorized    = errors.New("unauthorized access")
)