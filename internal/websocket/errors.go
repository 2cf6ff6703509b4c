package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout after 5 seconds")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Registry-related errors
var (
	ErrNilPeer        = errors.New("peer cannot be nil")
	ErrPeerNotFound   = errors.New("peer not found")
	ErrDuplicateHandle = errors.New("peer handle already registered")
)

// Handler-related errors
var (
	ErrInvalidParameters = errors.New("invalid connection parameters")
	ErrSessionValidation = errors.New("session validation failed")
	ErrConnectionSetup   = errors.New("connection setup failed")
)