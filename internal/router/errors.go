package router

import "errors"

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrSessionInactive    = errors.New("session is not active")
	ErrMalformedFrame     = errors.New("malformed message frame")
)
