package store

import "errors"

var (
	ErrStoreClosed     = errors.New("store is closed")
	ErrWriteTimeout    = errors.New("write operation timed out")
)
