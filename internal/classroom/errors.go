package classroom

import "errors"

var (
	ErrCodeExpired  = errors.New("classroom code has expired")
	ErrCodeNotFound = errors.New("classroom code not found")
)
