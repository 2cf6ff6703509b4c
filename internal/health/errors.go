package health

import "errors"

var (
	ErrAlreadyRunning = errors.New("health monitor is already running")
	ErrNotRunning     = errors.New("health monitor is not running")
)
