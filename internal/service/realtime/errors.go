package realtime

import "errors"

var (
	// ErrNotRunning is returned by operations that require a started cache
	ErrNotRunning = errors.New("realtime cache is not running")
)
