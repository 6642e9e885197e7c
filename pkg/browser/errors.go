package browser

import "errors"

var (
	// ErrProfileInUse is returned by Launch when another process holds the
	// profile directory.
	ErrProfileInUse = errors.New("browser profile is in use by another process")

	// ErrInitializationFailed is returned by Launch for any other startup failure.
	ErrInitializationFailed = errors.New("browser initialization failed")

	// ErrNotRunning is returned by every session operation when no session is live.
	ErrNotRunning = errors.New("browser session is not running")
)
