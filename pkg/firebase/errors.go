package firebase

import "errors"

var (
	ErrNotConfigured   = errors.New("firebase is not configured")
	ErrInitFailed      = errors.New("failed to initialize firebase app")
	ErrClientFailed    = errors.New("failed to create firebase client")
	ErrCredentialsFile = errors.New("firebase credentials file is not readable")
)
