package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidGameID    = errors.New("invalid game id")
	ErrAutoPollDisabled = errors.New("auto polling disabled")
	ErrLogsUnsupported  = errors.New("gateway does not expose logs")
	ErrSessionClosed    = errors.New("session closed")
)
