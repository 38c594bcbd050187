package repository

import "errors"

// Sentinel kinds for table errors.
var (
	ErrClosed       = errors.New("table store closed")
	ErrInvalidPath  = errors.New("invalid table store path")
	ErrEmptyEventID = errors.New("row has no event id")
)
