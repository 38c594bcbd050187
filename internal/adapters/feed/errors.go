package feed

import "errors"

// Error kinds returned by the feed client.
var (
	// ErrFeedUnavailable covers transport failures and non-2xx answers.
	// Retrying is safe.
	ErrFeedUnavailable = errors.New("feed unavailable")

	// ErrFeedDecode means the feed answered with a body that is not the
	// expected JSON document.
	ErrFeedDecode = errors.New("feed payload malformed")

	// ErrInvalidGameID rejects ids that cannot be placed in a feed URL.
	ErrInvalidGameID = errors.New("invalid game id")
)
