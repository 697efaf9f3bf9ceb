package ledger

import "errors"

var (
	// ErrInvalidInput is returned for a bad action, item code or quantity.
	// Nothing is read from or written to the store in that case.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable wraps connectivity and transaction failures of the store.
	// The core does not retry; the request fails as a whole.
	ErrStoreUnavailable = errors.New("store unavailable")
)
