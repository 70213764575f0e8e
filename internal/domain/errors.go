package domain

import "errors"

var (
	// ErrMetadataUnavailable means a fee, constraint or balance is not (yet)
	// known for an exchange/pair. Callers skip the venue and continue.
	ErrMetadataUnavailable = errors.New("metadata unavailable")

	ErrBusClosed       = errors.New("bus closed")
	ErrExchangeUnknown = errors.New("unknown exchange")
	ErrOrderRejected   = errors.New("order rejected")
	ErrWSDisconnect    = errors.New("websocket disconnected")
)
