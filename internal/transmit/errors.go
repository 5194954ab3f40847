package transmit

import "errors"

var (
	// ErrTransport is returned when a payload could not be handed to the transport.
	ErrTransport = errors.New("transmit: transport error")

	// ErrUnknownEncoding is returned for an unrecognised framing name.
	ErrUnknownEncoding = errors.New("transmit: unknown encoding")
)
