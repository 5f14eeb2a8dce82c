package protocol

import "errors"

var (
	// ErrMalformedFrame covers wrong header sizes, oversized payloads and
	// bodies that do not match their code's layout.
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	ErrUnknownCode    = errors.New("protocol: unknown message code")
	ErrShortFrame     = errors.New("protocol: short frame")
	// ErrMissingBody is returned when a code requires a body and none was sent.
	ErrMissingBody = errors.New("protocol: missing body")
)
