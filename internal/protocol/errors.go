package protocol

import "errors"

var (
	ErrUnknownCommand    = errors.New("unknown command")
	ErrMalformedResponse = errors.New("malformed response")
	ErrUnknownMode       = errors.New("unknown mode")
	ErrTransport         = errors.New("transport error")
	ErrNonASCII          = errors.New("command contains non-ASCII characters")
	ErrDeviceBusy        = errors.New("device busy")
	ErrInvalidRacer      = errors.New("invalid racer slot (valid range: 1-8)")
)
