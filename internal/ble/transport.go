package ble

import (
	"context"
	"fmt"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// Transport is the pair of BLE primitives the session is built on.
// Implementations must be safe for use by one goroutine per device.
type Transport interface {
	Write(ctx context.Context, deviceID string, c Characteristic, data []byte) error
	Read(ctx context.Context, deviceID string, c Characteristic) ([]byte, error)
}

// TransportError is a failed write or read. It matches protocol.ErrTransport.
type TransportError struct {
	DeviceID string
	Op       string // "write" or "read"
	Char     Characteristic
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s on %s: %v", e.Op, e.Char.Char, e.DeviceID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	return target == protocol.ErrTransport
}
