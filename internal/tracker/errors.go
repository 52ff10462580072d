package tracker

import (
	"errors"
	"fmt"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// OpError is a failed device operation. It names the device and the command
// key so the caller can log it and decide whether to retry.
type OpError struct {
	DeviceID string
	Command  string
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.DeviceID, e.Command, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(deviceID string, k protocol.Kind, err error) error {
	return &OpError{DeviceID: deviceID, Command: k.Key(), Err: err}
}

// sequenceError attributes a failed device sequence to command k, unless a
// step inside the sequence already did. Lock failures (busy device, context
// done while queued) reach the caller this way.
func sequenceError(deviceID string, k protocol.Kind, err error) error {
	var oe *OpError
	if err == nil || errors.As(err, &oe) {
		return err
	}
	return opError(deviceID, k, err)
}
