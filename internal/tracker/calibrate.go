package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitaminmoo/rtrk-tool/internal/ble"
	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// CalibrationPhase is the progress of a gate calibration.
type CalibrationPhase int

const (
	PhaseRequested CalibrationPhase = iota // calibrate command written
	PhasePolling                           // waiting for the completion marker
	PhaseRead                              // reading the new gate ADC
	PhaseDone
	PhaseFailed
)

func (p CalibrationPhase) String() string {
	switch p {
	case PhaseRequested:
		return "requested"
	case PhasePolling:
		return "polling"
	case PhaseRead:
		return "read"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ErrCalibrationTimeout is returned when the gate does not report completion
// within the calibration deadline.
var ErrCalibrationTimeout = errors.New("calibration did not complete")

// CalibrateGate recalibrates the gate threshold. The calibrate command is
// written, the reply characteristic is polled until the gate reports
// completion, and the new gate ADC is read and returned. The device is held
// for the whole sequence.
func (c *Client) CalibrateGate(ctx context.Context, deviceID string) (int, error) {
	if c.calibrationDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.calibrationDeadline)
		defer cancel()
	}

	var adc int
	err := c.session.Sequence(ctx, deviceID, func(conn *ble.Conn) error {
		c.phase(deviceID, PhaseRequested)
		if err := c.writeOn(ctx, conn, query(protocol.KindCalibrateGate)); err != nil {
			return err
		}

		c.phase(deviceID, PhasePolling)
		if err := conn.PollUntil(ctx, c.calibrationInterval, protocol.CalibrationComplete); err != nil {
			return opError(deviceID, protocol.KindCalibrateGate, c.timeoutError(err))
		}

		c.phase(deviceID, PhaseRead)
		cmd := query(protocol.KindGetGateADC)
		raw, err := c.exchangeOn(ctx, conn, cmd)
		if err != nil {
			return err
		}
		adc, err = protocol.DecodeNumber(cmd.Kind(), raw)
		if err != nil {
			return opError(deviceID, cmd.Kind(), err)
		}
		return nil
	})
	if err != nil {
		var oe *OpError
		if !errors.As(err, &oe) {
			// the deadline can expire while queued behind another operation
			err = opError(deviceID, protocol.KindCalibrateGate, c.timeoutError(err))
		}
		c.phase(deviceID, PhaseFailed)
		c.logger.Debug("calibration failed", "device", deviceID, "error", err)
		return 0, err
	}

	c.phase(deviceID, PhaseDone)
	c.logger.Debug("calibration complete", "device", deviceID, "gateADC", adc)
	return adc, nil
}

func (c *Client) timeoutError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && c.calibrationDeadline > 0 {
		return fmt.Errorf("%w after %s: %w", ErrCalibrationTimeout, c.calibrationDeadline, err)
	}
	return err
}

func (c *Client) phase(deviceID string, p CalibrationPhase) {
	if c.onPhase != nil {
		c.onPhase(deviceID, p)
	}
}
