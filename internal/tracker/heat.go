package tracker

import (
	"context"

	"github.com/vitaminmoo/rtrk-tool/internal/ble"
	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// StartHeat arms the video receiver and starts a heat in the given style.
// It reports whether the gate answered READY. The start command is never
// sent if arming the receiver fails.
func (c *Client) StartHeat(ctx context.Context, deviceID string, style protocol.RaceStyle, heatID string) (bool, error) {
	var ready bool
	err := c.session.Sequence(ctx, deviceID, func(conn *ble.Conn) error {
		if err := c.writeOn(ctx, conn, query(protocol.KindActivateVrx)); err != nil {
			return err
		}
		raw, err := c.exchangeOn(ctx, conn, query(style.StartKind()))
		if err != nil {
			return err
		}
		ready = protocol.DecodeReady(raw)
		return nil
	})
	if err != nil {
		return false, sequenceError(deviceID, style.StartKind(), err)
	}
	c.logger.Debug("heat start", "device", deviceID, "heat", fmtHeat(heatID), "style", style, "ready", ready)
	return ready, nil
}

// StopHeat stops the running heat and reports whether the gate went idle.
func (c *Client) StopHeat(ctx context.Context, deviceID string) (bool, error) {
	raw, err := c.exchange(ctx, deviceID, query(protocol.KindStopRace))
	if err != nil {
		return false, err
	}
	return protocol.DecodeIdle(raw), nil
}

// ReadRaceUpdate reads the latest lap update. It returns nil when the gate
// has nothing to report. The caller owns the polling cadence.
func (c *Client) ReadRaceUpdate(ctx context.Context, deviceID, heatID string) (*protocol.RaceUpdate, error) {
	raw, err := c.session.Read(ctx, deviceID, ble.CommandRead)
	if err != nil {
		return nil, opError(deviceID, protocol.KindGetRaceUpdate, err)
	}
	u, err := protocol.ParseRaceUpdate(protocol.Text(raw))
	if err != nil {
		return nil, opError(deviceID, protocol.KindGetRaceUpdate, err)
	}
	if u != nil {
		u.HeatID = heatID
	}
	return u, nil
}
