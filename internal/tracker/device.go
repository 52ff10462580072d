package tracker

import (
	"context"
	"strings"

	"github.com/vitaminmoo/rtrk-tool/internal/ble"
	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// ReadBatteryLevel returns the battery charge in percent.
func (c *Client) ReadBatteryLevel(ctx context.Context, deviceID string) (int, error) {
	cmd := query(protocol.KindGetBatteryLevel)
	raw, err := c.exchange(ctx, deviceID, cmd)
	if err != nil {
		return 0, err
	}
	pct, err := protocol.DecodePercent(cmd.Kind(), raw)
	if err != nil {
		return 0, opError(deviceID, cmd.Kind(), err)
	}
	return pct, nil
}

// ReadFirmwareVersion reads the firmware revision from the device
// information service. No command is written.
func (c *Client) ReadFirmwareVersion(ctx context.Context, deviceID string) (string, error) {
	raw, err := c.session.Read(ctx, deviceID, ble.Firmware)
	if err != nil {
		return "", &OpError{DeviceID: deviceID, Command: "readFirmwareVersion", Err: err}
	}
	return strings.TrimSpace(protocol.Text(raw)), nil
}

// ReadActiveMode returns the name of the mode the gate is in.
func (c *Client) ReadActiveMode(ctx context.Context, deviceID string) (string, error) {
	cmd := query(protocol.KindGetActiveMode)
	raw, err := c.exchange(ctx, deviceID, cmd)
	if err != nil {
		return "", err
	}
	mode, err := c.vocab.DecodeMode(raw)
	if err != nil {
		return "", opError(deviceID, cmd.Kind(), err)
	}
	return mode, nil
}

// ReadMinLapTime returns the minimum lap time in seconds.
func (c *Client) ReadMinLapTime(ctx context.Context, deviceID string) (int, error) {
	return c.number(ctx, deviceID, query(protocol.KindGetMinLapTime))
}

// WriteMinLapTime sets the minimum lap time and returns the value the gate
// confirmed.
func (c *Client) WriteMinLapTime(ctx context.Context, deviceID string, seconds int) (int, error) {
	return c.number(ctx, deviceID, protocol.SetMinLapTime{MinLapTime: seconds})
}

// ReadMaxRounds returns the number of laps per heat.
func (c *Client) ReadMaxRounds(ctx context.Context, deviceID string) (int, error) {
	return c.number(ctx, deviceID, query(protocol.KindGetMaxRounds))
}

// WriteMaxRounds sets the number of laps per heat.
func (c *Client) WriteMaxRounds(ctx context.Context, deviceID string, rounds int) (int, error) {
	return c.number(ctx, deviceID, protocol.SetMaxRounds{MaxRounds: rounds})
}

// ReadGateADC returns the gate detection threshold.
func (c *Client) ReadGateADC(ctx context.Context, deviceID string) (int, error) {
	return c.number(ctx, deviceID, query(protocol.KindGetGateADC))
}

// WriteGateADC sets the gate detection threshold.
func (c *Client) WriteGateADC(ctx context.Context, deviceID string, adc int) (int, error) {
	return c.number(ctx, deviceID, protocol.SetGateADC{GateADC: adc})
}

// ReadRSSIADC returns the current signal level seen by the gate.
func (c *Client) ReadRSSIADC(ctx context.Context, deviceID string) (int, error) {
	return c.number(ctx, deviceID, query(protocol.KindGetRSSIADC))
}

// ReadTotalRounds returns the laps completed by a racer in the current heat.
func (c *Client) ReadTotalRounds(ctx context.Context, deviceID string, racer int) (int, error) {
	return c.number(ctx, deviceID, protocol.GetTotalRounds{Racer: racer})
}

// ReadLapTime returns the recorded time of one lap as reported by the gate.
func (c *Client) ReadLapTime(ctx context.Context, deviceID string, racer, lap int) (string, error) {
	cmd := protocol.GetLapTime{Racer: racer, Lap: lap}
	raw, err := c.exchange(ctx, deviceID, cmd)
	if err != nil {
		return "", err
	}
	t, err := protocol.DecodeLapTime(raw)
	if err != nil {
		return "", opError(deviceID, cmd.Kind(), err)
	}
	return t, nil
}

// SendRaw writes text verbatim and returns the raw reply. For debugging.
func (c *Client) SendRaw(ctx context.Context, deviceID, text string) ([]byte, error) {
	return c.exchange(ctx, deviceID, protocol.Raw{Text: text})
}
