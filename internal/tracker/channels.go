package tracker

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vitaminmoo/rtrk-tool/internal/ble"
	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// ReadRacerChannel returns the channel of one racer slot in user notation.
// An empty slot reads as protocol.Unassigned.
func (c *Client) ReadRacerChannel(ctx context.Context, deviceID string, racer int) (string, error) {
	var ch string
	err := c.session.Sequence(ctx, deviceID, func(conn *ble.Conn) error {
		var err error
		ch, err = c.readChannelOn(ctx, conn, racer)
		return err
	})
	return ch, sequenceError(deviceID, protocol.KindGetRacerChannel, err)
}

// WriteRacerChannel assigns a channel to one racer slot and returns the
// channel the gate confirmed.
func (c *Client) WriteRacerChannel(ctx context.Context, deviceID string, racer int, channel string) (string, error) {
	var ch string
	err := c.session.Sequence(ctx, deviceID, func(conn *ble.Conn) error {
		var err error
		ch, err = c.writeChannelOn(ctx, conn, racer, channel)
		return err
	})
	return ch, sequenceError(deviceID, protocol.KindSetRacerChannel, err)
}

// ReadRacerChannels reads all racer slots. The result is in slot order and
// omits unassigned slots. Any failed slot fails the whole read.
func (c *Client) ReadRacerChannels(ctx context.Context, deviceID string) ([]protocol.RacerChannel, error) {
	slots := make([]string, protocol.NumSlots)

	err := c.session.Sequence(ctx, deviceID, func(conn *ble.Conn) error {
		g, gctx := errgroup.WithContext(ctx)
		for i := range slots {
			g.Go(func() error {
				ch, err := c.readChannelOn(gctx, conn, i+1)
				if err != nil {
					return err
				}
				slots[i] = ch
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, sequenceError(deviceID, protocol.KindGetRacerChannel, err)
	}

	var out []protocol.RacerChannel
	for i, ch := range slots {
		if ch == protocol.Unassigned {
			continue
		}
		out = append(out, protocol.RacerChannel{Racer: i + 1, Channel: ch})
	}
	return out, nil
}

// WriteRacerChannels assigns channels to racer slots. Channels are sent in
// upper case and an empty channel clears the slot. The confirmations are
// returned in input order, without cleared slots.
func (c *Client) WriteRacerChannels(ctx context.Context, deviceID string, assignments []protocol.RacerChannel) ([]protocol.RacerChannel, error) {
	confirmed := make([]string, len(assignments))

	err := c.session.Sequence(ctx, deviceID, func(conn *ble.Conn) error {
		g, gctx := errgroup.WithContext(ctx)
		for i, a := range assignments {
			g.Go(func() error {
				ch, err := c.writeChannelOn(gctx, conn, a.Racer, a.Channel)
				if err != nil {
					return err
				}
				confirmed[i] = ch
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, sequenceError(deviceID, protocol.KindSetRacerChannel, err)
	}

	var out []protocol.RacerChannel
	for i, ch := range confirmed {
		if ch == protocol.Unassigned {
			continue
		}
		out = append(out, protocol.RacerChannel{Racer: assignments[i].Racer, Channel: ch})
	}
	return out, nil
}

func (c *Client) readChannelOn(ctx context.Context, conn *ble.Conn, racer int) (string, error) {
	cmd := protocol.GetRacerChannel{Racer: racer}
	raw, err := c.exchangeOn(ctx, conn, cmd)
	if err != nil {
		return "", err
	}
	ch, err := protocol.DecodeChannel(cmd.Kind(), raw)
	if err != nil {
		return "", opError(conn.DeviceID(), cmd.Kind(), err)
	}
	return ch, nil
}

func (c *Client) writeChannelOn(ctx context.Context, conn *ble.Conn, racer int, channel string) (string, error) {
	channel = strings.ToUpper(strings.TrimSpace(channel))
	if channel == "" {
		channel = protocol.Unassigned
	}
	cmd := protocol.SetRacerChannel{Racer: racer, Channel: channel}
	raw, err := c.exchangeOn(ctx, conn, cmd)
	if err != nil {
		return "", err
	}
	ch, err := protocol.DecodeChannel(cmd.Kind(), raw)
	if err != nil {
		return "", opError(conn.DeviceID(), cmd.Kind(), err)
	}
	return ch, nil
}
