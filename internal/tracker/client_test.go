package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaminmoo/rtrk-tool/internal/ble"
	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// fakeGate answers commands the way a RaceTracker would. Replies are taken
// from queued first, then from respond for the last written command.
type fakeGate struct {
	mu       sync.Mutex
	log      []string
	last     string
	queued   []string
	respond  func(cmd string) string
	firmware string
	failOn   string // write of this command fails
}

func (g *fakeGate) Write(ctx context.Context, deviceID string, c ble.Characteristic, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	cmd := string(data)
	g.log = append(g.log, "w:"+cmd)
	if g.failOn != "" && cmd == g.failOn {
		return errors.New("write rejected")
	}
	g.last = cmd
	return nil
}

func (g *fakeGate) Read(ctx context.Context, deviceID string, c ble.Characteristic) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c == ble.Firmware {
		g.log = append(g.log, "r:firmware")
		return []byte(g.firmware + "\x00"), nil
	}
	g.log = append(g.log, "r")
	if len(g.queued) > 0 {
		r := g.queued[0]
		g.queued = g.queued[1:]
		return []byte(r + "\x00"), nil
	}
	if g.respond == nil {
		return nil, nil
	}
	return []byte(g.respond(g.last) + "\x00"), nil
}

func (g *fakeGate) entries() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.log...)
}

func (g *fakeGate) writes() []string {
	var out []string
	for _, e := range g.entries() {
		if cmd, ok := strings.CutPrefix(e, "w:"); ok {
			out = append(out, cmd)
		}
	}
	return out
}

func fixed(reply string) func(string) string {
	return func(string) string { return reply }
}

func newClient(g *fakeGate, opts ...Option) *Client {
	return New(ble.NewSession(g), nil, opts...)
}

const dev = "AA:BB:CC:DD:EE:FF"

func TestReadBatteryLevel(t *testing.T) {
	g := &fakeGate{respond: fixed("Battery: 87.6%")}
	pct, err := newClient(g).ReadBatteryLevel(context.Background(), dev)
	require.NoError(t, err)
	assert.Equal(t, 88, pct)
	assert.Equal(t, []string{"w:gb", "r"}, g.entries())
}

func TestMalformedReplyIsOpError(t *testing.T) {
	g := &fakeGate{respond: fixed("garbage")}
	_, err := newClient(g).ReadBatteryLevel(context.Background(), dev)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrMalformedResponse)

	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, dev, oe.DeviceID)
	assert.Equal(t, "getBatteryLevel", oe.Command)
}

func TestReadFirmwareVersion(t *testing.T) {
	g := &fakeGate{firmware: "1.4.2"}
	fw, err := newClient(g).ReadFirmwareVersion(context.Background(), dev)
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", fw)
	assert.Equal(t, []string{"r:firmware"}, g.entries())
}

func TestReadActiveMode(t *testing.T) {
	g := &fakeGate{respond: fixed("Mode: 2")}
	mode, err := newClient(g).ReadActiveMode(context.Background(), dev)
	require.NoError(t, err)
	assert.Equal(t, "Flyby", mode)

	g = &fakeGate{respond: fixed("Mode: 42")}
	_, err = newClient(g).ReadActiveMode(context.Background(), dev)
	assert.ErrorIs(t, err, protocol.ErrUnknownMode)
}

func TestNumericSettings(t *testing.T) {
	g := &fakeGate{respond: func(cmd string) string {
		switch cmd {
		case "sl 5":
			return "MinLap: 5s"
		case "gr":
			return "MaxRounds: 3"
		case "sg 120":
			return "GateADC: 120"
		case "ga":
			return "RSSI: 87"
		}
		return "?"
	}}
	c := newClient(g)
	ctx := context.Background()

	v, err := c.WriteMinLapTime(ctx, dev, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = c.ReadMaxRounds(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = c.WriteGateADC(ctx, dev, 120)
	require.NoError(t, err)
	assert.Equal(t, 120, v)

	v, err = c.ReadRSSIADC(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, 87, v)
}

func TestReadRacerChannels(t *testing.T) {
	g := &fakeGate{respond: func(cmd string) string {
		switch cmd {
		case "gc 0":
			return "Channel: C1"
		case "gc 2":
			return "Channel: D4"
		case "gc 5":
			return "Channel: a3"
		}
		return "Channel: FF"
	}}

	got, err := newClient(g).ReadRacerChannels(context.Background(), dev)
	require.NoError(t, err)
	assert.Equal(t, []protocol.RacerChannel{
		{Racer: 1, Channel: "R1"},
		{Racer: 3, Channel: "L4"},
		{Racer: 6, Channel: "A3"},
	}, got)

	for _, rc := range got {
		assert.NotEqual(t, protocol.Unassigned, rc.Channel)
	}

	// every write is followed by its own read
	entries := g.entries()
	require.Len(t, entries, 2*protocol.NumSlots)
	for i := 0; i < len(entries); i += 2 {
		assert.True(t, strings.HasPrefix(entries[i], "w:gc "), entries[i])
		assert.Equal(t, "r", entries[i+1])
	}
	assert.ElementsMatch(t,
		[]string{"gc 0", "gc 1", "gc 2", "gc 3", "gc 4", "gc 5", "gc 6", "gc 7"},
		g.writes())
}

func TestReadRacerChannelsAllOrNothing(t *testing.T) {
	g := &fakeGate{respond: fixed("Channel: C1"), failOn: "gc 3"}

	got, err := newClient(g).ReadRacerChannels(context.Background(), dev)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, protocol.ErrTransport)

	var oe *OpError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "getRacerChannel", oe.Command)
}

func TestWriteRacerChannels(t *testing.T) {
	g := &fakeGate{respond: func(cmd string) string {
		f := strings.Fields(cmd)
		return "Channel: " + f[len(f)-1]
	}}

	got, err := newClient(g).WriteRacerChannels(context.Background(), dev, []protocol.RacerChannel{
		{Racer: 1, Channel: "r2"},
		{Racer: 2, Channel: ""},
		{Racer: 3, Channel: "A5"},
	})
	require.NoError(t, err)
	assert.Equal(t, []protocol.RacerChannel{
		{Racer: 1, Channel: "R2"},
		{Racer: 3, Channel: "A5"},
	}, got)
	assert.ElementsMatch(t, []string{"sc 1 C2", "sc 2 FF", "sc 3 A5"}, g.writes())
}

func TestReadWriteRacerChannel(t *testing.T) {
	g := &fakeGate{respond: func(cmd string) string {
		if cmd == "gc 4" {
			return "Channel: D7"
		}
		return "Channel: C8"
	}}
	c := newClient(g)

	ch, err := c.ReadRacerChannel(context.Background(), dev, 5)
	require.NoError(t, err)
	assert.Equal(t, "L7", ch)

	ch, err = c.WriteRacerChannel(context.Background(), dev, 2, "R8")
	require.NoError(t, err)
	assert.Equal(t, "R8", ch)
	assert.Equal(t, []string{"gc 4", "sc 2 C8"}, g.writes())

	_, err = c.ReadRacerChannel(context.Background(), dev, 9)
	assert.ErrorIs(t, err, protocol.ErrInvalidRacer)
}

func TestCalibrateGate(t *testing.T) {
	g := &fakeGate{
		queued:  []string{"Calibrating", "Calibrating", "Calibrated OK"},
		respond: fixed("GateADC: 143"),
	}
	var phases []CalibrationPhase
	c := newClient(g,
		WithCalibrationInterval(time.Millisecond),
		WithPhaseCallback(func(id string, p CalibrationPhase) {
			assert.Equal(t, dev, id)
			phases = append(phases, p)
		}),
	)

	adc, err := c.CalibrateGate(context.Background(), dev)
	require.NoError(t, err)
	assert.Equal(t, 143, adc)
	assert.Equal(t, []string{"w:cg", "r", "r", "r", "w:gg", "r"}, g.entries())
	assert.Equal(t, []CalibrationPhase{PhaseRequested, PhasePolling, PhaseRead, PhaseDone}, phases)
}

func TestCalibrateGateDeadline(t *testing.T) {
	g := &fakeGate{respond: fixed("Calibrating")}
	var last CalibrationPhase
	c := newClient(g,
		WithCalibrationInterval(2*time.Millisecond),
		WithCalibrationDeadline(20*time.Millisecond),
		WithPhaseCallback(func(_ string, p CalibrationPhase) { last = p }),
	)

	_, err := c.CalibrateGate(context.Background(), dev)
	assert.ErrorIs(t, err, ErrCalibrationTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, PhaseFailed, last)
	assert.NotContains(t, g.writes(), "gg")
}

func TestCalibrateGateWriteFailure(t *testing.T) {
	g := &fakeGate{failOn: "cg"}
	_, err := newClient(g, WithCalibrationInterval(time.Millisecond)).CalibrateGate(context.Background(), dev)
	assert.ErrorIs(t, err, protocol.ErrTransport)
	assert.Equal(t, []string{"w:cg"}, g.entries())
}

func TestStartHeat(t *testing.T) {
	tests := []struct {
		style protocol.RaceStyle
		start string
	}{
		{protocol.Shotgun, "rs"},
		{protocol.Flyby, "rf"},
		{"", "rf"},
	}
	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			g := &fakeGate{respond: fixed("READY")}
			ready, err := newClient(g).StartHeat(context.Background(), dev, tt.style, "heat-1")
			require.NoError(t, err)
			assert.True(t, ready)
			assert.Equal(t, []string{"w:sm 4", "w:" + tt.start, "r"}, g.entries())
		})
	}
}

func TestStartHeatStopsAfterVrxFailure(t *testing.T) {
	g := &fakeGate{respond: fixed("READY"), failOn: "sm 4"}
	ready, err := newClient(g).StartHeat(context.Background(), dev, protocol.Shotgun, "")
	assert.False(t, ready)
	assert.ErrorIs(t, err, protocol.ErrTransport)
	assert.Equal(t, []string{"w:sm 4"}, g.entries())
}

func TestHeldDeviceFailuresAreOpErrors(t *testing.T) {
	g := &fakeGate{respond: fixed("READY")}
	s := ble.NewSession(g, ble.WithRejectBusy())
	c := New(s, nil)
	ctx := context.Background()

	err := s.Sequence(ctx, dev, func(*ble.Conn) error {
		var oe *OpError

		_, err := c.ReadRacerChannels(ctx, dev)
		assert.ErrorIs(t, err, protocol.ErrDeviceBusy)
		if assert.ErrorAs(t, err, &oe) {
			assert.Equal(t, dev, oe.DeviceID)
			assert.Equal(t, "getRacerChannel", oe.Command)
		}

		_, err = c.WriteRacerChannels(ctx, dev, []protocol.RacerChannel{{Racer: 1, Channel: "R1"}})
		if assert.ErrorAs(t, err, &oe) {
			assert.Equal(t, "setRacerChannel", oe.Command)
		}

		_, err = c.StartHeat(ctx, dev, protocol.Shotgun, "")
		assert.ErrorIs(t, err, protocol.ErrDeviceBusy)
		if assert.ErrorAs(t, err, &oe) {
			assert.Equal(t, "startRaceShotgun", oe.Command)
		}

		_, err = c.CalibrateGate(ctx, dev)
		if assert.ErrorAs(t, err, &oe) {
			assert.Equal(t, "calibrateGate", oe.Command)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, g.entries())
}

func TestCalibrateGateDeadlineWhileQueued(t *testing.T) {
	g := &fakeGate{respond: fixed("Calibrated")}
	s := ble.NewSession(g)
	c := New(s, nil, WithCalibrationDeadline(20*time.Millisecond))
	ctx := context.Background()

	err := s.Sequence(ctx, dev, func(*ble.Conn) error {
		_, err := c.CalibrateGate(ctx, dev)
		assert.ErrorIs(t, err, ErrCalibrationTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		var oe *OpError
		assert.ErrorAs(t, err, &oe)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, g.entries())
}

func TestStopHeat(t *testing.T) {
	idle, err := newClient(&fakeGate{respond: fixed("IDLE")}).StopHeat(context.Background(), dev)
	require.NoError(t, err)
	assert.True(t, idle)

	idle, err = newClient(&fakeGate{respond: fixed("BUSY")}).StopHeat(context.Background(), dev)
	require.NoError(t, err)
	assert.False(t, idle)
}

func TestReadRaceUpdate(t *testing.T) {
	g := &fakeGate{queued: []string{"R2,00:12.345,T45120", "STARTED", "", "P3R4,00:11.002,T33001"}}
	c := newClient(g)
	ctx := context.Background()

	u, err := c.ReadRaceUpdate(ctx, dev, "h1")
	require.NoError(t, err)
	assert.Equal(t, &protocol.RaceUpdate{Racer: 1, Lap: 2, LapTime: "00:12.345", TotalTime: "45120", HeatID: "h1"}, u)

	u, err = c.ReadRaceUpdate(ctx, dev, "h1")
	require.NoError(t, err)
	assert.True(t, u.Start)

	u, err = c.ReadRaceUpdate(ctx, dev, "h1")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = c.ReadRaceUpdate(ctx, dev, "h1")
	require.NoError(t, err)
	assert.Equal(t, 3, u.Racer)
	assert.Equal(t, 4, u.Lap)

	// updates are read only, never requested
	assert.Empty(t, g.writes())
}

func TestLapQueries(t *testing.T) {
	g := &fakeGate{respond: func(cmd string) string {
		switch cmd {
		case "gt 2":
			return "Rounds: 4"
		case "gp 2 3":
			return "Lap: 00:12.345"
		}
		return ""
	}}
	c := newClient(g)

	n, err := c.ReadTotalRounds(context.Background(), dev, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	lap, err := c.ReadLapTime(context.Background(), dev, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "00:12.345", lap)

	_, err = c.ReadTotalRounds(context.Background(), dev, 0)
	assert.ErrorIs(t, err, protocol.ErrInvalidRacer)
	assert.Equal(t, []string{"gt 2", "gp 2 3"}, g.writes())
}

func TestSendRaw(t *testing.T) {
	g := &fakeGate{respond: func(cmd string) string { return "echo " + cmd }}
	raw, err := newClient(g).SendRaw(context.Background(), dev, "zz 1")
	require.NoError(t, err)
	assert.Equal(t, "echo zz 1", protocol.Text(raw))
}
