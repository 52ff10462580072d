package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitaminmoo/rtrk-tool/internal/ble"
	"github.com/vitaminmoo/rtrk-tool/internal/commands"
	"github.com/vitaminmoo/rtrk-tool/internal/config"
	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
	"github.com/vitaminmoo/rtrk-tool/internal/store"
	"github.com/vitaminmoo/rtrk-tool/internal/tracker"
	"github.com/vitaminmoo/rtrk-tool/internal/tui"
)

// CLI is the root command structure for rtrk.
type CLI struct {
	Verbose    bool   `short:"v" help:"Enable verbose debug output"`
	Device     string `short:"d" env:"RTRK_DEVICE" help:"RaceTracker address or advertised name"`
	Config     string `env:"RTRK_CONFIG" type:"path" help:"Settings file (default ~/.rtrk/config.yaml)"`
	Vocabulary string `type:"existingfile" help:"Command vocabulary YAML replacing the built-in table"`
	JSON       bool   `help:"Print results as JSON"`

	Battery   BatteryCmd   `cmd:"" help:"Read the battery level"`
	Firmware  FirmwareCmd  `cmd:"" help:"Read the firmware version"`
	Mode      ModeCmd      `cmd:"" help:"Read the active mode"`
	MinLap    MinLapCmd    `cmd:"" name:"min-lap" help:"Read or set the minimum lap time (seconds)"`
	MaxRounds MaxRoundsCmd `cmd:"" name:"max-rounds" help:"Read or set the laps per heat"`
	GateAdc   GateAdcCmd   `cmd:"" name:"gate-adc" help:"Read or set the gate detection threshold"`
	Rssi      RssiCmd      `cmd:"" help:"Read the current RSSI ADC value"`
	Calibrate CalibrateCmd `cmd:"" help:"Calibrate the gate threshold"`
	Channels  ChannelsCmd  `cmd:"" help:"Racer channel assignments and presets"`
	Heat      HeatCmd      `cmd:"" help:"Start and stop heats"`
	Rounds    RoundsCmd    `cmd:"" help:"Read the laps completed by a racer"`
	Lap       LapCmd       `cmd:"" help:"Read the time of one lap"`
	Race      RaceCmd      `cmd:"" help:"Live race board"`
	Raw       RawCmd       `cmd:"" help:"Send a raw command (debugging)"`
}

// env is what a command runs with: settings, and a connected client when
// the command talks to a gate.
type env struct {
	settings *config.Settings
	client   *tracker.Client
	runner   *commands.Runner
	deviceID string
	close    func()
}

func (g *CLI) settings() (*config.Settings, error) {
	config.Verbose = g.Verbose
	s, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.Device != "" {
		s.Device = g.Device
	}
	if g.Vocabulary != "" {
		s.Vocabulary = g.Vocabulary
	}
	return s, nil
}

// connect loads settings and connects to the gate.
func (g *CLI) connect(ctx context.Context) (*env, error) {
	s, err := g.settings()
	if err != nil {
		return nil, err
	}
	if s.Device == "" {
		return nil, errors.New("no device given (use --device, RTRK_DEVICE or the settings file)")
	}

	vocab := protocol.DefaultVocabulary()
	if s.Vocabulary != "" {
		if vocab, err = protocol.LoadVocabulary(s.Vocabulary); err != nil {
			return nil, err
		}
	}

	logger := config.NewLogger(g.Verbose)
	adapter := ble.NewAdapter()
	deviceID, err := adapter.Connect(ctx, s.Device, s.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	config.Debugf("Connected to %s", deviceID)

	session := ble.NewSession(adapter, ble.WithLogger(logger))
	client := tracker.New(session, vocab,
		tracker.WithLogger(logger),
		tracker.WithCalibrationInterval(s.CalibrationInterval),
		tracker.WithCalibrationDeadline(s.CalibrationDeadline),
		tracker.WithPhaseCallback(func(id string, p tracker.CalibrationPhase) {
			config.Debugf("%s: calibration %s", id, p)
		}),
	)

	return &env{
		settings: s,
		client:   client,
		deviceID: deviceID,
		runner:   &commands.Runner{Client: client, DeviceID: deviceID, JSON: g.JSON},
		close: func() {
			if err := adapter.Close(); err != nil {
				config.Debugf("disconnect: %v", err)
			}
		},
	}, nil
}

// run connects and runs fn with the command runner.
func (g *CLI) run(ctx context.Context, fn func(*commands.Runner) error) error {
	e, err := g.connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()
	return fn(e.runner)
}

func (g *CLI) openStore() (*store.Store, error) {
	s, err := g.settings()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(s.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// --- Device Commands ---

type BatteryCmd struct{}

func (c *BatteryCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Battery(ctx) })
}

type FirmwareCmd struct{}

func (c *FirmwareCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Firmware(ctx) })
}

type ModeCmd struct{}

func (c *ModeCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Mode(ctx) })
}

type MinLapCmd struct {
	Set *int `help:"New minimum lap time in seconds"`
}

func (c *MinLapCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Number(ctx, commands.MinLapTime, c.Set) })
}

type MaxRoundsCmd struct {
	Set *int `help:"New number of laps per heat"`
}

func (c *MaxRoundsCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Number(ctx, commands.MaxRounds, c.Set) })
}

type GateAdcCmd struct {
	Set *int `help:"New gate ADC threshold"`
}

func (c *GateAdcCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Number(ctx, commands.GateADC, c.Set) })
}

type RssiCmd struct{}

func (c *RssiCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Number(ctx, commands.RSSIADC, nil) })
}

type CalibrateCmd struct{}

func (c *CalibrateCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Calibrate(ctx) })
}

// --- Channel Commands ---

type ChannelsCmd struct {
	List    ChannelsListCmd    `cmd:"" default:"1" help:"List assigned racer channels"`
	Get     ChannelsGetCmd     `cmd:"" help:"Read one racer's channel"`
	Set     ChannelsSetCmd     `cmd:"" help:"Assign one racer's channel"`
	Write   ChannelsWriteCmd   `cmd:"" help:"Assign several racer channels (RACER=CHANNEL ...)"`
	Save    ChannelsSaveCmd    `cmd:"" help:"Save the gate's channels as a preset"`
	Apply   ChannelsApplyCmd   `cmd:"" help:"Write a preset to the gate"`
	Presets ChannelsPresetsCmd `cmd:"" help:"List saved presets"`
	Delete  ChannelsDeleteCmd  `cmd:"" help:"Delete a saved preset"`
}

type ChannelsListCmd struct{}

func (c *ChannelsListCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Channels(ctx) })
}

type ChannelsGetCmd struct {
	Racer int `arg:"" help:"Racer slot (1-8)"`
}

func (c *ChannelsGetCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Channel(ctx, c.Racer) })
}

type ChannelsSetCmd struct {
	Racer   int    `arg:"" help:"Racer slot (1-8)"`
	Channel string `arg:"" help:"Channel, e.g. R1, L4, A8 (FF clears the slot)"`
}

func (c *ChannelsSetCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.SetChannel(ctx, c.Racer, c.Channel) })
}

type ChannelsWriteCmd struct {
	Assignments []string `arg:"" help:"Assignments such as 1=R1 2=R3 (3= clears slot 3)"`
}

func (c *ChannelsWriteCmd) Run(globals *CLI, ctx context.Context) error {
	assignments, err := commands.ParseAssignments(c.Assignments)
	if err != nil {
		return err
	}
	return globals.run(ctx, func(r *commands.Runner) error { return r.WriteChannels(ctx, assignments) })
}

type ChannelsSaveCmd struct {
	Name string `arg:"" help:"Preset name"`
}

func (c *ChannelsSaveCmd) Run(globals *CLI, ctx context.Context) error {
	st, err := globals.openStore()
	if err != nil {
		return err
	}
	return globals.run(ctx, func(r *commands.Runner) error { return r.SavePreset(ctx, st, c.Name) })
}

type ChannelsApplyCmd struct {
	Name string `arg:"" help:"Preset name"`
	Yes  bool   `short:"y" help:"Do not ask for confirmation"`
}

func (c *ChannelsApplyCmd) Run(globals *CLI, ctx context.Context) error {
	st, err := globals.openStore()
	if err != nil {
		return err
	}
	return globals.run(ctx, func(r *commands.Runner) error { return r.ApplyPreset(ctx, st, c.Name, c.Yes) })
}

type ChannelsPresetsCmd struct{}

func (c *ChannelsPresetsCmd) Run(globals *CLI) error {
	st, err := globals.openStore()
	if err != nil {
		return err
	}
	r := &commands.Runner{JSON: globals.JSON}
	return r.Presets(st)
}

type ChannelsDeleteCmd struct {
	Name string `arg:"" help:"Preset name"`
}

func (c *ChannelsDeleteCmd) Run(globals *CLI) error {
	st, err := globals.openStore()
	if err != nil {
		return err
	}
	return (&commands.Runner{}).DeletePreset(st, c.Name)
}

// --- Heat Commands ---

type HeatCmd struct {
	Start  HeatStartCmd  `cmd:"" help:"Start a heat"`
	Stop   HeatStopCmd   `cmd:"" help:"Stop the running heat"`
	Follow HeatFollowCmd `cmd:"" help:"Print lap updates of the running heat"`
}

type HeatStartCmd struct {
	Style string `enum:"shotgun,flyby" default:"flyby" help:"Race start style (shotgun or flyby)"`
	ID    string `name:"id" help:"Heat identifier attached to lap updates"`
}

func (c *HeatStartCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error {
		return r.StartHeat(ctx, protocol.RaceStyle(c.Style), c.ID)
	})
}

type HeatStopCmd struct{}

func (c *HeatStopCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.StopHeat(ctx) })
}

type HeatFollowCmd struct {
	ID       string        `name:"id" help:"Heat identifier attached to lap updates"`
	Interval time.Duration `help:"Update interval (default from settings)"`
	Count    int           `help:"Stop after this many updates (0 runs until interrupted)"`
}

func (c *HeatFollowCmd) Run(globals *CLI, ctx context.Context) error {
	e, err := globals.connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()
	interval := c.Interval
	if interval <= 0 {
		interval = e.settings.RaceInterval
	}
	return e.runner.Follow(ctx, c.ID, interval, c.Count)
}

type RoundsCmd struct {
	Racer int `arg:"" help:"Racer slot (1-8)"`
}

func (c *RoundsCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Rounds(ctx, c.Racer) })
}

type LapCmd struct {
	Racer int `arg:"" help:"Racer slot (1-8)"`
	Lap   int `arg:"" help:"Lap number"`
}

func (c *LapCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Lap(ctx, c.Racer, c.Lap) })
}

// --- Race board ---

type RaceCmd struct {
	Style    string        `enum:"shotgun,flyby" default:"flyby" help:"Race start style (shotgun or flyby)"`
	ID       string        `name:"id" help:"Heat identifier"`
	Interval time.Duration `help:"Update interval (default from settings)"`
}

func (c *RaceCmd) Run(globals *CLI, ctx context.Context) error {
	e, err := globals.connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	interval := c.Interval
	if interval <= 0 {
		interval = e.settings.RaceInterval
	}
	heatID := c.ID
	if heatID == "" {
		heatID = time.Now().Format("20060102-150405")
	}
	return tui.Run(ctx, e.client, e.deviceID, tui.Options{
		HeatID:   heatID,
		Style:    protocol.RaceStyle(c.Style),
		Interval: interval,
	})
}

// --- Debug ---

type RawCmd struct {
	Command string `arg:"" help:"Command text sent verbatim"`
	Hex     bool   `help:"Always hex dump the reply"`
}

func (c *RawCmd) Run(globals *CLI, ctx context.Context) error {
	return globals.run(ctx, func(r *commands.Runner) error { return r.Raw(ctx, c.Command, c.Hex) })
}
