package commands

import (
	"context"
	"fmt"
)

// Battery prints the battery level.
func (r *Runner) Battery(ctx context.Context) error {
	pct, err := r.Client.ReadBatteryLevel(ctx, r.DeviceID)
	if err != nil {
		return err
	}
	return r.emit(map[string]int{"battery": pct}, "Battery: %d%%\n", pct)
}

// Firmware prints the firmware revision.
func (r *Runner) Firmware(ctx context.Context) error {
	fw, err := r.Client.ReadFirmwareVersion(ctx, r.DeviceID)
	if err != nil {
		return err
	}
	return r.emit(map[string]string{"firmware": fw}, "Firmware: %s\n", fw)
}

// Mode prints the active mode.
func (r *Runner) Mode(ctx context.Context) error {
	mode, err := r.Client.ReadActiveMode(ctx, r.DeviceID)
	if err != nil {
		return err
	}
	return r.emit(map[string]string{"mode": mode}, "Mode: %s\n", mode)
}

// Setting is a numeric gate setting.
type Setting int

const (
	MinLapTime Setting = iota
	MaxRounds
	GateADC
	RSSIADC
)

var settingNames = map[Setting]string{
	MinLapTime: "minLapTime",
	MaxRounds:  "maxRounds",
	GateADC:    "gateAdc",
	RSSIADC:    "rssiAdc",
}

func (s Setting) String() string { return settingNames[s] }

// Number reads a numeric setting, or writes it first when set is non-nil.
func (r *Runner) Number(ctx context.Context, s Setting, set *int) error {
	var (
		v   int
		err error
	)
	c, id := r.Client, r.DeviceID
	switch {
	case s == MinLapTime && set != nil:
		v, err = c.WriteMinLapTime(ctx, id, *set)
	case s == MinLapTime:
		v, err = c.ReadMinLapTime(ctx, id)
	case s == MaxRounds && set != nil:
		v, err = c.WriteMaxRounds(ctx, id, *set)
	case s == MaxRounds:
		v, err = c.ReadMaxRounds(ctx, id)
	case s == GateADC && set != nil:
		v, err = c.WriteGateADC(ctx, id, *set)
	case s == GateADC:
		v, err = c.ReadGateADC(ctx, id)
	case s == RSSIADC && set == nil:
		v, err = c.ReadRSSIADC(ctx, id)
	default:
		return fmt.Errorf("%s cannot be set", s)
	}
	if err != nil {
		return err
	}
	return r.emit(map[string]int{s.String(): v}, "%s: %d\n", s, v)
}

// Calibrate recalibrates the gate and prints its progress.
func (r *Runner) Calibrate(ctx context.Context) error {
	if !r.JSON {
		r.printf("Calibrating gate, keep transmitters away from it...\n")
	}
	adc, err := r.Client.CalibrateGate(ctx, r.DeviceID)
	if err != nil {
		return err
	}
	return r.emit(map[string]int{"gateAdc": adc}, "Calibrated, gate ADC: %d\n", adc)
}
