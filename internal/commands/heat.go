package commands

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// StartHeat starts a heat.
func (r *Runner) StartHeat(ctx context.Context, style protocol.RaceStyle, heatID string) error {
	ready, err := r.Client.StartHeat(ctx, r.DeviceID, style, heatID)
	if err != nil {
		return err
	}
	if r.JSON {
		return r.PrintJSON(map[string]any{"heatId": heatID, "style": style, "heatStarted": ready})
	}
	if !ready {
		return errors.New("gate did not report READY")
	}
	r.printf("Heat started (%s)\n", style)
	return nil
}

// StopHeat stops the running heat.
func (r *Runner) StopHeat(ctx context.Context) error {
	idle, err := r.Client.StopHeat(ctx, r.DeviceID)
	if err != nil {
		return err
	}
	if r.JSON {
		return r.PrintJSON(map[string]bool{"heatStopped": idle})
	}
	if !idle {
		return errors.New("gate did not report IDLE")
	}
	r.printf("Heat stopped\n")
	return nil
}

// Rounds prints the laps completed by a racer.
func (r *Runner) Rounds(ctx context.Context, racer int) error {
	n, err := r.Client.ReadTotalRounds(ctx, r.DeviceID, racer)
	if err != nil {
		return err
	}
	return r.emit(map[string]int{"racer": racer, "totalRounds": n}, "Racer %d: %d laps\n", racer, n)
}

// Lap prints the time of one lap.
func (r *Runner) Lap(ctx context.Context, racer, lap int) error {
	t, err := r.Client.ReadLapTime(ctx, r.DeviceID, racer, lap)
	if err != nil {
		return err
	}
	return r.emit(map[string]any{"racer": racer, "lap": lap, "lapTime": t}, "Racer %d lap %d: %s\n", racer, lap, t)
}

// Follow prints lap updates of a running heat, reading the gate once per
// interval, until ctx is done or count updates were printed (count > 0).
// The gate keeps reporting its last update, so repeats are skipped.
func (r *Runner) Follow(ctx context.Context, heatID string, interval time.Duration, count int) error {
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	var last *protocol.RaceUpdate
	printed := 0

	for count <= 0 || printed < count {
		// Wait only fails once ctx is done or its deadline is too close
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		u, err := r.Client.ReadRaceUpdate(ctx, r.DeviceID, heatID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if u == nil || (last != nil && *u == *last) {
			continue
		}
		last = u
		printed++

		if r.JSON {
			if err := r.PrintJSON(u); err != nil {
				return err
			}
			continue
		}
		if u.Start {
			r.printf("Race started\n")
			continue
		}
		r.printf("Racer %d  lap %-3d  %s  (total %s)\n", u.Racer, u.Lap, u.LapTime, u.TotalTime)
	}
	return nil
}
