package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
	"github.com/vitaminmoo/rtrk-tool/internal/store"
)

// Channels prints the assigned racer channels.
func (r *Runner) Channels(ctx context.Context) error {
	channels, err := r.Client.ReadRacerChannels(ctx, r.DeviceID)
	if err != nil {
		return err
	}
	return r.printChannels(channels)
}

// Channel prints the channel of one racer.
func (r *Runner) Channel(ctx context.Context, racer int) error {
	ch, err := r.Client.ReadRacerChannel(ctx, r.DeviceID, racer)
	if err != nil {
		return err
	}
	return r.emit(protocol.RacerChannel{Racer: racer, Channel: ch}, "Racer %d: %s\n", racer, ch)
}

// SetChannel assigns one racer channel.
func (r *Runner) SetChannel(ctx context.Context, racer int, channel string) error {
	ch, err := r.Client.WriteRacerChannel(ctx, r.DeviceID, racer, channel)
	if err != nil {
		return err
	}
	return r.emit(protocol.RacerChannel{Racer: racer, Channel: ch}, "Racer %d: %s\n", racer, ch)
}

// WriteChannels assigns several racer channels at once.
func (r *Runner) WriteChannels(ctx context.Context, assignments []protocol.RacerChannel) error {
	confirmed, err := r.Client.WriteRacerChannels(ctx, r.DeviceID, assignments)
	if err != nil {
		return err
	}
	return r.printChannels(confirmed)
}

// SavePreset reads the channel table from the gate and stores it as name.
func (r *Runner) SavePreset(ctx context.Context, s *store.Store, name string) error {
	channels, err := r.Client.ReadRacerChannels(ctx, r.DeviceID)
	if err != nil {
		return err
	}
	p, isNew, err := s.Save(name, channels, store.Source{DeviceID: r.DeviceID, Method: "device_read"})
	if err != nil {
		return fmt.Errorf("failed to save preset: %w", err)
	}
	if r.JSON {
		return r.PrintJSON(p)
	}
	verb := "Updated"
	if isNew {
		verb = "Saved"
	}
	r.printf("%s preset %q (%d racers, %s)\n", verb, name, len(p.Channels), store.ShortHash(p.ContentHash))

	same, err := s.FindByHash(p.ContentHash)
	if err != nil {
		return fmt.Errorf("failed to check for duplicates: %w", err)
	}
	for _, other := range same {
		if other != name {
			r.printf("Same table as preset %q\n", other)
		}
	}
	return nil
}

// ApplyPreset writes a stored preset to the gate. Slots the preset does not
// assign are cleared. Unless yes is set the user is asked first.
func (r *Runner) ApplyPreset(ctx context.Context, s *store.Store, name string, yes bool) error {
	p, err := s.Load(name)
	if err != nil {
		return err
	}
	if !yes {
		r.printf("Preset %q:\n", name)
		for _, rc := range p.Channels {
			r.printf("  Racer %d: %s\n", rc.Racer, rc.Channel)
		}
		if !r.ConfirmAction("This replaces every racer channel on the gate. Type 'yes' to continue: ") {
			return errors.New("aborted")
		}
	}
	return r.WriteChannels(ctx, p.Assignments())
}

// Presets lists stored presets.
func (r *Runner) Presets(s *store.Store) error {
	entries, err := s.List()
	if err != nil {
		return fmt.Errorf("failed to list presets: %w", err)
	}
	if r.JSON {
		return r.PrintJSON(entries)
	}
	if len(entries) == 0 {
		r.printf("No presets saved.\n")
		r.printf("Save the gate's channels with: rtrk channels save <name>\n")
		return nil
	}
	for _, e := range entries {
		r.printf("  %-20s  %d racers  %s  %s\n",
			e.Name, e.Racers, store.ShortHash(e.ContentHash), e.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// DeletePreset removes a stored preset.
func (r *Runner) DeletePreset(s *store.Store, name string) error {
	if err := s.Delete(name); err != nil {
		return err
	}
	r.printf("Deleted preset %q\n", name)
	return nil
}

func (r *Runner) printChannels(channels []protocol.RacerChannel) error {
	if r.JSON {
		if channels == nil {
			channels = []protocol.RacerChannel{}
		}
		return r.PrintJSON(channels)
	}
	if len(channels) == 0 {
		r.printf("No racer channels assigned.\n")
		return nil
	}
	for _, rc := range channels {
		r.printf("Racer %d: %s\n", rc.Racer, rc.Channel)
	}
	return nil
}
