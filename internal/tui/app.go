package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// Tracker is the part of the gate client the race board uses.
type Tracker interface {
	ReadBatteryLevel(ctx context.Context, deviceID string) (int, error)
	ReadMaxRounds(ctx context.Context, deviceID string) (int, error)
	ReadRacerChannels(ctx context.Context, deviceID string) ([]protocol.RacerChannel, error)
	StartHeat(ctx context.Context, deviceID string, style protocol.RaceStyle, heatID string) (bool, error)
	StopHeat(ctx context.Context, deviceID string) (bool, error)
	ReadRaceUpdate(ctx context.Context, deviceID, heatID string) (*protocol.RaceUpdate, error)
}

// Options configure a race board.
type Options struct {
	HeatID   string
	Style    protocol.RaceStyle
	Interval time.Duration // lap update cadence
}

// Run starts the race board for one gate.
func Run(ctx context.Context, t Tracker, deviceID string, opts Options) error {
	m := NewModel(ctx, t, deviceID, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return err
	}

	return nil
}
