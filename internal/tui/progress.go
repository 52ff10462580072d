package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
)

// LapProgress renders a racer's completed laps against the laps per heat.
type LapProgress struct {
	progress progress.Model
}

// NewLapProgress creates a lap progress bar.
func NewLapProgress() LapProgress {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(24),
		progress.WithoutPercentage(),
	)
	return LapProgress{progress: p}
}

// Percent returns done/total clamped to 0..1. An unknown total is 0.
func (p LapProgress) Percent(done, total int) float64 {
	if total <= 0 || done <= 0 {
		return 0
	}
	if done >= total {
		return 1
	}
	return float64(done) / float64(total)
}

// View renders the bar followed by "done/total".
func (p LapProgress) View(done, total int) string {
	if total <= 0 {
		return fmt.Sprintf("%d laps", done)
	}
	return p.progress.ViewAs(p.Percent(done, total)) + fmt.Sprintf(" %d/%d", done, total)
}
