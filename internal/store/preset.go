package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// Preset is a named racer channel table.
type Preset struct {
	Name        string                  `json:"name"`
	ContentHash string                  `json:"content_hash"`
	Channels    []protocol.RacerChannel `json:"channels"`
	Sources     []Source                `json:"sources"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Source records where a preset was obtained from.
type Source struct {
	DeviceID  string    `json:"device_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"` // "device_read", "manual", "import"
}

// Normalize validates a channel table and returns it in slot order with
// upper case channels. Unassigned and empty slots are dropped.
func Normalize(channels []protocol.RacerChannel) ([]protocol.RacerChannel, error) {
	var bySlot [protocol.NumSlots]string
	for _, rc := range channels {
		if rc.Racer < 1 || rc.Racer > protocol.NumSlots {
			return nil, fmt.Errorf("racer %d: %w", rc.Racer, protocol.ErrInvalidRacer)
		}
		ch := strings.ToUpper(strings.TrimSpace(rc.Channel))
		if ch == "" || ch == protocol.Unassigned {
			bySlot[rc.Racer-1] = ""
			continue
		}
		if !protocol.ValidUserChannel(ch) {
			return nil, fmt.Errorf("racer %d: invalid channel %q", rc.Racer, rc.Channel)
		}
		if bySlot[rc.Racer-1] != "" && bySlot[rc.Racer-1] != ch {
			return nil, fmt.Errorf("racer %d assigned twice (%s, %s)", rc.Racer, bySlot[rc.Racer-1], ch)
		}
		bySlot[rc.Racer-1] = ch
	}

	var out []protocol.RacerChannel
	for i, ch := range bySlot {
		if ch != "" {
			out = append(out, protocol.RacerChannel{Racer: i + 1, Channel: ch})
		}
	}
	return out, nil
}

// Assignments expands a preset to a full table write: every slot is listed
// and slots without a channel are cleared.
func (p *Preset) Assignments() []protocol.RacerChannel {
	out := make([]protocol.RacerChannel, protocol.NumSlots)
	for i := range out {
		out[i].Racer = i + 1
	}
	for _, rc := range p.Channels {
		out[rc.Racer-1].Channel = rc.Channel
	}
	return out
}
