package protocol

import "fmt"

// RacerChannel is a racer slot and its channel in user notation.
type RacerChannel struct {
	Racer   int    `json:"racer"`
	Channel string `json:"channel"`
}

func (rc RacerChannel) String() string {
	return fmt.Sprintf("%d:%s", rc.Racer, rc.Channel)
}

// RaceUpdate is one event read from the gate during a heat.
// Start is set for the start signal; the lap fields are empty then.
type RaceUpdate struct {
	Start     bool   `json:"start,omitempty"`
	Racer     int    `json:"racer,omitempty"`
	Lap       int    `json:"lap,omitempty"`
	LapTime   string `json:"lapTime,omitempty"`
	TotalTime string `json:"totalTime,omitempty"`
	HeatID    string `json:"heatId,omitempty"`
}

// RaceStyle selects how the gate starts timing a heat.
type RaceStyle string

const (
	// Shotgun starts all timers on the start command.
	Shotgun RaceStyle = "shotgun"
	// Flyby starts timing when the first transmitter passes the gate.
	Flyby RaceStyle = "flyby"
)

// StartKind returns the start command for the style. Anything other than
// shotgun starts in flyby mode.
func (s RaceStyle) StartKind() Kind {
	if s == Shotgun {
		return KindStartRaceShotgun
	}
	return KindStartRaceFlyby
}
