package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is one request to the gate. The set of implementations is closed;
// each carries the parameters of its kind.
type Command interface {
	Kind() Kind
	params(v *Vocabulary) ([]string, error)
}

// Query is a command without parameters (battery, mode, start/stop, ...).
type Query struct {
	Op Kind
}

func (q Query) Kind() Kind { return q.Op }

func (q Query) params(*Vocabulary) ([]string, error) {
	switch q.Op {
	case KindSetMinLapTime, KindSetMaxRounds, KindSetGateADC,
		KindGetRacerChannel, KindSetRacerChannel, KindGetTotalRounds, KindGetLapTime:
		return nil, fmt.Errorf("%s requires parameters", q.Op)
	}
	return nil, nil
}

// SetMinLapTime sets the shortest lap the gate will count.
type SetMinLapTime struct {
	MinLapTime int // seconds
}

func (SetMinLapTime) Kind() Kind { return KindSetMinLapTime }

func (c SetMinLapTime) params(*Vocabulary) ([]string, error) {
	return []string{strconv.Itoa(c.MinLapTime)}, nil
}

// SetMaxRounds sets the laps per heat.
type SetMaxRounds struct {
	MaxRounds int
}

func (SetMaxRounds) Kind() Kind { return KindSetMaxRounds }

func (c SetMaxRounds) params(*Vocabulary) ([]string, error) {
	return []string{strconv.Itoa(c.MaxRounds)}, nil
}

// SetGateADC sets the gate detection threshold.
type SetGateADC struct {
	GateADC int
}

func (SetGateADC) Kind() Kind { return KindSetGateADC }

func (c SetGateADC) params(*Vocabulary) ([]string, error) {
	return []string{strconv.Itoa(c.GateADC)}, nil
}

// GetRacerChannel addresses the racer by its device slot handle.
type GetRacerChannel struct {
	Racer int
}

func (GetRacerChannel) Kind() Kind { return KindGetRacerChannel }

func (c GetRacerChannel) params(v *Vocabulary) ([]string, error) {
	slot, err := v.Slot(c.Racer)
	if err != nil {
		return nil, err
	}
	return []string{slot}, nil
}

// SetRacerChannel takes the channel in user notation.
type SetRacerChannel struct {
	Racer   int
	Channel string
}

func (SetRacerChannel) Kind() Kind { return KindSetRacerChannel }

func (c SetRacerChannel) params(*Vocabulary) ([]string, error) {
	if err := checkRacer(c.Racer); err != nil {
		return nil, err
	}
	return []string{strconv.Itoa(c.Racer), ToDevice(c.Channel)}, nil
}

// GetTotalRounds asks for the laps a racer has completed.
type GetTotalRounds struct {
	Racer int
}

func (GetTotalRounds) Kind() Kind { return KindGetTotalRounds }

func (c GetTotalRounds) params(*Vocabulary) ([]string, error) {
	if err := checkRacer(c.Racer); err != nil {
		return nil, err
	}
	return []string{strconv.Itoa(c.Racer)}, nil
}

// GetLapTime asks for the time of one lap of a racer. Laps count from 1.
type GetLapTime struct {
	Racer int
	Lap   int
}

func (GetLapTime) Kind() Kind { return KindGetLapTime }

func (c GetLapTime) params(*Vocabulary) ([]string, error) {
	if err := checkRacer(c.Racer); err != nil {
		return nil, err
	}
	return []string{strconv.Itoa(c.Racer), strconv.Itoa(c.Lap)}, nil
}

// Raw is sent verbatim, bypassing the vocabulary. Debug use only.
type Raw struct {
	Text string
}

func (Raw) Kind() Kind { return KindRaw }

func (Raw) params(*Vocabulary) ([]string, error) { return nil, nil }

func checkRacer(racer int) error {
	if racer < 1 || racer > NumSlots {
		return fmt.Errorf("racer %d: %w", racer, ErrInvalidRacer)
	}
	return nil
}

// Build renders cmd to the ASCII bytes written to the gate.
func (v *Vocabulary) Build(cmd Command) ([]byte, error) {
	var line string
	if raw, ok := cmd.(Raw); ok {
		line = raw.Text
	} else {
		prefix, err := v.Command(cmd.Kind())
		if err != nil {
			return nil, err
		}
		args, err := cmd.params(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Kind(), err)
		}
		line = strings.Join(append([]string{prefix}, args...), " ")
	}
	if !isASCII(line) {
		return nil, fmt.Errorf("%s: %w", cmd.Kind(), ErrNonASCII)
	}
	return []byte(line), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}
