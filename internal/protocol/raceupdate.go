package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

// Lap update replies look like "R2,00:12.345,T45120" for a single racer and
// "P3R2,00:12.345,T45120" when more than one racer is on the gate.
var reRaceUpdateSep = regexp.MustCompile(`[PRT,]+`)

const (
	markerStarted    = "STARTED"
	markerReady      = "READY"
	markerIdle       = "IDLE"
	markerCalibrated = "Calibrated"
)

// ParseRaceUpdate parses one lap update read from the gate.
// It returns nil without error when the gate has nothing to report.
func ParseRaceUpdate(text string) (*RaceUpdate, error) {
	switch {
	case strings.TrimSpace(text) == "":
		return nil, nil
	case strings.HasPrefix(text, markerStarted):
		// flyby mode: first pilot crossed the gate
		return &RaceUpdate{Start: true}, nil
	case strings.HasPrefix(text, markerReady), strings.HasPrefix(text, markerIdle):
		return nil, nil
	}

	fields := reRaceUpdateSep.Split(text, -1)
	var racerField, lapField, lapTime, total string
	switch len(fields) {
	case 4:
		racerField, lapField, lapTime, total = "1", fields[1], fields[2], fields[3]
	case 5:
		racerField, lapField, lapTime, total = fields[1], fields[2], fields[3], fields[4]
	default:
		return nil, malformed(KindGetRaceUpdate, text)
	}

	racer, err := strconv.Atoi(strings.TrimSpace(racerField))
	if err != nil {
		return nil, malformed(KindGetRaceUpdate, text)
	}
	lap, err := strconv.Atoi(strings.TrimSpace(lapField))
	if err != nil {
		return nil, malformed(KindGetRaceUpdate, text)
	}
	totalTime := reNumber.FindString(total)
	if totalTime == "" {
		return nil, malformed(KindGetRaceUpdate, text)
	}

	return &RaceUpdate{
		Racer:     racer,
		Lap:       lap,
		LapTime:   strings.TrimSpace(lapTime),
		TotalTime: totalTime,
	}, nil
}

// CalibrationComplete is the poll predicate for gate calibration.
func CalibrationComplete(text string) bool {
	return strings.HasPrefix(text, markerCalibrated)
}
