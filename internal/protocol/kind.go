package protocol

import "fmt"

// Kind identifies one command of the RaceTracker vocabulary.
// The set is closed; every kind has a logical key used to look up its
// literal command string in the Vocabulary.
type Kind int

// Command kinds. The comment names the reply shape.
const (
	KindRaw              Kind = iota // text sent verbatim; reply text
	KindGetBatteryLevel              // percent
	KindGetActiveMode                // mode name via the mode table
	KindActivateVrx                  // write only
	KindGetMinLapTime                // number (seconds)
	KindSetMinLapTime                // number (seconds)
	KindGetMaxRounds                 // number
	KindSetMaxRounds                 // number
	KindGetGateADC                   // number
	KindSetGateADC                   // number
	KindGetRSSIADC                   // number
	KindCalibrateGate                // write only; completion is polled
	KindGetRacerChannel              // channel
	KindSetRacerChannel              // channel
	KindGetTotalRounds               // number
	KindGetLapTime                   // lap time text
	KindStartRaceShotgun             // READY status
	KindStartRaceFlyby               // READY status
	KindStopRace                     // IDLE status
	KindGetRaceUpdate                // inbound only: lap updates are read, never requested
)

var kindKeys = map[Kind]string{
	KindRaw:              "raw",
	KindGetBatteryLevel:  "getBatteryLevel",
	KindGetActiveMode:    "getActiveMode",
	KindActivateVrx:      "activateVrx",
	KindGetMinLapTime:    "getMinLapTime",
	KindSetMinLapTime:    "setMinLapTime",
	KindGetMaxRounds:     "getMaxRounds",
	KindSetMaxRounds:     "setMaxRounds",
	KindGetGateADC:       "getGateAdc",
	KindSetGateADC:       "setGateAdc",
	KindGetRSSIADC:       "getRssiAdc",
	KindCalibrateGate:    "calibrateGate",
	KindGetRacerChannel:  "getRacerChannel",
	KindSetRacerChannel:  "setRacerChannel",
	KindGetTotalRounds:   "getTotalRounds",
	KindGetLapTime:       "getLapTime",
	KindStartRaceShotgun: "startRaceShotgun",
	KindStartRaceFlyby:   "startRaceFlyby",
	KindStopRace:         "stopRace",
	KindGetRaceUpdate:    "getRaceUpdate",
}

// Key returns the logical command key, e.g. "getBatteryLevel".
func (k Kind) Key() string {
	if key, ok := kindKeys[k]; ok {
		return key
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) String() string {
	return k.Key()
}

// ParseKind resolves a logical command key to its Kind.
func ParseKind(key string) (Kind, error) {
	for k, v := range kindKeys {
		if v == key {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, key)
}
