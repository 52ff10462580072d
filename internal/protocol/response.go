package protocol

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	rePercent  = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	reNumber   = regexp.MustCompile(`\d+`)
	reAlphaNum = regexp.MustCompile(`(?i)[a-z0-9]+`)
)

// Text decodes a gate reply: bytes up to the first NUL terminator, or the
// whole buffer when there is none. A nil or empty buffer is "".
func Text(raw []byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

func malformed(k Kind, text string) error {
	return fmt.Errorf("%w: %s: %q", ErrMalformedResponse, k, text)
}

// afterColon returns the segment between the first and second ':'.
func afterColon(k Kind, text string) (string, error) {
	parts := strings.Split(text, ":")
	if len(parts) < 2 {
		return "", malformed(k, text)
	}
	return parts[1], nil
}

// firstDigits returns the first run of digits in s.
func firstDigits(k Kind, s string) (string, error) {
	d := reNumber.FindString(s)
	if d == "" {
		return "", malformed(k, s)
	}
	return d, nil
}

// DecodePercent extracts a battery style "87.6%" value rounded to an integer.
func DecodePercent(k Kind, raw []byte) (int, error) {
	text := Text(raw)
	m := rePercent.FindStringSubmatch(text)
	if m == nil {
		return 0, malformed(k, text)
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, malformed(k, text)
	}
	return int(math.Round(f)), nil
}

// DecodeDigits extracts the first digit run after the first colon,
// e.g. "MinLap: 5s" -> "5".
func DecodeDigits(k Kind, raw []byte) (string, error) {
	text := Text(raw)
	seg, err := afterColon(k, text)
	if err != nil {
		return "", err
	}
	return firstDigits(k, seg)
}

// DecodeNumber is DecodeDigits converted to an int.
func DecodeNumber(k Kind, raw []byte) (int, error) {
	d, err := DecodeDigits(k, raw)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(d)
	if err != nil {
		return 0, malformed(k, Text(raw))
	}
	return n, nil
}

// DecodeMode maps the reported mode code through the mode table.
func (v *Vocabulary) DecodeMode(raw []byte) (string, error) {
	code, err := DecodeDigits(KindGetActiveMode, raw)
	if err != nil {
		return "", err
	}
	return v.Mode(code)
}

// DecodeChannel extracts the channel after the first colon and converts it
// to user notation.
func DecodeChannel(k Kind, raw []byte) (string, error) {
	text := Text(raw)
	seg, err := afterColon(k, text)
	if err != nil {
		return "", err
	}
	ch := reAlphaNum.FindString(seg)
	if ch == "" {
		return "", malformed(k, text)
	}
	return ToUser(ch), nil
}

// DecodeLapTime returns the lap time text that follows the first colon.
func DecodeLapTime(raw []byte) (string, error) {
	text := Text(raw)
	i := strings.IndexByte(text, ':')
	if i < 0 {
		return "", malformed(KindGetLapTime, text)
	}
	lap := strings.TrimSpace(text[i+1:])
	if lap == "" {
		return "", malformed(KindGetLapTime, text)
	}
	return lap, nil
}

// DecodeReady reports whether the gate answered READY to a race start.
func DecodeReady(raw []byte) bool {
	return hasPrefixFold(Text(raw), "READY")
}

// DecodeIdle reports whether the gate answered IDLE to a race stop.
func DecodeIdle(raw []byte) bool {
	return hasPrefixFold(Text(raw), "IDLE")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// Decode extracts the typed value for a reply to a command of kind k.
// Kinds without a reply shape decode to the reply text.
func (v *Vocabulary) Decode(k Kind, raw []byte) (any, error) {
	switch k {
	case KindGetBatteryLevel:
		return DecodePercent(k, raw)
	case KindGetMinLapTime, KindSetMinLapTime,
		KindGetMaxRounds, KindSetMaxRounds,
		KindGetGateADC, KindSetGateADC,
		KindGetRSSIADC, KindGetTotalRounds:
		return DecodeNumber(k, raw)
	case KindGetActiveMode:
		return v.DecodeMode(raw)
	case KindGetRacerChannel, KindSetRacerChannel:
		return DecodeChannel(k, raw)
	case KindGetLapTime:
		return DecodeLapTime(raw)
	case KindStartRaceShotgun, KindStartRaceFlyby:
		return DecodeReady(raw), nil
	case KindStopRace:
		return DecodeIdle(raw), nil
	case KindGetRaceUpdate:
		return ParseRaceUpdate(Text(raw))
	case KindRaw, KindActivateVrx, KindCalibrateGate:
		return Text(raw), nil
	default:
		return Text(raw), nil
	}
}
