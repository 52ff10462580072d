package protocol

import "strings"

// Unassigned is the channel value the gate reports for an empty racer slot.
const Unassigned = "FF"

// Band prefixes differ between the app and the gate firmware:
// the user-facing Raceband (R) and Lowband (L) are C and D on the device.
var (
	userToDevice = map[byte]byte{'R': 'C', 'L': 'D'}
	deviceToUser = map[byte]byte{'C': 'R', 'D': 'L'}
)

// ToDevice converts a user-facing channel (e.g. "R3") to device notation ("C3").
func ToDevice(channel string) string {
	return remapPrefix(channel, userToDevice)
}

// ToUser converts a device channel (e.g. "D5") to user notation ("L5").
func ToUser(channel string) string {
	return remapPrefix(channel, deviceToUser)
}

// remapPrefix replaces the leading run of a mapped band letter with its
// counterpart. Bands without a mapping pass through. Output is upper case.
func remapPrefix(channel string, table map[byte]byte) string {
	ch := strings.ToUpper(strings.TrimSpace(channel))
	if ch == "" {
		return ch
	}
	target, ok := table[ch[0]]
	if !ok {
		return ch
	}
	i := 0
	for i < len(ch) && ch[i] == ch[0] {
		i++
	}
	return string(target) + ch[i:]
}

// ValidUserChannel reports whether ch is a band letter known to the app
// followed by a channel number 1-8.
func ValidUserChannel(ch string) bool {
	return validChannel(ch, "ABEFRL")
}

// validDeviceChannel is ValidUserChannel in device notation.
func validDeviceChannel(ch string) bool {
	return validChannel(ch, "ABEFCD")
}

func validChannel(ch, bands string) bool {
	if len(ch) != 2 {
		return false
	}
	return strings.IndexByte(bands, ch[0]) >= 0 && ch[1] >= '1' && ch[1] <= '8'
}
