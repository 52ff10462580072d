package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDevice(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"R2", "C2"},
		{"r2", "C2"},
		{"RR2", "C2"},
		{"L5", "D5"},
		{"l5", "D5"},
		{"A1", "A1"},
		{"f8", "F8"},
		{"FF", "FF"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToDevice(tt.in), "ToDevice(%q)", tt.in)
	}
}

func TestToUser(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"C2", "R2"},
		{"c2", "R2"},
		{"CC7", "R7"},
		{"D1", "L1"},
		{"E4", "E4"},
		{"FF", "FF"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToUser(tt.in), "ToUser(%q)", tt.in)
	}
}

func TestChannelRoundTrip(t *testing.T) {
	for _, band := range "ABEFRL" {
		for n := '1'; n <= '8'; n++ {
			ch := string(band) + string(n)
			assert.True(t, ValidUserChannel(ch))
			assert.Equal(t, ch, ToUser(ToDevice(ch)), "user channel %s", ch)
		}
	}
	for _, band := range "ABEFCD" {
		for n := '1'; n <= '8'; n++ {
			ch := string(band) + string(n)
			assert.True(t, validDeviceChannel(ch))
			assert.Equal(t, ch, ToDevice(ToUser(ch)), "device channel %s", ch)
		}
	}
}

func TestValidChannel(t *testing.T) {
	assert.False(t, ValidUserChannel("C1"))
	assert.False(t, ValidUserChannel("R9"))
	assert.False(t, ValidUserChannel("R10"))
	assert.False(t, validDeviceChannel("R1"))
}
