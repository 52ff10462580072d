package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "", Text([]byte{}))
	assert.Equal(t, "IDLE", Text([]byte("IDLE\x00garbage")))
	assert.Equal(t, "READY", Text([]byte("READY")))
	assert.Equal(t, "", Text([]byte{0, 'A'}))
}

func TestDecodePercent(t *testing.T) {
	n, err := DecodePercent(KindGetBatteryLevel, []byte("Battery: 87.6%\x00"))
	require.NoError(t, err)
	assert.Equal(t, 88, n)

	n, err = DecodePercent(KindGetBatteryLevel, []byte("BAT 40.2% 3.71V"))
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	_, err = DecodePercent(KindGetBatteryLevel, []byte("Battery: n/a"))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeNumber(t *testing.T) {
	v := DefaultVocabulary()
	tests := []struct {
		kind Kind
		raw  string
		want int
	}{
		{KindGetMinLapTime, "MinLap: 5s\x00", 5},
		{KindSetMaxRounds, "MaxRounds:12", 12},
		{KindGetGateADC, "GateADC: 0143 (cal)", 143},
		{KindGetRSSIADC, "RSSI:  98", 98},
		{KindGetTotalRounds, "Rounds: 3", 3},
	}
	for _, tt := range tests {
		got, err := v.Decode(tt.kind, []byte(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestDecodeNumberMalformed(t *testing.T) {
	_, err := DecodeNumber(KindGetGateADC, []byte("GateADC none"))
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = DecodeNumber(KindGetGateADC, []byte("GateADC: none"))
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = DecodeNumber(KindGetGateADC, nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeMode(t *testing.T) {
	v := DefaultVocabulary()
	mode, err := v.DecodeMode([]byte("Mode: 2\x00"))
	require.NoError(t, err)
	assert.Equal(t, "Flyby", mode)

	mode, err = v.DecodeMode([]byte("Mode:01"))
	require.NoError(t, err)
	assert.Equal(t, "Shotgun", mode)

	_, err = v.DecodeMode([]byte("Mode: 42"))
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestDecodeChannel(t *testing.T) {
	ch, err := DecodeChannel(KindGetRacerChannel, []byte("Chan: C4\x00"))
	require.NoError(t, err)
	assert.Equal(t, "R4", ch)

	ch, err = DecodeChannel(KindSetRacerChannel, []byte("Chan:d1 ok"))
	require.NoError(t, err)
	assert.Equal(t, "L1", ch)

	ch, err = DecodeChannel(KindGetRacerChannel, []byte("Chan: FF"))
	require.NoError(t, err)
	assert.Equal(t, Unassigned, ch)

	_, err = DecodeChannel(KindGetRacerChannel, []byte("Chan: --"))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeStartStatus(t *testing.T) {
	v := DefaultVocabulary()
	for _, k := range []Kind{KindStartRaceShotgun, KindStartRaceFlyby} {
		got, err := v.Decode(k, []byte("READY\x00"))
		require.NoError(t, err)
		assert.Equal(t, true, got)

		got, err = v.Decode(k, []byte("ready to race"))
		require.NoError(t, err)
		assert.Equal(t, true, got)

		got, err = v.Decode(k, []byte("BUSY"))
		require.NoError(t, err)
		assert.Equal(t, false, got)

		got, err = v.Decode(k, nil)
		require.NoError(t, err)
		assert.Equal(t, false, got)
	}
}

func TestDecodeStopStatus(t *testing.T) {
	v := DefaultVocabulary()
	got, err := v.Decode(KindStopRace, []byte("IDLE\x00"))
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = v.Decode(KindStopRace, []byte("BUSY..."))
	require.NoError(t, err)
	assert.Equal(t, false, got)
}

func TestDecodeLapTime(t *testing.T) {
	lap, err := DecodeLapTime([]byte("Lap: 00:12.345\x00"))
	require.NoError(t, err)
	assert.Equal(t, "00:12.345", lap)

	_, err = DecodeLapTime([]byte("Lap:"))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDecodeIdentity(t *testing.T) {
	v := DefaultVocabulary()
	got, err := v.Decode(KindRaw, []byte("anything at all\x00tail"))
	require.NoError(t, err)
	assert.Equal(t, "anything at all", got)

	got, err = v.Decode(Kind(999), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}
