package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

// fakeTransport records writes and serves queued read replies.
type fakeTransport struct {
	mu       sync.Mutex
	log      []string // "w:<data>" / "r:<char>"
	replies  [][]byte
	writeErr error
	readErr  error
	// failReadAt fails the n-th read (1-based) when > 0
	failReadAt int
	reads      int

	active    int
	maxActive int
	delay     time.Duration
}

func (f *fakeTransport) enter() {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
}

func (f *fakeTransport) leave() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

func (f *fakeTransport) Write(ctx context.Context, deviceID string, c Characteristic, data []byte) error {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "w:"+string(data))
	return f.writeErr
}

func (f *fakeTransport) Read(ctx context.Context, deviceID string, c Characteristic) ([]byte, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	f.log = append(f.log, "r:"+c.Char)
	if f.readErr != nil || (f.failReadAt > 0 && f.reads == f.failReadAt) {
		if f.readErr != nil {
			return nil, f.readErr
		}
		return nil, errors.New("link lost")
	}
	if len(f.replies) == 0 {
		return nil, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeTransport) entries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func TestExchangeWritesThenReads(t *testing.T) {
	ft := &fakeTransport{replies: [][]byte{[]byte("IDLE\x00")}}
	s := NewSession(ft)

	resp, err := s.Exchange(context.Background(), "dev1", []byte("rx"))
	require.NoError(t, err)
	assert.Equal(t, "IDLE", protocol.Text(resp))
	assert.Equal(t, []string{"w:rx", "r:" + ReadCharUUID}, ft.entries())
}

func TestExchangeWriteFailureSkipsRead(t *testing.T) {
	ft := &fakeTransport{writeErr: errors.New("gatt write failed")}
	s := NewSession(ft)

	resp, err := s.Exchange(context.Background(), "dev1", []byte("gb"))
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrTransport)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "write", te.Op)
	assert.Equal(t, "dev1", te.DeviceID)
	assert.Equal(t, []string{"w:gb"}, ft.entries())
}

func TestExchangeReadFailure(t *testing.T) {
	ft := &fakeTransport{readErr: errors.New("timeout")}
	s := NewSession(ft)

	resp, err := s.Exchange(context.Background(), "dev1", []byte("gb"))
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, protocol.ErrTransport)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "read", te.Op)
}

func TestPollUntilStopsOnMatch(t *testing.T) {
	ft := &fakeTransport{replies: [][]byte{
		[]byte("Calibrating\x00"),
		[]byte("Calibrating\x00"),
		[]byte("Calibrated\x00"),
		[]byte("never read"),
	}}
	s := NewSession(ft)

	err := s.PollUntil(context.Background(), "dev1", time.Millisecond, protocol.CalibrationComplete)
	require.NoError(t, err)
	assert.Len(t, ft.entries(), 3)
}

func TestPollUntilReadFailureStops(t *testing.T) {
	ft := &fakeTransport{failReadAt: 2, replies: [][]byte{[]byte("x"), []byte("x"), []byte("x")}}
	s := NewSession(ft)

	err := s.PollUntil(context.Background(), "dev1", time.Millisecond, func(string) bool { return false })
	assert.ErrorIs(t, err, protocol.ErrTransport)
	assert.Len(t, ft.entries(), 2)
}

func TestPollUntilCancel(t *testing.T) {
	ft := &fakeTransport{}
	s := NewSession(ft)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := false
	err := s.PollUntil(ctx, "dev1", 5*time.Millisecond, func(string) bool {
		called = true
		return false
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, called)
	assert.False(t, s.busy("dev1"))
}

func TestPollUntilRejectsZeroInterval(t *testing.T) {
	s := NewSession(&fakeTransport{})
	err := s.PollUntil(context.Background(), "dev1", 0, func(string) bool { return true })
	assert.Error(t, err)
}

func TestSessionSerializesPerDevice(t *testing.T) {
	ft := &fakeTransport{delay: 2 * time.Millisecond}
	s := NewSession(ft)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Exchange(context.Background(), "dev1", []byte("gb"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ft.maxActive)
	entries := ft.entries()
	require.Len(t, entries, 16)
	for i := 0; i < len(entries); i += 2 {
		assert.Equal(t, "w:gb", entries[i])
		assert.Equal(t, "r:"+ReadCharUUID, entries[i+1])
	}
}

func TestConnSerializesGoroutines(t *testing.T) {
	ft := &fakeTransport{delay: time.Millisecond}
	s := NewSession(ft)

	err := s.Sequence(context.Background(), "dev1", func(c *Conn) error {
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Exchange(context.Background(), []byte("gc"))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ft.maxActive)
}

func TestRejectBusy(t *testing.T) {
	s := NewSession(&fakeTransport{}, WithRejectBusy())

	err := s.Sequence(context.Background(), "dev1", func(c *Conn) error {
		assert.True(t, s.busy("dev1"))

		_, err := s.Exchange(context.Background(), "dev1", []byte("gb"))
		assert.ErrorIs(t, err, protocol.ErrDeviceBusy)

		// other devices are independent
		_, err = s.Exchange(context.Background(), "dev2", []byte("gb"))
		assert.NoError(t, err)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, s.busy("dev1"))
}

func TestQueuedCallHonorsContext(t *testing.T) {
	s := NewSession(&fakeTransport{})

	err := s.Sequence(context.Background(), "dev1", func(c *Conn) error {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Exchange(ctx, "dev1", []byte("gb"))
		assert.ErrorIs(t, err, context.Canceled)
		return nil
	})
	require.NoError(t, err)
}
