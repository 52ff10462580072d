package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
	"github.com/vitaminmoo/rtrk-tool/internal/util"
)

// Session sequences command exchanges with RaceTracker devices.
//
// The gate has no request ids: a reply is whatever the read characteristic
// holds when it is read. The session therefore allows one operation in
// flight per device. Overlapping calls wait for the device by default, or
// fail with protocol.ErrDeviceBusy when the session rejects busy devices.
type Session struct {
	transport  Transport
	logger     *slog.Logger
	rejectBusy bool

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for frame level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRejectBusy makes overlapping calls on a device fail instead of queueing.
func WithRejectBusy() Option {
	return func(s *Session) { s.rejectBusy = true }
}

// NewSession creates a session on top of transport.
func NewSession(transport Transport, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		logger:    slog.Default(),
		inflight:  make(map[string]chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// acquire takes exclusive use of a device.
func (s *Session) acquire(ctx context.Context, deviceID string) (func(), error) {
	s.mu.Lock()
	sem, ok := s.inflight[deviceID]
	if !ok {
		sem = make(chan struct{}, 1)
		s.inflight[deviceID] = sem
	}
	s.mu.Unlock()

	if s.rejectBusy {
		select {
		case sem <- struct{}{}:
		default:
			return nil, fmt.Errorf("%s: %w", deviceID, protocol.ErrDeviceBusy)
		}
	} else {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return func() { <-sem }, nil
}

// busy reports whether an operation is in flight on the device.
func (s *Session) busy(deviceID string) bool {
	s.mu.Lock()
	sem, ok := s.inflight[deviceID]
	s.mu.Unlock()
	return ok && len(sem) > 0
}

// Sequence runs fn with exclusive use of the device, so that compound
// operations (heat start, calibration) are never interleaved with others.
func (s *Session) Sequence(ctx context.Context, deviceID string, fn func(*Conn) error) error {
	release, err := s.acquire(ctx, deviceID)
	if err != nil {
		return err
	}
	defer release()
	return fn(&Conn{s: s, deviceID: deviceID})
}

// Exchange writes a command and reads its reply.
func (s *Session) Exchange(ctx context.Context, deviceID string, cmd []byte) ([]byte, error) {
	var resp []byte
	err := s.Sequence(ctx, deviceID, func(c *Conn) error {
		var err error
		resp, err = c.Exchange(ctx, cmd)
		return err
	})
	return resp, err
}

// Read reads one characteristic.
func (s *Session) Read(ctx context.Context, deviceID string, ch Characteristic) ([]byte, error) {
	var resp []byte
	err := s.Sequence(ctx, deviceID, func(c *Conn) error {
		var err error
		resp, err = c.Read(ctx, ch)
		return err
	})
	return resp, err
}

// PollUntil reads the reply characteristic every interval until done
// returns true for the decoded text.
func (s *Session) PollUntil(ctx context.Context, deviceID string, interval time.Duration, done func(string) bool) error {
	return s.Sequence(ctx, deviceID, func(c *Conn) error {
		return c.PollUntil(ctx, interval, done)
	})
}

// Conn is exclusive use of one device, handed out by Session.Sequence.
// Its methods may be called from several goroutines; each round trip runs
// to completion before the next one starts.
type Conn struct {
	s        *Session
	deviceID string
	mu       sync.Mutex
}

// DeviceID returns the device this connection addresses.
func (c *Conn) DeviceID() string { return c.deviceID }

// Write sends a command without reading a reply.
func (c *Conn) Write(ctx context.Context, cmd []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(ctx, cmd)
}

// Read reads one characteristic.
func (c *Conn) Read(ctx context.Context, ch Characteristic) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read(ctx, ch)
}

// Exchange writes cmd, then reads the reply. Both steps must succeed.
func (c *Conn) Exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(ctx, cmd); err != nil {
		return nil, err
	}
	return c.read(ctx, CommandRead)
}

// PollUntil issues one read per interval, never more than one outstanding,
// until done matches the decoded reply. The interval timer is released on
// every return path; a cancelled ctx ends polling without completion.
func (c *Conn) PollUntil(ctx context.Context, interval time.Duration, done func(string) bool) error {
	if interval <= 0 {
		return errors.New("poll interval must be > 0")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for polls := 1; ; polls++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		raw, err := c.read(ctx, CommandRead)
		if err != nil {
			return err
		}
		if done(protocol.Text(raw)) {
			c.s.logger.Debug("poll complete", "device", c.deviceID, "polls", polls)
			return nil
		}
	}
}

func (c *Conn) write(ctx context.Context, cmd []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.s.logFrame("write", c.deviceID, cmd)
	if err := c.s.transport.Write(ctx, c.deviceID, CommandWrite, cmd); err != nil {
		return &TransportError{DeviceID: c.deviceID, Op: "write", Char: CommandWrite, Err: err}
	}
	return nil
}

func (c *Conn) read(ctx context.Context, ch Characteristic) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := c.s.transport.Read(ctx, c.deviceID, ch)
	if err != nil {
		return nil, &TransportError{DeviceID: c.deviceID, Op: "read", Char: ch, Err: err}
	}
	c.s.logFrame("read", c.deviceID, data)
	return data, nil
}

func (s *Session) logFrame(op, deviceID string, data []byte) {
	if !s.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{"device", deviceID, "bytes", len(data)}
	text := protocol.Text(data)
	if util.IsTextData([]byte(text)) {
		attrs = append(attrs, "text", text)
	} else {
		attrs = append(attrs, "hex", fmt.Sprintf("%X", data))
	}
	s.logger.Debug("ble "+op, attrs...)
}
