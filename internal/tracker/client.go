package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitaminmoo/rtrk-tool/internal/ble"
	"github.com/vitaminmoo/rtrk-tool/internal/protocol"
)

const (
	// DefaultCalibrationInterval is how often the gate is polled while it
	// calibrates.
	DefaultCalibrationInterval = time.Second

	// DefaultCalibrationDeadline bounds a calibration that never reports
	// completion.
	DefaultCalibrationDeadline = 60 * time.Second
)

// Client provides typed operations on RaceTracker gates.
// It wraps a transport session and the command vocabulary; one Client serves
// any number of devices.
type Client struct {
	session *ble.Session
	vocab   *protocol.Vocabulary
	logger  *slog.Logger

	calibrationInterval time.Duration
	calibrationDeadline time.Duration
	onPhase             func(deviceID string, phase CalibrationPhase)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCalibrationInterval sets the calibration poll interval.
func WithCalibrationInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.calibrationInterval = d
		}
	}
}

// WithCalibrationDeadline bounds calibration. Zero disables the bound; the
// caller's context is then the only way to abort a hung calibration.
func WithCalibrationDeadline(d time.Duration) Option {
	return func(c *Client) { c.calibrationDeadline = d }
}

// WithPhaseCallback observes calibration progress.
func WithPhaseCallback(fn func(deviceID string, phase CalibrationPhase)) Option {
	return func(c *Client) { c.onPhase = fn }
}

// New creates a client. A nil vocabulary selects the built-in one.
func New(session *ble.Session, vocab *protocol.Vocabulary, opts ...Option) *Client {
	if vocab == nil {
		vocab = protocol.DefaultVocabulary()
	}
	c := &Client{
		session:             session,
		vocab:               vocab,
		logger:              slog.Default(),
		calibrationInterval: DefaultCalibrationInterval,
		calibrationDeadline: DefaultCalibrationDeadline,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Vocabulary returns the command vocabulary in use.
func (c *Client) Vocabulary() *protocol.Vocabulary {
	return c.vocab
}

// --- Low-level helpers ---

// exchange builds cmd, writes it and reads the reply.
func (c *Client) exchange(ctx context.Context, deviceID string, cmd protocol.Command) ([]byte, error) {
	data, err := c.vocab.Build(cmd)
	if err != nil {
		return nil, opError(deviceID, cmd.Kind(), err)
	}
	raw, err := c.session.Exchange(ctx, deviceID, data)
	if err != nil {
		return nil, opError(deviceID, cmd.Kind(), err)
	}
	return raw, nil
}

// exchangeOn is exchange on a device already held by a sequence.
func (c *Client) exchangeOn(ctx context.Context, conn *ble.Conn, cmd protocol.Command) ([]byte, error) {
	data, err := c.vocab.Build(cmd)
	if err != nil {
		return nil, opError(conn.DeviceID(), cmd.Kind(), err)
	}
	raw, err := conn.Exchange(ctx, data)
	if err != nil {
		return nil, opError(conn.DeviceID(), cmd.Kind(), err)
	}
	return raw, nil
}

// writeOn sends cmd without reading a reply.
func (c *Client) writeOn(ctx context.Context, conn *ble.Conn, cmd protocol.Command) error {
	data, err := c.vocab.Build(cmd)
	if err != nil {
		return opError(conn.DeviceID(), cmd.Kind(), err)
	}
	if err := conn.Write(ctx, data); err != nil {
		return opError(conn.DeviceID(), cmd.Kind(), err)
	}
	return nil
}

func (c *Client) number(ctx context.Context, deviceID string, cmd protocol.Command) (int, error) {
	raw, err := c.exchange(ctx, deviceID, cmd)
	if err != nil {
		return 0, err
	}
	n, err := protocol.DecodeNumber(cmd.Kind(), raw)
	if err != nil {
		return 0, opError(deviceID, cmd.Kind(), err)
	}
	return n, nil
}

func query(k protocol.Kind) protocol.Command {
	return protocol.Query{Op: k}
}

func fmtHeat(heatID string) string {
	if heatID == "" {
		return "-"
	}
	return fmt.Sprintf("%q", heatID)
}
