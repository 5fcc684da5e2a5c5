package device

import (
	"io"
	"log/slog"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/google/uuid"
)

// A Peripheral that behaves like an I2S bus with a hardware buffer of
// Config.BufferBytes, clocked by wall time (or an injected clock) at the
// configured byte rate.
//
// Played bytes leave the hardware buffer at the sample clock and may be
// copied to a tap. Captured bytes arrive at the sample clock from a
// generator (silence by default); bytes arriving while the hardware buffer is
// full are lost, as on real hardware.
//
// Useful for running the stream engine on a host without audio hardware, and
// in tests.
type SimulatedPeripheral struct {
	logger *slog.Logger
	uuid   uuid.UUID

	now       func() time.Time
	generator func(p []byte)
	tap       io.Writer

	cfg        peripheral.Config
	configured bool
	lastTick   time.Time
	queued     int

	bytesClocked int64
	bytesLost    int64
}

type SimulatedOption func(*SimulatedPeripheral)

// Use clock instead of time.Now, e.g. to step time manually in tests.
func WithClock(clock func() time.Time) SimulatedOption {
	return func(d *SimulatedPeripheral) { d.now = clock }
}

// Fill captured buffers with generator instead of silence.
func WithGenerator(generator func(p []byte)) SimulatedOption {
	return func(d *SimulatedPeripheral) { d.generator = generator }
}

// Copy every byte accepted for playback to tap.
func WithTap(tap io.Writer) SimulatedOption {
	return func(d *SimulatedPeripheral) { d.tap = tap }
}

func NewSimulatedPeripheral(opts ...SimulatedOption) *SimulatedPeripheral {
	uuid := uuid.New()
	d := &SimulatedPeripheral{
		logger: slog.Default().With(
			"simulated peripheral uuid", uuid,
		),
		uuid: uuid,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *SimulatedPeripheral) Configure(cfg peripheral.Config) error {
	if err := cfg.Validate(); err != nil {
		d.logger.Error("rejected configuration", "err", err)
		return err
	}
	d.cfg = cfg
	d.configured = true
	d.queued = 0
	d.lastTick = d.now()

	d.logger.Debug(
		"configured simulated peripheral",
		"direction", cfg.Direction,
		"sampleRate", cfg.SampleRate,
		"bitsPerSample", cfg.BitsPerSample,
		"channels", cfg.Channels,
		"bufferBytes", cfg.BufferBytes,
	)
	return nil
}

// advance moves the sample clock forward to now. Only whole frames are
// clocked; the fractional remainder carries over to the next call.
func (d *SimulatedPeripheral) advance() {
	now := d.now()
	elapsed := now.Sub(d.lastTick)
	if elapsed <= 0 {
		return
	}
	frames := int64(elapsed) * int64(d.cfg.SampleRate) / int64(time.Second)
	if frames == 0 {
		return
	}
	d.lastTick = d.lastTick.Add(time.Duration(frames * int64(time.Second) / int64(d.cfg.SampleRate)))
	clocked := frames * int64(d.cfg.FrameSize())

	switch d.cfg.Direction {
	case peripheral.Playback:
		played := min(clocked, int64(d.queued))
		d.queued -= int(played)
		d.bytesClocked += played
		if d.queued == 0 {
			// an idle bus does not bank time
			d.lastTick = now
		}
	case peripheral.Capture:
		free := int64(d.cfg.BufferBytes - d.queued)
		arrived := min(clocked, free)
		d.queued += int(arrived)
		d.bytesClocked += arrived
		d.bytesLost += clocked - arrived
	}
}

func (d *SimulatedPeripheral) AvailableToWrite() (int, error) {
	if !d.configured {
		return 0, peripheral.ErrNotConfigured
	}
	if d.cfg.Direction != peripheral.Playback {
		return 0, peripheral.ErrWrongDirection
	}
	d.advance()
	return d.cfg.BufferBytes - d.queued, nil
}

func (d *SimulatedPeripheral) Write(p []byte) (int, error) {
	free, err := d.AvailableToWrite()
	if err != nil {
		return 0, err
	}
	n := min(len(p), free)
	if d.tap != nil && n > 0 {
		if _, err := d.tap.Write(p[:n]); err != nil {
			return 0, err
		}
	}
	d.queued += n
	return n, nil
}

func (d *SimulatedPeripheral) AvailableToRead() (int, error) {
	if !d.configured {
		return 0, peripheral.ErrNotConfigured
	}
	if d.cfg.Direction != peripheral.Capture {
		return 0, peripheral.ErrWrongDirection
	}
	d.advance()
	return d.queued, nil
}

func (d *SimulatedPeripheral) Read(p []byte) (int, error) {
	ready, err := d.AvailableToRead()
	if err != nil {
		return 0, err
	}
	n := min(len(p), ready)
	if d.generator != nil {
		d.generator(p[:n])
	} else {
		clear(p[:n])
	}
	d.queued -= n
	return n, nil
}

func (d *SimulatedPeripheral) DrainComplete() bool {
	if !d.configured {
		return true
	}
	if d.cfg.Direction == peripheral.Playback {
		d.advance()
	}
	return d.cfg.Direction != peripheral.Playback || d.queued == 0
}

// BytesClocked is the number of bytes that have crossed the wire.
func (d *SimulatedPeripheral) BytesClocked() int64 {
	return d.bytesClocked
}

// BytesLost is the number of captured bytes dropped by a full hardware buffer.
func (d *SimulatedPeripheral) BytesLost() int64 {
	return d.bytesLost
}

func (d *SimulatedPeripheral) Close() error {
	d.logger.Debug(
		"shutdown called",
		"bytesClocked", d.bytesClocked,
		"bytesLost", d.bytesLost,
	)
	d.configured = false
	d.queued = 0
	return nil
}
