package peripheral

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured     = errors.New("peripheral not configured")
	ErrUnsupportedConfig = errors.New("unsupported peripheral configuration")
	ErrWrongDirection    = errors.New("operation does not match peripheral direction")
)

type Direction int

const (
	// Transmit samples to a DAC or amplifier.
	Playback Direction = iota
	// Receive samples from a microphone.
	Capture
)

func (d Direction) String() string {
	switch d {
	case Playback:
		return "playback"
	case Capture:
		return "capture"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Pins names the board pins of an I2S bus. Values are board specific
// (GPIO numbers on one board, pin names such as "Y6" on another).
type Pins struct {
	SCK string `mapstructure:"sck"`
	WS  string `mapstructure:"ws"`
	SD  string `mapstructure:"sd"`
}

// Config is everything needed to bring up one peripheral for one stream.
// It replaces process-wide board constants: the caller builds it and passes
// it to Configure.
type Config struct {
	// Peripheral instance on the board, e.g. I2S bus 0.
	ID   int
	Pins Pins

	SampleRate    int
	BitsPerSample int
	Channels      int
	Direction     Direction

	// Size in bytes of the peripheral's internal hardware buffer.
	BufferBytes int
}

func (c Config) FrameSize() int {
	return c.Channels * c.BitsPerSample / 8
}

func (c Config) ByteRate() int {
	return c.SampleRate * c.FrameSize()
}

func (c Config) Validate() error {
	switch c.BitsPerSample {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedConfig, c.BitsPerSample)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedConfig, c.Channels)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedConfig, c.SampleRate)
	}
	if c.BufferBytes < c.FrameSize() {
		return fmt.Errorf("%w: buffer of %d bytes cannot hold a frame", ErrUnsupportedConfig, c.BufferBytes)
	}
	if c.Direction != Playback && c.Direction != Capture {
		return fmt.Errorf("%w: %v", ErrUnsupportedConfig, c.Direction)
	}
	return nil
}

// Peripheral is the capability a stream needs from a sample-clocked device
// such as an I2S bus. Every method must return promptly: the stream calls
// them from its service tick, which may run in interrupt context.
//
// Byte slices carry interleaved little-endian PCM frames in the configured
// format. A Peripheral is driven from a single execution context and need
// not be safe for concurrent use.
type Peripheral interface {
	// Configure (re)initialises the peripheral. It discards anything queued.
	Configure(cfg Config) error

	// AvailableToWrite reports how many bytes Write would currently accept.
	AvailableToWrite() (int, error)

	// Write queues up to len(p) bytes for transmission without blocking and
	// returns how many were accepted.
	Write(p []byte) (int, error)

	// AvailableToRead reports how many captured bytes are ready.
	AvailableToRead() (int, error)

	// Read moves up to len(p) captured bytes into p without blocking. Given a
	// buffer that holds whole frames and is no larger than AvailableToRead,
	// it fills whole frames.
	Read(p []byte) (int, error)

	// DrainComplete reports whether every byte accepted by Write has been
	// clocked out onto the wire.
	DrainComplete() bool

	Close() error
}
