package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/wavcontainer"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Storage opens the WAV file a stream reads from or records into.
type Storage interface {
	Open(name string) (afero.File, error)
	Create(name string) (afero.File, error)
}

// Format is the PCM layout of a recording.
type Format struct {
	SampleRate    int
	BitsPerSample int
	Channels      int
}

// Spec describes one stream to open.
type Spec struct {
	// File below the storage root to play or record.
	Name      string
	Direction peripheral.Direction

	// RingBuffer capacity in bytes, rounded down to whole frames. Larger
	// buffers tolerate more irregular Refill/Drain timing.
	BufferSize int

	// Board and hardware buffer settings. The sample format fields are
	// filled in by Open from the WAV file (playback) or Format (capture).
	Peripheral peripheral.Config

	// Restart from the first sample when the data chunk runs out (playback).
	Loop bool

	// Recording format and length limit; zero MaxDataBytes records until stopped.
	Format       Format
	MaxDataBytes int64

	// Bit shift applied to every captured sample, see peripheral.Shift.
	Shift int
}

type Status struct {
	ID    string `json:"id"`
	State State  `json:"state"`

	// Bytes written to the peripheral (playback) or read from it (capture).
	BytesTransferred int64 `json:"bytes_transferred"`
	// Bytes read from storage in the current pass (playback) or written to it (capture).
	BytesStored   int64 `json:"bytes_stored"`
	BytesBuffered int   `json:"bytes_buffered"`

	UnderrunCount uint64 `json:"underrun_count"`
	OverrunCount  uint64 `json:"overrun_count"`
	Loops         uint64 `json:"loops"`
	Drained       bool   `json:"drained"`
}

// Controller is the public control surface of one stream: the state machine
// on top of an Engine, bound to its WAV file and peripheral.
//
// A Controller is driven from a single execution context. Service and Pump
// are meant to be called repeatedly by a scheduler; Play, Pause, Resume and
// Stop by the application between those calls.
type Controller struct {
	logger *slog.Logger
	uuid   uuid.UUID

	spec       Spec
	file       afero.File
	container  wavcontainer.Container
	peripheral peripheral.Peripheral
	periphCfg  peripheral.Config
	engine     *Engine

	finalized bool
	closed    bool
}

// Open prepares a stream in the Idle state. For playback the WAV header is
// parsed and validated before anything else happens; a malformed or
// unsupported file fails here and the stream never starts. For capture the
// file is created with a placeholder header.
func Open(store Storage, p peripheral.Peripheral, spec Spec) (*Controller, error) {
	uuid := uuid.New()
	logger := slog.Default().With(
		"stream uuid", uuid,
	)

	c := &Controller{
		logger:     logger,
		uuid:       uuid,
		spec:       spec,
		peripheral: p,
	}

	var err error
	switch spec.Direction {
	case peripheral.Playback:
		err = c.openPlayback(store)
	case peripheral.Capture:
		err = c.openCapture(store)
	default:
		err = fmt.Errorf("%w: %v", peripheral.ErrUnsupportedConfig, spec.Direction)
	}
	if err != nil {
		logger.Error(
			"could not open stream",
			"file", spec.Name,
			"direction", spec.Direction,
			"err", err,
		)
		if c.file != nil {
			c.file.Close()
		}
		return nil, err
	}

	c.periphCfg = spec.Peripheral
	c.periphCfg.SampleRate = c.container.SampleRate
	c.periphCfg.BitsPerSample = c.container.BitsPerSample
	c.periphCfg.Channels = c.container.Channels
	c.periphCfg.Direction = spec.Direction
	if err := p.Configure(c.periphCfg); err != nil {
		c.file.Close()
		logger.Error("could not configure peripheral", "err", err)
		return nil, fmt.Errorf("configure peripheral: %w", err)
	}

	dataLength := c.container.AlignedDataLength()
	if spec.Direction == peripheral.Capture {
		dataLength = wavcontainer.MaxDataLength
		if spec.MaxDataBytes > 0 {
			dataLength = min(spec.MaxDataBytes, wavcontainer.MaxDataLength)
		}
	}

	c.engine, err = newEngine(logger, engineConfig{
		direction:  spec.Direction,
		container:  c.container,
		peripheral: p,
		capacity:   spec.BufferSize,
		dataLength: dataLength,
		loop:       spec.Loop && spec.Direction == peripheral.Playback,
		shift:      spec.Shift,
	})
	if err != nil {
		c.file.Close()
		return nil, err
	}

	logger.Info(
		"opened stream",
		"file", spec.Name,
		"direction", spec.Direction,
		"format", c.container.String(),
		"bufferSize", c.engine.ring.Cap(),
		"loop", c.engine.loop,
	)
	return c, nil
}

func (c *Controller) openPlayback(store Storage) error {
	f, err := store.Open(c.spec.Name)
	if err != nil {
		return err
	}
	c.file = f

	c.container, err = wavcontainer.Parse(f)
	if err != nil {
		return fmt.Errorf("%s: %w", c.spec.Name, err)
	}
	return nil
}

func (c *Controller) openCapture(store Storage) error {
	container, err := wavcontainer.New(c.spec.Format.SampleRate, c.spec.Format.BitsPerSample, c.spec.Format.Channels)
	if err != nil {
		return err
	}
	c.container = container

	f, err := store.Create(c.spec.Name)
	if err != nil {
		return err
	}
	c.file = f
	return wavcontainer.WriteHeader(f, container)
}

func (c *Controller) ID() string {
	return c.uuid.String()
}

func (c *Controller) Container() wavcontainer.Container {
	return c.container
}

func (c *Controller) State() State {
	return c.engine.state
}

func (c *Controller) Status() Status {
	status := c.engine.Status()
	status.ID = c.ID()
	return status
}

func (c *Controller) transition(op string, to State, allowed ...State) error {
	from := c.engine.state
	for _, state := range allowed {
		if from == state {
			c.engine.state = to
			c.logger.Info("state change", "op", op, "from", from, "to", to)
			return nil
		}
	}
	return &TransitionError{Op: op, From: from}
}

// Play starts an Idle stream, resumes a Paused one, or restarts a Stopped
// one from the first sample. Playing an already playing stream fails.
func (c *Controller) Play() error {
	if c.engine.state == Stopped {
		if err := c.rewind(); err != nil {
			return err
		}
	}
	return c.transition("play", Playing, Idle, Stopped, Paused)
}

func (c *Controller) Pause() error {
	return c.transition("pause", Paused, Playing)
}

func (c *Controller) Resume() error {
	return c.transition("resume", Playing, Paused)
}

// Stop ends the stream by user request; it takes effect before the next
// Service. The ring and counters are reset and the peripheral is
// reconfigured, discarding whatever it still holds. A recording has its
// buffered samples written and its header finalised first.
func (c *Controller) Stop() error {
	from := c.engine.state
	if err := c.transition("stop", Stopped, Idle, Playing, Paused); err != nil {
		return err
	}

	var errs []error
	if c.spec.Direction == peripheral.Capture && from != Idle {
		if _, err := c.engine.flush(c.file); err != nil {
			errs = append(errs, err)
		}
		if err := c.finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	c.engine.reset()
	if err := c.peripheral.Configure(c.periphCfg); err != nil {
		errs = append(errs, fmt.Errorf("reset peripheral: %w", err))
	}
	return errors.Join(errs...)
}

// rewind puts the file back at the first sample before a restart.
func (c *Controller) rewind() error {
	if c.spec.Direction == peripheral.Capture {
		if err := c.file.Truncate(c.container.DataOffset); err != nil {
			return fmt.Errorf("truncate recording: %w", err)
		}
		c.finalized = false
	}
	if _, err := c.file.Seek(c.container.DataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("rewind to first sample: %w", err)
	}
	return nil
}

// Service runs one service tick: see Engine.Service.
func (c *Controller) Service() error {
	err := c.engine.Service()
	c.finalizeIfFinished()
	return err
}

// Refill pulls samples from storage into the ring of a playback stream.
func (c *Controller) Refill() (int, error) {
	return c.engine.Refill(c.file)
}

// Drain pushes captured samples from the ring to storage.
func (c *Controller) Drain() (int, error) {
	n, err := c.engine.Drain(c.file)
	c.finalizeIfFinished()
	return n, err
}

// Pump is Refill for playback and Drain for capture, with the end of data
// reported as success. It is the storage half of a scheduler tick.
func (c *Controller) Pump() (int, error) {
	var n int
	var err error
	if c.spec.Direction == peripheral.Capture {
		n, err = c.Drain()
	} else {
		n, err = c.Refill()
	}
	if errors.Is(err, ErrSourceExhausted) {
		return n, nil
	}
	return n, err
}

// Done reports whether the stream has reached Finished.
func (c *Controller) Done() bool {
	return c.engine.state == Finished
}

func (c *Controller) finalizeIfFinished() {
	if c.engine.state != Finished || c.finalized || c.spec.Direction != peripheral.Capture {
		return
	}
	if err := c.finalize(); err != nil {
		c.logger.Error("could not finalise recording", "err", err)
	}
}

// finalize rewrites the header of a recording with the length of the data
// written so far, then returns to the end of the data.
func (c *Controller) finalize() error {
	if c.finalized {
		return nil
	}
	dataLength := c.engine.storageBytes
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek to header: %w", err)
	}
	if err := wavcontainer.WriteHeader(c.file, c.container.WithDataLength(dataLength)); err != nil {
		return err
	}
	if _, err := c.file.Seek(c.container.DataOffset+dataLength, io.SeekStart); err != nil {
		return fmt.Errorf("seek to end of data: %w", err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("sync recording: %w", err)
	}
	c.finalized = true
	c.logger.Info("finalised recording", "file", c.spec.Name, "dataLength", dataLength)
	return nil
}

// Close releases the file and the peripheral. A recording that was not yet
// finalised gets its buffered samples and header written first.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.logger.Debug("shutdown called")

	var errs []error
	if c.spec.Direction == peripheral.Capture && !c.finalized {
		if c.engine.state == Playing || c.engine.state == Paused {
			if _, err := c.engine.flush(c.file); err != nil {
				errs = append(errs, err)
			}
		}
		if err := c.finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close file: %w", err))
	}
	if err := c.peripheral.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close peripheral: %w", err))
	}
	return errors.Join(errs...)
}
