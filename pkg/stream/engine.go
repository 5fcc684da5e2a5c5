package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/ringbuffer"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/wavcontainer"
)

const discardChunkFrames = 256

// Source is the storage side of a playback stream.
type Source interface {
	io.Reader
	io.Seeker
}

// Engine moves bytes between a RingBuffer and a peripheral on every service
// tick, and between the RingBuffer and storage on every Refill or Drain.
//
// For playback storage is the source and the peripheral the sink; capture is
// the reverse. Every count the engine moves is a whole number of frames,
// except the final bytes of a ring whose content the peripheral accepted
// part of a frame at a time.
//
// An Engine is not safe for concurrent use: Service, Refill and Drain must
// be serialized by the caller.
type Engine struct {
	logger *slog.Logger

	direction  peripheral.Direction
	container  wavcontainer.Container
	peripheral peripheral.Peripheral
	ring       *ringbuffer.RingBuffer

	frameSize  int
	dataLength int64
	loop       bool
	shift      int
	discard    []byte

	state State
	// the source side has delivered dataLength bytes
	drained bool

	// bytes moved across the storage boundary in the current pass
	storageBytes int64
	// bytes moved across the peripheral boundary
	peripheralBytes int64
	underruns       uint64
	overruns        uint64
	loops           uint64
}

type engineConfig struct {
	direction  peripheral.Direction
	container  wavcontainer.Container
	peripheral peripheral.Peripheral
	capacity   int
	dataLength int64
	loop       bool
	shift      int
}

func newEngine(logger *slog.Logger, cfg engineConfig) (*Engine, error) {
	frameSize := cfg.container.FrameSize()
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size %d", frameSize)
	}
	// Keeping the capacity a whole number of frames means neither half of a
	// wrapped Peek or Reserve ever splits a frame.
	capacity := cfg.capacity - cfg.capacity%frameSize
	ring, err := ringbuffer.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("ring buffer of %d bytes for %d byte frames: %w", cfg.capacity, frameSize, err)
	}

	e := &Engine{
		logger:     logger,
		direction:  cfg.direction,
		container:  cfg.container,
		peripheral: cfg.peripheral,
		ring:       ring,
		frameSize:  frameSize,
		dataLength: cfg.dataLength - cfg.dataLength%int64(frameSize),
		loop:       cfg.loop,
		shift:      cfg.shift,
		state:      Idle,
	}
	if cfg.direction == peripheral.Capture {
		e.discard = make([]byte, discardChunkFrames*frameSize)
	}
	return e, nil
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) RingBuffer() *ringbuffer.RingBuffer {
	return e.ring
}

func (e *Engine) Status() Status {
	return Status{
		State:            e.state,
		BytesTransferred: e.peripheralBytes,
		BytesStored:      e.storageBytes,
		BytesBuffered:    e.ring.AvailableForRead(),
		UnderrunCount:    e.underruns,
		OverrunCount:     e.overruns,
		Loops:            e.loops,
		Drained:          e.drained,
	}
}

// reset empties the ring and zeroes every counter.
func (e *Engine) reset() {
	e.ring.Reset()
	e.drained = false
	e.storageBytes = 0
	e.peripheralBytes = 0
	e.underruns = 0
	e.overruns = 0
	e.loops = 0
}

// Service connects the RingBuffer to the peripheral. It never touches storage
// and never blocks, so it may be called from a timer or interrupt context.
func (e *Engine) Service() error {
	if e.direction == peripheral.Capture {
		return e.serviceCapture()
	}
	return e.servicePlayback()
}

func (e *Engine) servicePlayback() error {
	if e.state != Playing {
		// A paused peripheral drains what it already holds on its own.
		return nil
	}

	space, err := e.peripheral.AvailableToWrite()
	if err != nil {
		return fmt.Errorf("peripheral write space: %w", err)
	}
	space -= space % e.frameSize

	buffered := e.ring.AvailableForRead()
	if buffered == 0 {
		if space > 0 && !e.drained {
			e.underruns++
			if e.underruns == 1 {
				e.logger.Warn("underrun: ring buffer empty while the peripheral wants data",
					"bytesTransferred", e.peripheralBytes,
				)
			}
		}
		e.checkFinished()
		return nil
	}

	n := min(space, buffered)
	if n < buffered {
		n -= n % e.frameSize
	}
	if n == 0 {
		return nil
	}

	first, second := e.ring.Peek(n)
	written, err := e.peripheral.Write(first)
	if err == nil && written == len(first) && len(second) > 0 {
		var more int
		more, err = e.peripheral.Write(second)
		written += more
	}
	e.ring.Discard(written)
	e.peripheralBytes += int64(written)
	if err != nil {
		return fmt.Errorf("peripheral write: %w", err)
	}

	e.checkFinished()
	return nil
}

// checkFinished moves a playing stream to Finished once storage is
// exhausted, the ring is empty and the peripheral reports that its own
// buffer has drained onto the wire.
func (e *Engine) checkFinished() {
	if e.state != Playing || !e.drained || e.ring.AvailableForRead() != 0 {
		return
	}
	if e.direction == peripheral.Playback && !e.peripheral.DrainComplete() {
		return
	}
	e.state = Finished
	e.logger.Info(
		"stream finished",
		"direction", e.direction,
		"bytesTransferred", e.peripheralBytes,
		"underruns", e.underruns,
		"overruns", e.overruns,
	)
}

func (e *Engine) serviceCapture() error {
	if e.state != Playing && e.state != Paused {
		return nil
	}

	ready, err := e.peripheral.AvailableToRead()
	if err != nil {
		return fmt.Errorf("peripheral read space: %w", err)
	}
	ready -= ready % e.frameSize
	if ready == 0 {
		return nil
	}

	// Paused or complete recordings keep the peripheral empty so that it
	// never overflows, but the samples go nowhere.
	if e.state == Paused || e.drained {
		_, err := e.dropCaptured(ready)
		return err
	}

	wanted := min(int64(ready), e.dataLength-e.peripheralBytes)
	n := min(int(wanted), e.ring.AvailableForWrite())
	n -= n % e.frameSize

	if n > 0 {
		if _, err := e.captureInto(n); err != nil {
			return err
		}
		if e.peripheralBytes == e.dataLength {
			e.drained = true
			e.logger.Debug("capture reached its length limit", "bytes", e.dataLength)
		}
	}

	if lost := int(wanted) - n; lost > 0 {
		e.overruns++
		if e.overruns == 1 {
			e.logger.Warn("overrun: ring buffer full, captured data dropped",
				"bytesDropped", lost,
				"bytesTransferred", e.peripheralBytes,
			)
		}
		if _, err := e.dropCaptured(lost); err != nil {
			return err
		}
	}
	return nil
}

// captureInto reads up to n bytes from the peripheral straight into the
// ring, applies shift correction and commits whole frames.
func (e *Engine) captureInto(n int) (int, error) {
	first, second := e.ring.Reserve(n)
	read, err := e.peripheral.Read(first)
	if err == nil && read == len(first) && len(second) > 0 {
		var more int
		more, err = e.peripheral.Read(second)
		read += more
	}
	// A trailing partial frame cannot be committed without splitting a
	// frame across two transfers; it is lost.
	read -= read % e.frameSize

	if e.shift != 0 && read > 0 {
		head := min(read, len(first))
		if shiftErr := peripheral.Shift(first[:head], e.container.BitsPerSample, e.shift); shiftErr != nil {
			return 0, shiftErr
		}
		if read > head {
			if shiftErr := peripheral.Shift(second[:read-head], e.container.BitsPerSample, e.shift); shiftErr != nil {
				return 0, shiftErr
			}
		}
	}

	e.ring.Commit(read)
	e.peripheralBytes += int64(read)
	if err != nil {
		return read, fmt.Errorf("peripheral read: %w", err)
	}
	return read, nil
}

func (e *Engine) dropCaptured(n int) (int, error) {
	dropped := 0
	for dropped < n {
		chunk := e.discard[:min(len(e.discard), n-dropped)]
		read, err := e.peripheral.Read(chunk)
		dropped += read
		if err != nil {
			return dropped, fmt.Errorf("peripheral read: %w", err)
		}
		if read == 0 {
			break
		}
	}
	return dropped, nil
}

// Refill moves bytes from storage into the ring, up to the free space and
// the unread part of the data chunk. It may block on src but never on the
// peripheral. Once the data chunk is exhausted Refill returns 0 and
// ErrSourceExhausted; a looping stream instead rewinds src to the first
// sample and carries on.
//
// Refill is allowed while Idle, to prefill the ring before play, and while
// Playing. In any other state it moves nothing.
func (e *Engine) Refill(src Source) (int, error) {
	if e.direction != peripheral.Playback {
		return 0, fmt.Errorf("%w: refill on a %v stream", ErrDirection, e.direction)
	}
	if e.drained || e.state == Finished {
		return 0, ErrSourceExhausted
	}
	if e.state != Idle && e.state != Playing {
		return 0, nil
	}

	total := 0
	for {
		remaining := e.dataLength - e.storageBytes
		if remaining == 0 {
			if !e.loop || e.dataLength == 0 {
				e.drained = true
				e.logger.Debug("source drained", "bytes", e.dataLength)
				if total == 0 {
					return 0, ErrSourceExhausted
				}
				return total, nil
			}
			if _, err := src.Seek(e.container.DataOffset, io.SeekStart); err != nil {
				return total, fmt.Errorf("rewind to first sample: %w", err)
			}
			e.storageBytes = 0
			e.loops++
			e.logger.Debug("looping to first sample", "loops", e.loops)
			continue
		}

		want := min(int64(e.ring.AvailableForWrite()), remaining)
		want -= want % int64(e.frameSize)
		if want == 0 {
			return total, nil
		}

		n, err := e.readInto(src, int(want))
		total += n
		if err != nil {
			return total, err
		}
	}
}

func (e *Engine) readInto(src io.Reader, n int) (int, error) {
	first, second := e.ring.Reserve(n)
	read, err := io.ReadFull(src, first)
	if err == nil && len(second) > 0 {
		var more int
		more, err = io.ReadFull(src, second)
		read += more
	}
	read -= read % e.frameSize
	e.ring.Commit(read)
	e.storageBytes += int64(read)

	switch {
	case err == nil:
		return read, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// The file is shorter than its data chunk claims: what was read is
		// the whole of it.
		e.logger.Warn(
			"data chunk truncated",
			"declared", e.dataLength,
			"actual", e.storageBytes,
		)
		e.dataLength = e.storageBytes
		return read, nil
	default:
		return read, fmt.Errorf("storage read: %w", err)
	}
}

// Drain moves captured bytes from the ring to storage. It may block on sink
// but never on the peripheral. Once a length-limited recording has been
// fully written Drain returns 0 and ErrSourceExhausted.
//
// Drain is allowed while Playing; while Paused it moves nothing.
func (e *Engine) Drain(sink io.Writer) (int, error) {
	if e.direction != peripheral.Capture {
		return 0, fmt.Errorf("%w: drain on a %v stream", ErrDirection, e.direction)
	}
	if e.state == Finished {
		return 0, ErrSourceExhausted
	}
	if e.state != Playing {
		return 0, nil
	}
	n, err := e.flush(sink)
	e.checkFinished()
	return n, err
}

// flush writes everything in the ring to sink.
func (e *Engine) flush(sink io.Writer) (int, error) {
	first, second := e.ring.Peek(e.ring.AvailableForRead())
	written, err := sink.Write(first)
	if err == nil && len(second) > 0 {
		var more int
		more, err = sink.Write(second)
		written += more
	}
	e.ring.Discard(written)
	e.storageBytes += int64(written)
	if err != nil {
		return written, fmt.Errorf("storage write: %w", err)
	}
	return written, nil
}
