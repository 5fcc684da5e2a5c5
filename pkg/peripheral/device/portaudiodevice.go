package device

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
)

// PortAudioPeripheral adapts a PortAudio host device to the Peripheral
// capability, so a stream can be played through speakers or
// recorded from a microphone without I2S hardware.
//
// PortAudio's blocking read/write calls are only issued once the stream
// reports that a whole host buffer can be transferred, which keeps every
// method non-blocking. Data is exchanged in units of framesPerBuffer frames.
type PortAudioPeripheral struct {
	logger *slog.Logger
	uuid   uuid.UUID

	framesPerBuffer int
	// PortAudio device index, or -1 for the host default
	deviceIndex int
	cfg         peripheral.Config
	stream          *portaudio.Stream
	initialized     bool

	buf16 []int16
	buf32 []int32

	lastWrite time.Time
	latency   time.Duration
}

// NewPortAudioPeripheral uses the host's default input or output device.
func NewPortAudioPeripheral(framesPerBuffer int) *PortAudioPeripheral {
	return NewPortAudioPeripheralOnDevice(framesPerBuffer, -1)
}

// NewPortAudioPeripheralOnDevice uses the device with the given PortAudio
// index, as listed by portaudio.Devices.
func NewPortAudioPeripheralOnDevice(framesPerBuffer int, deviceIndex int) *PortAudioPeripheral {
	uuid := uuid.New()
	return &PortAudioPeripheral{
		logger: slog.Default().With(
			"portaudio peripheral uuid", uuid,
			"deviceIndex", deviceIndex,
		),
		uuid:            uuid,
		framesPerBuffer: framesPerBuffer,
		deviceIndex:     deviceIndex,
	}
}

func (d *PortAudioPeripheral) Configure(cfg peripheral.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if d.framesPerBuffer <= 0 {
		return fmt.Errorf("%w: %d frames per buffer", peripheral.ErrUnsupportedConfig, d.framesPerBuffer)
	}
	if d.stream != nil {
		if err := d.closeStream(); err != nil {
			return err
		}
	}
	if !d.initialized {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		d.initialized = true
	}

	numIn, numOut := 0, cfg.Channels
	if cfg.Direction == peripheral.Capture {
		numIn, numOut = cfg.Channels, 0
	}

	var buffer any
	d.buf16, d.buf32 = nil, nil
	if cfg.BitsPerSample == 16 {
		d.buf16 = make([]int16, d.framesPerBuffer*cfg.Channels)
		buffer = d.buf16
	} else {
		d.buf32 = make([]int32, d.framesPerBuffer*cfg.Channels)
		buffer = d.buf32
	}

	stream, err := d.openStream(numIn, numOut, cfg, buffer)
	if err != nil {
		d.logger.Error("failed to open portaudio stream", "err", err)
		return fmt.Errorf("failed to open %v stream: %w", cfg.Direction, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		d.logger.Error("failed to start portaudio stream", "err", err)
		return fmt.Errorf("failed to start %v stream: %w", cfg.Direction, err)
	}

	d.cfg = cfg
	d.stream = stream
	if info := stream.Info(); info != nil {
		d.latency = info.OutputLatency
	}

	d.logger.Debug(
		"initialized portaudio peripheral",
		"direction", cfg.Direction,
		"sampleRate", cfg.SampleRate,
		"bitsPerSample", cfg.BitsPerSample,
		"channels", cfg.Channels,
		"framesPerBuffer", d.framesPerBuffer,
		"latency", d.latency,
	)
	return nil
}

func (d *PortAudioPeripheral) openStream(numIn, numOut int, cfg peripheral.Config, buffer any) (*portaudio.Stream, error) {
	if d.deviceIndex < 0 {
		return portaudio.OpenDefaultStream(numIn, numOut, float64(cfg.SampleRate), d.framesPerBuffer, buffer)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list portaudio devices: %w", err)
	}
	var info *portaudio.DeviceInfo
	for _, candidate := range devices {
		if candidate.Index == d.deviceIndex {
			info = candidate
			break
		}
	}
	if info == nil {
		return nil, fmt.Errorf("%w: no portaudio device with index %d", peripheral.ErrUnsupportedConfig, d.deviceIndex)
	}

	var params portaudio.StreamParameters
	if cfg.Direction == peripheral.Capture {
		params = portaudio.LowLatencyParameters(info, nil)
		params.Input.Channels = numIn
	} else {
		params = portaudio.LowLatencyParameters(nil, info)
		params.Output.Channels = numOut
	}
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = d.framesPerBuffer
	return portaudio.OpenStream(params, buffer)
}

func (d *PortAudioPeripheral) bufferBytes() int {
	return d.framesPerBuffer * d.cfg.FrameSize()
}

func (d *PortAudioPeripheral) AvailableToWrite() (int, error) {
	if d.stream == nil {
		return 0, peripheral.ErrNotConfigured
	}
	if d.cfg.Direction != peripheral.Playback {
		return 0, peripheral.ErrWrongDirection
	}
	frames, err := d.stream.AvailableToWrite()
	if err != nil {
		return 0, err
	}
	return frames / d.framesPerBuffer * d.bufferBytes(), nil
}

func (d *PortAudioPeripheral) Write(p []byte) (int, error) {
	available, err := d.AvailableToWrite()
	if err != nil {
		return 0, err
	}
	size := d.bufferBytes()
	written := 0
	for len(p)-written >= size && available >= size {
		d.decode(p[written : written+size])
		if err := d.stream.Write(); err != nil {
			return written, fmt.Errorf("portaudio write: %w", err)
		}
		written += size
		available -= size
		d.lastWrite = time.Now()
	}
	return written, nil
}

func (d *PortAudioPeripheral) AvailableToRead() (int, error) {
	if d.stream == nil {
		return 0, peripheral.ErrNotConfigured
	}
	if d.cfg.Direction != peripheral.Capture {
		return 0, peripheral.ErrWrongDirection
	}
	frames, err := d.stream.AvailableToRead()
	if err != nil {
		return 0, err
	}
	return frames / d.framesPerBuffer * d.bufferBytes(), nil
}

func (d *PortAudioPeripheral) Read(p []byte) (int, error) {
	available, err := d.AvailableToRead()
	if err != nil {
		return 0, err
	}
	size := d.bufferBytes()
	read := 0
	for len(p)-read >= size && available >= size {
		if err := d.stream.Read(); err != nil {
			return read, fmt.Errorf("portaudio read: %w", err)
		}
		d.encode(p[read : read+size])
		read += size
		available -= size
	}
	return read, nil
}

// DrainComplete reports true once the host output latency plus one buffer
// has elapsed since the last write.
func (d *PortAudioPeripheral) DrainComplete() bool {
	if d.stream == nil || d.cfg.Direction != peripheral.Playback || d.lastWrite.IsZero() {
		return true
	}
	bufferDuration := time.Duration(d.framesPerBuffer) * time.Second / time.Duration(d.cfg.SampleRate)
	return time.Since(d.lastWrite) >= d.latency+bufferDuration
}

// decode unpacks little-endian PCM bytes into the PortAudio buffer.
// 24 bit samples are carried in the upper bits of an int32.
func (d *PortAudioPeripheral) decode(p []byte) {
	switch d.cfg.BitsPerSample {
	case 16:
		for i := range d.buf16 {
			d.buf16[i] = int16(binary.LittleEndian.Uint16(p[2*i:]))
		}
	case 24:
		for i := range d.buf32 {
			d.buf32[i] = int32(uint32(p[3*i])<<8 | uint32(p[3*i+1])<<16 | uint32(p[3*i+2])<<24)
		}
	case 32:
		for i := range d.buf32 {
			d.buf32[i] = int32(binary.LittleEndian.Uint32(p[4*i:]))
		}
	}
}

func (d *PortAudioPeripheral) encode(p []byte) {
	switch d.cfg.BitsPerSample {
	case 16:
		for i, v := range d.buf16 {
			binary.LittleEndian.PutUint16(p[2*i:], uint16(v))
		}
	case 24:
		for i, v := range d.buf32 {
			p[3*i] = byte(v >> 8)
			p[3*i+1] = byte(v >> 16)
			p[3*i+2] = byte(v >> 24)
		}
	case 32:
		for i, v := range d.buf32 {
			binary.LittleEndian.PutUint32(p[4*i:], uint32(v))
		}
	}
}

func (d *PortAudioPeripheral) closeStream() error {
	if err := d.stream.Stop(); err != nil {
		d.logger.Error("error stopping portaudio stream", "err", err)
	}
	err := d.stream.Close()
	d.stream = nil
	return err
}

func (d *PortAudioPeripheral) Close() error {
	d.logger.Debug("shutdown called")
	var err error
	if d.stream != nil {
		err = d.closeStream()
	}
	if d.initialized {
		if termErr := portaudio.Terminate(); termErr != nil && err == nil {
			err = termErr
		}
		d.initialized = false
	}
	return err
}
