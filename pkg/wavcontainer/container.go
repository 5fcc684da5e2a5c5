package wavcontainer

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	// FormatPCM is the WAVE format tag for uncompressed linear PCM.
	FormatPCM uint16 = 1

	// CanonicalHeaderSize is the size of the RIFF + fmt + data headers
	// emitted by WriteHeader.
	CanonicalHeaderSize = 44

	// MaxDataLength is the largest data chunk a canonical header can describe.
	MaxDataLength = math.MaxUint32 - (CanonicalHeaderSize - 8)

	pcmFmtChunkSize = 16
)

var (
	riffChunkToken = [4]byte{'R', 'I', 'F', 'F'}
	waveFormatType = [4]byte{'W', 'A', 'V', 'E'}
	fmtChunkToken  = [4]byte{'f', 'm', 't', ' '}
	dataChunkToken = [4]byte{'d', 'a', 't', 'a'}
)

// Container describes a linear PCM WAV file: the fmt chunk fields and where
// the sample data lives. A Container is immutable once built by Parse or New.
type Container struct {
	FormatTag     uint16
	Channels      int
	SampleRate    int
	ByteRate      int
	BlockAlign    int
	BitsPerSample int

	// Absolute offset of the first sample byte and the length of the data chunk.
	DataOffset int64
	DataLength int64
}

// New builds the Container for a PCM stream that has not been written yet,
// as used when recording. The data chunk starts right after a canonical header.
func New(sampleRate, bitsPerSample, channels int) (Container, error) {
	c := Container{
		FormatTag:     FormatPCM,
		Channels:      channels,
		SampleRate:    sampleRate,
		BitsPerSample: bitsPerSample,
		BlockAlign:    channels * bitsPerSample / 8,
		DataOffset:    CanonicalHeaderSize,
	}
	c.ByteRate = c.SampleRate * c.BlockAlign
	if err := c.validate(0); err != nil {
		return Container{}, err
	}
	return c, nil
}

// FrameSize is the number of bytes in one sample period across all channels.
func (c Container) FrameSize() int {
	return c.BlockAlign
}

// BytesPerSample is the size of a single channel sample.
func (c Container) BytesPerSample() int {
	return c.BitsPerSample / 8
}

// Frames is the number of whole frames in the data chunk.
func (c Container) Frames() int64 {
	if c.BlockAlign == 0 {
		return 0
	}
	return c.DataLength / int64(c.BlockAlign)
}

// AlignedDataLength is DataLength with any trailing partial frame removed.
func (c Container) AlignedDataLength() int64 {
	return c.Frames() * int64(c.BlockAlign)
}

func (c Container) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// WithDataLength returns a copy of c describing n bytes of sample data.
func (c Container) WithDataLength(n int64) Container {
	c.DataLength = n
	return c
}

func (c Container) String() string {
	return fmt.Sprintf("PCM %d Hz, %d bit, %d ch, %d bytes at %d",
		c.SampleRate, c.BitsPerSample, c.Channels, c.DataLength, c.DataOffset)
}

func (c Container) validate(offset int64) error {
	if c.FormatTag != FormatPCM {
		return unsupported(offset, "format tag 0x%04x is not linear PCM", c.FormatTag)
	}
	switch c.BitsPerSample {
	case 16, 24, 32:
	default:
		return unsupported(offset, "%d bits per sample", c.BitsPerSample)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return unsupported(offset, "%d channels", c.Channels)
	}
	if c.SampleRate <= 0 {
		return malformed(offset, "sample rate %d", c.SampleRate)
	}
	if want := c.Channels * c.BitsPerSample / 8; c.BlockAlign != want {
		return malformed(offset, "block align %d, expected %d", c.BlockAlign, want)
	}
	if want := c.SampleRate * c.BlockAlign; c.ByteRate != want {
		return malformed(offset, "byte rate %d, expected %d", c.ByteRate, want)
	}
	return nil
}

// Header returns the canonical 44-byte header describing c.
func (c Container) Header() [CanonicalHeaderSize]byte {
	var header [CanonicalHeaderSize]byte
	dataSize := uint32(min(c.DataLength, MaxDataLength))

	copy(header[0:4], riffChunkToken[:])
	binary.LittleEndian.PutUint32(header[4:8], CanonicalHeaderSize-8+dataSize)
	copy(header[8:12], waveFormatType[:])

	copy(header[12:16], fmtChunkToken[:])
	binary.LittleEndian.PutUint32(header[16:20], pcmFmtChunkSize)
	binary.LittleEndian.PutUint16(header[20:22], c.FormatTag)
	binary.LittleEndian.PutUint16(header[22:24], uint16(c.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(c.ByteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(c.BlockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(c.BitsPerSample))

	copy(header[36:40], dataChunkToken[:])
	binary.LittleEndian.PutUint32(header[40:44], dataSize)
	return header
}
