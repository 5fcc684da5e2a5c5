package tone

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const DefaultVolumeReduction = 32

var ErrInvalidTone = errors.New("invalid tone")

// Tone is a pure sine tone in a PCM format an I2S DAC accepts.
type Tone struct {
	Frequency     int
	SampleRate    int
	BitsPerSample int
	Channels      int

	// Peak amplitude is full scale divided by this. Zero means
	// DefaultVolumeReduction.
	VolumeReduction int
}

func (t Tone) Validate() error {
	if t.Frequency <= 0 || t.SampleRate <= 0 {
		return fmt.Errorf("%w: %d Hz at %d samples per second", ErrInvalidTone, t.Frequency, t.SampleRate)
	}
	if t.SampleRate/t.Frequency < 2 {
		return fmt.Errorf("%w: %d Hz is above the Nyquist frequency of %d Hz", ErrInvalidTone, t.Frequency, t.SampleRate/2)
	}
	switch t.BitsPerSample {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d bits per sample", ErrInvalidTone, t.BitsPerSample)
	}
	if t.Channels != 1 && t.Channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrInvalidTone, t.Channels)
	}
	if t.VolumeReduction < 0 {
		return fmt.Errorf("%w: volume reduction %d", ErrInvalidTone, t.VolumeReduction)
	}
	return nil
}

func (t Tone) amplitude() int {
	reduction := t.VolumeReduction
	if reduction == 0 {
		reduction = DefaultVolumeReduction
	}
	return (1 << (t.BitsPerSample - 1)) / reduction
}

// SamplesPerCycle is the whole number of frames in one period. The tone is
// rounded to the nearest frequency with a whole period.
func (t Tone) SamplesPerCycle() int {
	return t.SampleRate / t.Frequency
}

// Cycle returns one period of interleaved samples, the same value on every
// channel.
func (t Tone) Cycle() []int {
	perCycle := t.SamplesPerCycle()
	amplitude := float64(t.amplitude() - 1)
	samples := make([]int, 0, perCycle*t.Channels)
	for i := range perCycle {
		v := int(amplitude * math.Sin(2*math.Pi*float64(i)/float64(perCycle)))
		for range t.Channels {
			samples = append(samples, v)
		}
	}
	return samples
}

// PCM returns one period as little-endian bytes, ready to write to a
// peripheral over and over.
func (t Tone) PCM() []byte {
	width := t.BitsPerSample / 8
	cycle := t.Cycle()
	buf := make([]byte, len(cycle)*width)
	for i, v := range cycle {
		switch width {
		case 2:
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v)))
		case 3:
			buf[i*3] = byte(v)
			buf[i*3+1] = byte(v >> 8)
			buf[i*3+2] = byte(v >> 16)
		case 4:
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(int32(v)))
		}
	}
	return buf
}

// WriteWAV writes whole periods of t covering at least duration to w as a
// PCM WAV file.
func WriteWAV(w io.WriteSeeker, t Tone, duration time.Duration) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if duration <= 0 {
		return fmt.Errorf("%w: duration %v", ErrInvalidTone, duration)
	}

	cycle := t.Cycle()
	perCycle := t.SamplesPerCycle()
	frames := int64(math.Ceil(duration.Seconds() * float64(t.SampleRate)))
	cycles := int((frames + int64(perCycle) - 1) / int64(perCycle))

	encoder := wav.NewEncoder(w, t.SampleRate, t.BitsPerSample, t.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			SampleRate:  t.SampleRate,
			NumChannels: t.Channels,
		},
		Data:           cycle,
		SourceBitDepth: t.BitsPerSample,
	}
	for range cycles {
		if err := encoder.Write(buf); err != nil {
			return fmt.Errorf("could not write tone: %w", err)
		}
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("could not finish tone file: %w", err)
	}
	return nil
}
