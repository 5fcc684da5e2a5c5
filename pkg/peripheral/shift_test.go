package peripheral

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShift16(t *testing.T) {
	buf := make([]byte, 6)
	for i, v := range []int16{100, -100, 0x2000} {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}

	require.NoError(t, Shift(buf, 16, 1))
	assert.Equal(t, int16(200), int16(binary.LittleEndian.Uint16(buf[0:])))
	assert.Equal(t, int16(-200), int16(binary.LittleEndian.Uint16(buf[2:])))
	assert.Equal(t, int16(0x4000), int16(binary.LittleEndian.Uint16(buf[4:])))

	require.NoError(t, Shift(buf, 16, -2))
	assert.Equal(t, int16(50), int16(binary.LittleEndian.Uint16(buf[0:])))
	assert.Equal(t, int16(-50), int16(binary.LittleEndian.Uint16(buf[2:])))
}

func TestShift24SignExtends(t *testing.T) {
	// -4 as 24-bit little endian, then 6
	buf := []byte{0xFC, 0xFF, 0xFF, 0x06, 0x00, 0x00}

	require.NoError(t, Shift(buf, 24, -1))
	assert.Equal(t, []byte{0xFE, 0xFF, 0xFF, 0x03, 0x00, 0x00}, buf)

	require.NoError(t, Shift(buf, 24, 2))
	assert.Equal(t, []byte{0xF8, 0xFF, 0xFF, 0x0C, 0x00, 0x00}, buf)
}

func TestShift32(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(0xFFFFFF00)) // -256

	require.NoError(t, Shift(buf, 32, -4))
	assert.Equal(t, int32(-16), int32(binary.LittleEndian.Uint32(buf)))
}

func TestShiftRejectsPartialSamples(t *testing.T) {
	assert.ErrorIs(t, Shift(make([]byte, 3), 16, 1), ErrUnsupportedConfig)
	assert.ErrorIs(t, Shift(make([]byte, 2), 8, 1), ErrUnsupportedConfig)
	assert.NoError(t, Shift(make([]byte, 3), 16, 0), "zero shift is a no-op")
}

func TestConfigValidate(t *testing.T) {
	good := Config{SampleRate: 16000, BitsPerSample: 16, Channels: 2, BufferBytes: 4000}
	require.NoError(t, good.Validate())
	assert.Equal(t, 4, good.FrameSize())
	assert.Equal(t, 64000, good.ByteRate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bits", func(c *Config) { c.BitsPerSample = 12 }},
		{"channels", func(c *Config) { c.Channels = 0 }},
		{"rate", func(c *Config) { c.SampleRate = -1 }},
		{"buffer", func(c *Config) { c.BufferBytes = 2 }},
		{"direction", func(c *Config) { c.Direction = Direction(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := good
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrUnsupportedConfig)
		})
	}
}
