package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "dummy", cfg.Peripheral.Driver)
	assert.Equal(t, 10000, cfg.Stream.BufferSize)
	assert.Equal(t, 10*time.Millisecond, cfg.Stream.TickInterval)
	assert.Equal(t, int64(10*22050*2), cfg.Capture.MaxDataBytes())
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadConfigFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
loglevel: debug
peripheral:
  id: 0
  sck: "32"
  ws: "25"
  sd: "33"
  ibuf: 20000
stream:
  buffersize: 4096
  loop: true
nats:
  url: nats://localhost:4222
`), 0o644))

	cfg := LoadConfig(path)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Stream.Loop)
	assert.Equal(t, 4096, cfg.Stream.BufferSize)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)

	board := cfg.Peripheral.Board()
	assert.Equal(t, "32", board.Pins.SCK)
	assert.Equal(t, "33", board.Pins.SD)
	assert.Equal(t, 20000, board.BufferBytes)
}

func TestLoadConfigPanicsOnInvalidValues(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stream:\n  buffersize: 0\n"), 0o644))
	assert.Panics(t, func() { LoadConfig(path) })
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream.buffersize")
	assert.Contains(t, err.Error(), "stream.tickinterval")
	assert.Contains(t, err.Error(), "peripheral.ibuf")
}
