package utils

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureDefaultLoggerLevels(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	for _, level := range []string{"none", "error", "warn", "info", "debug"} {
		f, err := ConfigureDefaultLogger(level, "", slog.HandlerOptions{})
		require.NoError(t, err, level)
		assert.Nil(t, f)
	}

	_, err := ConfigureDefaultLogger("loud", "", slog.HandlerOptions{})
	assert.Error(t, err)
}

func TestConfigureDefaultLoggerReturnsLogFile(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	path := filepath.Join(t.TempDir(), "stream.log")

	f, err := ConfigureDefaultLogger("debug", path, slog.HandlerOptions{})
	require.NoError(t, err)
	require.NotNil(t, f)

	slog.Debug("hello", "bytesTransferred", 176400)
	require.NoError(t, f.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"bytesTransferred":176400`)
}

func TestSetViperDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetViperDefaults()
	assert.Equal(t, "dummy", viper.GetString("peripheral.driver"))
	assert.Equal(t, 10000, viper.GetInt("stream.buffersize"))
	assert.Equal(t, "10ms", viper.GetDuration("stream.tickinterval").String())
}
