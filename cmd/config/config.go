package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/internal/utils"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/spf13/viper"
)

type PeripheralConfig struct {
	// "dummy" (simulated I2S bus) or "portaudio"
	Driver string `mapstructure:"driver"`
	// Bus or host device to use, negative for the default
	ID int `mapstructure:"id"`

	SCK             string `mapstructure:"sck"`
	WS              string `mapstructure:"ws"`
	SD              string `mapstructure:"sd"`
	IBuf            int    `mapstructure:"ibuf"`
	FramesPerBuffer int    `mapstructure:"framesperbuffer"`
}

// Board builds the peripheral configuration for one stream. The sample
// format fields are filled in when the stream opens.
func (c PeripheralConfig) Board() peripheral.Config {
	return peripheral.Config{
		ID:          max(c.ID, 0),
		Pins:        peripheral.Pins{SCK: c.SCK, WS: c.WS, SD: c.SD},
		BufferBytes: c.IBuf,
	}
}

type StreamConfig struct {
	BufferSize   int           `mapstructure:"buffersize"`
	TickInterval time.Duration `mapstructure:"tickinterval"`
	Loop         bool          `mapstructure:"loop"`
}

type CaptureConfig struct {
	SampleRate int `mapstructure:"samplerate"`
	Bits       int `mapstructure:"bits"`
	Channels   int `mapstructure:"channels"`
	// Recording length, zero to record until interrupted
	Seconds int `mapstructure:"seconds"`
	Shift   int `mapstructure:"shift"`
}

// MaxDataBytes is the recording length in bytes, zero for unbounded.
func (c CaptureConfig) MaxDataBytes() int64 {
	return int64(c.Seconds) * int64(c.SampleRate) * int64(c.Channels*c.Bits/8)
}

type NATSConfig struct {
	// Empty disables remote control
	URL            string        `mapstructure:"url"`
	Subject        string        `mapstructure:"subject"`
	StatusInterval time.Duration `mapstructure:"statusinterval"`
}

type Config struct {
	LogLevel string `mapstructure:"loglevel"`
	LogFile  string `mapstructure:"logfile"`

	Storage struct {
		Root string `mapstructure:"root"`
	} `mapstructure:"storage"`

	Peripheral PeripheralConfig `mapstructure:"peripheral"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	NATS       NATSConfig       `mapstructure:"nats"`
}

func (c Config) Validate() error {
	var errs []error
	if c.Stream.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("stream.buffersize must be positive, got %d", c.Stream.BufferSize))
	}
	if c.Stream.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("stream.tickinterval must be positive, got %v", c.Stream.TickInterval))
	}
	if c.Peripheral.IBuf <= 0 {
		errs = append(errs, fmt.Errorf("peripheral.ibuf must be positive, got %d", c.Peripheral.IBuf))
	}
	if c.Capture.Seconds < 0 {
		errs = append(errs, fmt.Errorf("capture.seconds must not be negative, got %d", c.Capture.Seconds))
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		errs = append(errs, errors.New("nats.subject must be set when nats.url is"))
	}
	return errors.Join(errs...)
}

// Read the config file (if one exists) over the defaults and decode it.
// Command line flags bound to viper before the call take precedence.
func LoadConfig(configFilePath string) Config {
	utils.SetViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found", "configFilePath", configFilePath)
		} else {
			slog.Error("error during config read", "err", err)
			panic(err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("error during config decode", "err", err)
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		panic(err)
	}
	return cfg
}
