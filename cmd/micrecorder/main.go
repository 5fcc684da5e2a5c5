package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/cmd/config"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/internal/peripheralapi"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/internal/remote"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/internal/runner"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/internal/utils"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/storage"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/stream"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Record a microphone on a peripheral into a WAV file below the storage
// root, for capture.seconds or until interrupted.
//
//	micrecorder --configFilePath config.yaml [--seconds 10] mic.wav
func main() {
	configFilePath := pflag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	pflag.Int("seconds", 10, "Recording length, 0 to record until interrupted.")
	pflag.Int("shift", 0, "Bit shift applied to every captured sample.")
	pflag.String("loglevel", "info", "One of none, error, warn, info, debug.")
	pflag.Parse()
	viper.BindPFlag("capture.seconds", pflag.Lookup("seconds"))
	viper.BindPFlag("capture.shift", pflag.Lookup("shift"))
	viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))

	cfg := config.LoadConfig(*configFilePath)
	logFilePointer, err := utils.ConfigureDefaultLogger(cfg.LogLevel, cfg.LogFile, slog.HandlerOptions{})
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	fileName := "mic.wav"
	if pflag.NArg() > 0 {
		fileName = pflag.Arg(0)
	}

	// --------------------------------------------------------------------------------

	api, err := peripheralapi.New(cfg.Peripheral.Driver, cfg.Peripheral.FramesPerBuffer)
	if err != nil {
		slog.Error("could not create peripheral api", "err", err)
		panic(err)
	}
	p, err := peripheralapi.InitFromID(api, cfg.Peripheral.ID)
	if err != nil {
		slog.Error("could not initialize peripheral", "id", cfg.Peripheral.ID, "err", err)
		panic(err)
	}

	ctrl, err := stream.Open(storage.NewOs(cfg.Storage.Root), p, stream.Spec{
		Name:       fileName,
		Direction:  peripheral.Capture,
		BufferSize: cfg.Stream.BufferSize,
		Peripheral: cfg.Peripheral.Board(),
		Format: stream.Format{
			SampleRate:    cfg.Capture.SampleRate,
			BitsPerSample: cfg.Capture.Bits,
			Channels:      cfg.Capture.Channels,
		},
		MaxDataBytes: cfg.Capture.MaxDataBytes(),
		Shift:        cfg.Capture.Shift,
	})
	if err != nil {
		slog.Error("could not open stream", "file", fileName, "err", err)
		p.Close()
		os.Exit(1)
	}

	// --------------------------------------------------------------------------------

	opts := runner.Options{TickInterval: cfg.Stream.TickInterval}
	if cfg.NATS.URL != "" {
		conn, err := remote.Connect(cfg.NATS.URL, 5, 2*time.Second)
		if err != nil {
			slog.Error("remote control unavailable", "err", err)
		} else {
			opts.Conn = conn
			opts.Subject = cfg.NATS.Subject
			opts.StatusInterval = cfg.NATS.StatusInterval
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("recording", "file", fileName, "format", ctrl.Container().String(), "seconds", cfg.Capture.Seconds, "streamID", ctrl.ID())
	status, err := runner.Run(ctx, ctrl, opts)
	if err != nil {
		slog.Error("recording failed", "err", err, "status", status)
		os.Exit(1)
	}
	slog.Info("recording saved", "file", fileName, "bytes", status.BytesStored, "overruns", status.OverrunCount)
}
