package main

import (
	"context"
	"fmt"
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

// Play a WAV file from the storage root through a peripheral, or list the
// WAV files there when no file is given.
//
//	wavplayer --configFilePath config.yaml [--loop] music-16k-16bits-mono.wav
func main() {
	configFilePath := pflag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	pflag.Bool("loop", false, "Restart from the first sample at the end of the file.")
	pflag.String("loglevel", "info", "One of none, error, warn, info, debug.")
	pflag.Parse()
	viper.BindPFlag("stream.loop", pflag.Lookup("loop"))
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

	store := storage.NewOs(cfg.Storage.Root)
	if pflag.NArg() == 0 {
		names, err := store.ListWAV()
		if err != nil {
			slog.Error("could not list storage root", "root", cfg.Storage.Root, "err", err)
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}
	if pflag.NArg() != 1 {
		slog.Error("expected exactly one WAV file to play", "args", pflag.Args())
		os.Exit(2)
	}
	fileName := pflag.Arg(0)

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

	ctrl, err := stream.Open(store, p, stream.Spec{
		Name:       fileName,
		Direction:  peripheral.Playback,
		BufferSize: cfg.Stream.BufferSize,
		Peripheral: cfg.Peripheral.Board(),
		Loop:       cfg.Stream.Loop,
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

	slog.Info("playing", "file", fileName, "format", ctrl.Container().String(), "streamID", ctrl.ID())
	status, err := runner.Run(ctx, ctrl, opts)
	if err != nil {
		slog.Error("playback failed", "err", err, "status", status)
		os.Exit(1)
	}
}
