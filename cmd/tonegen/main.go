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
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/internal/runner"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/internal/utils"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/storage"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/stream"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/tone"
	"github.com/spf13/pflag"
)

// Write a pure tone to a WAV file below the storage root and, with --play,
// play it in a loop until interrupted.
//
//	tonegen --frequency 440 --rate 22050 --play tone.wav
func main() {
	configFilePath := pflag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	frequency := pflag.Int("frequency", 440, "Tone frequency in Hz.")
	sampleRate := pflag.Int("rate", 22050, "Sample rate in Hz.")
	bits := pflag.Int("bits", 16, "Bits per sample: 16, 24 or 32.")
	channels := pflag.Int("channels", 1, "1 for mono, 2 for stereo.")
	volumeReduction := pflag.Int("volumeReduction", tone.DefaultVolumeReduction, "Divide full scale by this.")
	duration := pflag.Duration("duration", time.Second, "Length of the file.")
	play := pflag.Bool("play", false, "Play the tone in a loop once written.")
	pflag.Parse()

	cfg := config.LoadConfig(*configFilePath)
	logFilePointer, err := utils.ConfigureDefaultLogger(cfg.LogLevel, cfg.LogFile, slog.HandlerOptions{})
	if err != nil {
		slog.Error("error while configuring default logger", "err", err)
		panic(err)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	fileName := "tone.wav"
	if pflag.NArg() > 0 {
		fileName = pflag.Arg(0)
	}

	// --------------------------------------------------------------------------------

	t := tone.Tone{
		Frequency:       *frequency,
		SampleRate:      *sampleRate,
		BitsPerSample:   *bits,
		Channels:        *channels,
		VolumeReduction: *volumeReduction,
	}
	store := storage.NewOs(cfg.Storage.Root)
	f, err := store.Create(fileName)
	if err != nil {
		slog.Error("could not create tone file", "file", fileName, "err", err)
		os.Exit(1)
	}
	if err := tone.WriteWAV(f, t, *duration); err != nil {
		f.Close()
		slog.Error("could not write tone", "file", fileName, "err", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		slog.Error("could not close tone file", "file", fileName, "err", err)
		os.Exit(1)
	}
	slog.Info("wrote tone", "file", fileName, "frequency", t.Frequency, "samplesPerCycle", t.SamplesPerCycle())

	if !*play {
		return
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

	ctrl, err := stream.Open(store, p, stream.Spec{
		Name:       fileName,
		Direction:  peripheral.Playback,
		BufferSize: cfg.Stream.BufferSize,
		Peripheral: cfg.Peripheral.Board(),
		Loop:       true,
	})
	if err != nil {
		slog.Error("could not open stream", "file", fileName, "err", err)
		p.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := runner.Run(ctx, ctrl, runner.Options{TickInterval: cfg.Stream.TickInterval}); err != nil {
		slog.Error("playback failed", "err", err)
		os.Exit(1)
	}
}
