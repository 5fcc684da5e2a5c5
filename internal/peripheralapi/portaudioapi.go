package peripheralapi

import (
	"fmt"
	"log/slog"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral/device"
	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
)

type PortAudioPeripheralAPI struct {
	logger          *slog.Logger
	framesPerBuffer int
}

// Create a new PortAudioPeripheralAPI, with a framesPerBuffer to be given to
// all created peripherals
func NewPortAudioPeripheralAPI(framesPerBuffer int) *PortAudioPeripheralAPI {
	uuid := uuid.New()
	logger := slog.Default().With(
		"portaudio api uuid", uuid,
	)
	return &PortAudioPeripheralAPI{
		logger:          logger,
		framesPerBuffer: framesPerBuffer,
	}
}

// Lists every PortAudio device with at least one input or output channel.
func (api *PortAudioPeripheralAPI) Peripherals() ([]PeripheralInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		api.logger.Error("failed to initialize portaudio", "err", err)
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		api.logger.Error("failed to list devices", "err", err)
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	peripherals := make([]PeripheralInfo, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels == 0 && d.MaxOutputChannels == 0 {
			continue
		}
		peripherals = append(peripherals, PeripheralInfo{
			ID:                d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: int(d.DefaultSampleRate),
		})
	}
	return peripherals, nil
}

func (api *PortAudioPeripheralAPI) InitPeripheralFromID(info PeripheralInfo) (peripheral.Peripheral, error) {
	return device.NewPortAudioPeripheralOnDevice(api.framesPerBuffer, info.ID), nil
}

func (api *PortAudioPeripheralAPI) InitDefaultPeripheral() (peripheral.Peripheral, error) {
	return device.NewPortAudioPeripheral(api.framesPerBuffer), nil
}
