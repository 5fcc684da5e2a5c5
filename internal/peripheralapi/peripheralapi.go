package peripheralapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
)

var (
	errNoDeviceWithID = errors.New("no peripheral with specified ID")
	errUnknownDriver  = errors.New("unknown peripheral driver")
)

type PeripheralInfo struct {
	// The ID of the peripheral
	//
	// Comes from the underlying driver (the I2S bus number, or the PortAudio
	// device index) and is the canonical way to ask the API for a peripheral.
	ID int

	// A human-readable name for the peripheral, if one exists.
	// Not necessary, and not canonical.
	Name string

	// Channels the peripheral can capture (microphones) and play
	// (DACs and amplifiers). Streams only use mono or stereo.
	MaxInputChannels  int
	MaxOutputChannels int

	// Sample rate the driver prefers, zero if it has no preference.
	DefaultSampleRate int
}

func (info PeripheralInfo) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "ID:                %d\n", info.ID)
	fmt.Fprintf(&sb, "Name:              %s\n", info.Name)
	fmt.Fprintf(&sb, "MaxInputChannels:  %d\n", info.MaxInputChannels)
	fmt.Fprintf(&sb, "MaxOutputChannels: %d\n", info.MaxOutputChannels)
	fmt.Fprintf(&sb, "DefaultSampleRate: %d\n", info.DefaultSampleRate)
	return sb.String()
}

// Define an API to find and bring up sample-clocked peripherals.
// Intended to be an abstract way to:
// - Query existing peripherals
// - Initialize one as a peripheral.Peripheral for a stream to Configure
//
// Implementations wrap a simulated I2S bus and PortAudio.
type PeripheralAPI interface {
	Peripherals() ([]PeripheralInfo, error)
	InitPeripheralFromID(PeripheralInfo) (peripheral.Peripheral, error)
	InitDefaultPeripheral() (peripheral.Peripheral, error)
}

// New returns the API for a driver name: "dummy" or "portaudio".
// framesPerBuffer sizes PortAudio host buffers and is ignored otherwise.
func New(driver string, framesPerBuffer int) (PeripheralAPI, error) {
	switch driver {
	case "dummy":
		return NewDummyPeripheralAPI(), nil
	case "portaudio":
		return NewPortAudioPeripheralAPI(framesPerBuffer), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownDriver, driver)
	}
}

// InitFromID finds the peripheral with the given ID, or the default one for
// a negative ID.
func InitFromID(api PeripheralAPI, id int) (peripheral.Peripheral, error) {
	if id < 0 {
		return api.InitDefaultPeripheral()
	}
	peripherals, err := api.Peripherals()
	if err != nil {
		return nil, err
	}
	for _, info := range peripherals {
		if info.ID == id {
			return api.InitPeripheralFromID(info)
		}
	}
	return nil, fmt.Errorf("%w: %d", errNoDeviceWithID, id)
}
