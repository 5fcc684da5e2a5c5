package peripheralapi

import (
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/peripheral/device"
)

// A dummy API that lists a single simulated I2S bus, able to play and
// capture in stereo. Played samples go nowhere unless a tap is given;
// captured samples come from the generator, or are silence.
//
// Intended for hosts without audio hardware, and testing.
type DummyPeripheralAPI struct {
	opts []device.SimulatedOption
}

func NewDummyPeripheralAPI(opts ...device.SimulatedOption) DummyPeripheralAPI {
	return DummyPeripheralAPI{
		opts: opts,
	}
}

func (api DummyPeripheralAPI) Peripherals() ([]PeripheralInfo, error) {
	return []PeripheralInfo{
		{
			ID:                0,
			Name:              "SimulatedI2S",
			MaxInputChannels:  2,
			MaxOutputChannels: 2,
		},
	}, nil
}

func (api DummyPeripheralAPI) InitPeripheralFromID(info PeripheralInfo) (peripheral.Peripheral, error) {
	if info.ID != 0 {
		return nil, errNoDeviceWithID
	}
	return device.NewSimulatedPeripheral(api.opts...), nil
}

func (api DummyPeripheralAPI) InitDefaultPeripheral() (peripheral.Peripheral, error) {
	return device.NewSimulatedPeripheral(api.opts...), nil
}
