package utils

import "github.com/spf13/viper"

// Set the viper defaults shared by every binary.
// For use in cmd/config, as well as the examples.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")

	viper.SetDefault("storage.root", "sd")

	viper.SetDefault("peripheral.driver", "dummy")
	viper.SetDefault("peripheral.id", -1)
	viper.SetDefault("peripheral.sck", "")
	viper.SetDefault("peripheral.ws", "")
	viper.SetDefault("peripheral.sd", "")
	viper.SetDefault("peripheral.ibuf", 40000)
	viper.SetDefault("peripheral.framesperbuffer", 512)

	viper.SetDefault("stream.buffersize", 10000)
	viper.SetDefault("stream.tickinterval", "10ms")
	viper.SetDefault("stream.loop", false)

	viper.SetDefault("capture.samplerate", 22050)
	viper.SetDefault("capture.bits", 16)
	viper.SetDefault("capture.channels", 1)
	viper.SetDefault("capture.seconds", 10)
	viper.SetDefault("capture.shift", 0)

	viper.SetDefault("nats.url", "")
	viper.SetDefault("nats.subject", "i2sstream")
	viper.SetDefault("nats.statusinterval", "1s")
}
