package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// Config holds the application configuration. Attention!
// To make it possible to overwrite fields with the -overwrite command
// line option each of the struct fields must be in the format
// first letter uppercase -> followed by CamelCase as in the config file.
// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Gpio      GpioConfig      `yaml:"gpio"`
	RTC       RTCConfig       `yaml:"rtc"`
	Clock     ClockConfig     `yaml:"clock"`
	Flag      FlagConfig      `yaml:"-"`
	Debug     DebugConfig     `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Version    bool
	LogLevel   string
	ConfigFile string
}

// GpioConfig defines the receiver and indicator lines of the clock hardware
type GpioConfig struct {
	// Device is the gpio character device, empty selects the first chip
	Device string `yaml:"device"`
	// Receiver is the BCM number of the line the receiver module drives
	Receiver int `yaml:"receiver"`
	// Termination is the bias of the receiver line (pullup|pulldown|none)
	Termination string `yaml:"termination"`
	// Inverted is set if the receiver module pulls the line low on a pulse
	Inverted bool `yaml:"inverted"`
	// Indicator is the BCM number of the line mirroring decoded pulses,
	// -1 disables the indicator
	Indicator int `yaml:"indicator"`
}

// RTCConfig defines the battery backed clock module (ds3231|system)
type RTCConfig struct {
	Device  string `yaml:"device"`
	Bus     string `yaml:"bus"`
	Address int    `yaml:"address"`
}

// ClockConfig defines the timing of the tick cascade and the service loop
type ClockConfig struct {
	BaseInt int           `yaml:"base"`
	Base    time.Duration `yaml:"-"`
	StepInt int           `yaml:"step"`
	Step    time.Duration `yaml:"-"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		Gpio: GpioConfig{
			Receiver:    17,
			Termination: "pullup",
			Inverted:    true,
			Indicator:   -1,
		},
		RTC: RTCConfig{
			Device:  "ds3231",
			Address: 0x68,
		},
		Clock: ClockConfig{
			BaseInt: 1,
			StepInt: 50,
		},
		Flag: FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"time":    true,
				"status":  true,
				"metrics": true,
			},
		},
		MQTT: MQTTConfig{
			Connection: "tcp://127.0.0.1:1883",
			Topic:      "wclock",
		},
	}
}

func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.LogLevel != "" {
		c.Debug.FlagString = c.Flag.LogLevel
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.Clock.Base = time.Duration(c.Clock.BaseInt) * time.Millisecond
	c.Clock.Step = time.Duration(c.Clock.StepInt) * time.Millisecond

	return nil
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
