// Package config loads the daemon's configuration from the environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"
)

// DefaultModelID is the Plug and Play model the device advertises.
const DefaultModelID = "dtmi:com:example:azurertos:gsg;1"

// Config holds the daemon configuration.
//
// Credentials come from the environment, e.g.
//
//	IOTHUB_HOSTNAME=myhub.azure-devices.net IOT_DEVICE_ID=devkit-01 IOT_PRIMARY_KEY=...
type Config struct {
	Hostname   string `env:"IOTHUB_HOSTNAME,required" description:"IoT Hub host name"`
	DeviceID   string `env:"IOT_DEVICE_ID,required" description:"device identity registered in the hub"`
	PrimaryKey string `env:"IOT_PRIMARY_KEY,required" description:"base64 device symmetric key"`
	ModelID    string `env:"IOT_MODEL_ID,default=dtmi:com:example:azurertos:gsg;1" description:"model identifier advertised on connect"`

	TelemetryInterval int32 `env:"TELEMETRY_INTERVAL,default=10" description:"initial telemetry period in seconds"`

	LEDChip string `env:"LED_CHIP,default=gpiochip0" description:"GPIO chip of the status LED"`
	LEDLine int    `env:"LED_LINE,default=13" description:"GPIO line offset of the status LED"`
	IIORoot string `env:"IIO_ROOT,default=/sys/bus/iio/devices" description:"sysfs root of IIO sensors"`

	LogLevel string `env:"LOG_LEVEL,default=info" description:"logrus level"`
}

var (
	// ErrInvalidKey is returned when the device key is not base64.
	ErrInvalidKey = errors.New("config: IOT_PRIMARY_KEY is not valid base64")

	// ErrInvalidInterval is returned for a non-positive telemetry interval.
	ErrInvalidInterval = errors.New("config: TELEMETRY_INTERVAL must be positive")
)

// Load decodes the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values envdecode cannot.
func (c *Config) Validate() error {
	if _, err := base64.StdEncoding.DecodeString(c.PrimaryKey); err != nil {
		return ErrInvalidKey
	}
	if c.TelemetryInterval < 1 {
		return ErrInvalidInterval
	}
	if strings.Contains(c.DeviceID, "/") {
		return fmt.Errorf("config: IOT_DEVICE_ID %q must not contain '/'", c.DeviceID)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return nil
}

// InitLogger sets up the text formatter with full timestamps for all log
// statements and applies level. An unknown level falls back to info.
func InitLogger(level string) {
	formatter := new(logrus.TextFormatter)
	formatter.TimestampFormat = "2006-01-02 15:04:05"
	formatter.FullTimestamp = true
	logrus.SetFormatter(formatter)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithError(err).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
