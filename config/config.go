// Package config loads the yaml configuration and sets up logging.
package config

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"
)

// Config carries the tunables of the link stack.
type Config struct {
	Verbosity           string        `yaml:"verbosity"`            // log verbosity
	ExchangeTimeout     time.Duration `yaml:"exchange_timeout"`     // hard per-exchange timeout
	UnresponsiveTimeout time.Duration `yaml:"unresponsive_timeout"` // observational timeout
	BridgeURL           string        `yaml:"bridge_url"`           // websocket APDU bridge, empty = local USB
	USB_ID              string        `yaml:"usb_id"`               // pin a specific device, empty = first found
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Verbosity:           "info",
		ExchangeTimeout:     30 * time.Second,
		UnresponsiveTimeout: 15 * time.Second,
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitLogger applies the configured verbosity to the global logger.
func (c *Config) InitLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch c.Verbosity {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
