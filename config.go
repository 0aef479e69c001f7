package main

import (
	"time"

	"github.com/horgh/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Config holds a server's configuration.
type Config struct {
	// Host and port to listen on. These come from the command line, never
	// from the config file.
	ListenHost string
	ListenPort string

	// MOTD is sent privately to each client at admission, before its join
	// announcement. Blank disables it.
	MOTD string

	LogLevel  string
	LogFormat string

	// How long a client write may block before the client is dropped.
	WriteWait time.Duration

	// Address for the metrics and health HTTP listener. Blank disables it.
	MetricsListen string
}

// defaultConfig returns the configuration used when no config file is
// given. Every key in the file is optional and overrides one of these.
func defaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "json",
		WriteWait: 10 * time.Second,
	}
}

// checkAndParseConfig loads the optional config file and checks the values
// are in an acceptable format.
//
// We parse some values into alternate representations.
func checkAndParseConfig(file string) (Config, error) {
	cfg := defaultConfig()

	if file == "" {
		return cfg, nil
	}

	configMap, err := config.ReadStringMap(file)
	if err != nil {
		return Config{}, err
	}

	knownKeys := []string{
		"motd",
		"log-level",
		"log-format",
		"write-wait",
		"metrics-listen",
	}

	for key := range configMap {
		known := false
		for _, k := range knownKeys {
			if key == k {
				known = true
				break
			}
		}
		if !known {
			return Config{}, errors.Errorf("unknown config key: %s", key)
		}
	}

	if v, exists := configMap["motd"]; exists {
		cfg.MOTD = v
	}

	if v, exists := configMap["log-level"]; exists {
		if _, err := zerolog.ParseLevel(v); err != nil {
			return Config{}, errors.Wrap(err, "log level is invalid")
		}
		cfg.LogLevel = v
	}

	if v, exists := configMap["log-format"]; exists {
		if v != "json" && v != "console" {
			return Config{}, errors.Errorf(
				"log format must be json or console: %s", v)
		}
		cfg.LogFormat = v
	}

	if v, exists := configMap["write-wait"]; exists {
		cfg.WriteWait, err = time.ParseDuration(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "write wait is in invalid format")
		}
	}

	if v, exists := configMap["metrics-listen"]; exists {
		cfg.MetricsListen = v
	}

	return cfg, nil
}
