package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// settings holds every tunable the config file, environment and flags can
// set. Zero values defer to the client's own defaults.
type settings struct {
	Proxy            string        `mapstructure:"proxy"`
	LogLevel         string        `mapstructure:"log_level"`
	Locale           string        `mapstructure:"locale"`
	ClientOrder      []string      `mapstructure:"client_order"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	StallTimeout     time.Duration `mapstructure:"stall_timeout"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	MaxRetries       int           `mapstructure:"max_retries"`
	ExpiryMargin     time.Duration `mapstructure:"expiry_margin"`
	FFmpeg           string        `mapstructure:"ffmpeg"`
}

// loadSettings merges, in rising precedence: defaults, the config file,
// YTGRAB_* environment variables, then command-line flags.
func loadSettings() (settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("ytgrab")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ytgrab")
	}

	v.SetEnvPrefix("YTGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg settings
	if err := v.Unmarshal(&cfg); err != nil {
		return settings{}, fmt.Errorf("parse config: %w", err)
	}

	if flagProxy != "" {
		cfg.Proxy = flagProxy
	}
	if flagLevel != "" {
		cfg.LogLevel = flagLevel
	}
	return cfg, nil
}
