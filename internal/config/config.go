// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads frostlock settings from a YAML file and FROSTLOCK_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "FROSTLOCK"

// SerialConfig selects the serial port
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// BridgeConfig selects a WebSocket serial bridge instead of a local port
type BridgeConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify"`
}

// DeviceConfig identifies the appliance
type DeviceConfig struct {
	Address        int  `mapstructure:"address"`
	AutoCompressor bool `mapstructure:"auto_compressor"`
}

// ListenerConfig tunes the background reader
type ListenerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CommandRate  float64       `mapstructure:"command_rate"`
	CommandBurst int           `mapstructure:"command_burst"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// LumberjackConfig configures log file rotation
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures level, format and optional file output
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// Config is the top-level configuration
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Device   DeviceConfig   `mapstructure:"device"`
	Listener ListenerConfig `mapstructure:"listener"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (or frostlock.yaml from . and ./configs when empty) into v
// and decodes it. A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("frostlock")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 38400)
	v.SetDefault("serial.read_timeout", 200*time.Millisecond)

	v.SetDefault("bridge.url", "")
	v.SetDefault("bridge.username", "")
	v.SetDefault("bridge.no_ssl_verify", false)

	v.SetDefault("device.address", 1)
	v.SetDefault("device.auto_compressor", false)

	v.SetDefault("listener.poll_interval", 20*time.Millisecond)
	v.SetDefault("listener.settle_delay", 100*time.Millisecond)
	v.SetDefault("listener.stop_timeout", time.Second)

	v.SetDefault("http.addr", ":5000")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.command_rate", 10.0)
	v.SetDefault("http.command_burst", 20)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.max_size", 50)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age", 14)
	v.SetDefault("logging.file.compress", true)
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.Device.Address < 1 || c.Device.Address > 120 {
		return fmt.Errorf("device.address %d out of range 1-120", c.Device.Address)
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive")
	}
	for name, d := range map[string]time.Duration{
		"serial.read_timeout":    c.Serial.ReadTimeout,
		"listener.poll_interval": c.Listener.PollInterval,
		"listener.settle_delay":  c.Listener.SettleDelay,
		"listener.stop_timeout":  c.Listener.StopTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.HTTP.CommandRate <= 0 || c.HTTP.CommandBurst <= 0 {
		return fmt.Errorf("http.command_rate and http.command_burst must be positive")
	}
	return nil
}

// ValidateTransport requires exactly one of a serial port or a bridge URL
func (c *Config) ValidateTransport() error {
	switch {
	case c.Serial.Port != "" && c.Bridge.URL != "":
		return errors.New("serial.port and bridge.url are mutually exclusive")
	case c.Serial.Port == "" && c.Bridge.URL == "":
		return errors.New("either --port or --url must be specified")
	}
	return nil
}
