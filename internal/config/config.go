// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package config loads and persists the emulator configuration.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	ModbusTCP TCPConfig     `mapstructure:"modbus_tcp"`
	ModbusRTU SerialConfig  `mapstructure:"modbus_rtu"`
	Slaves    string        `mapstructure:"slaves"`  // e.g. "1", "1,2", "1-10"
	Storage   StorageConfig `mapstructure:"storage"`
	Log       LogConfig     `mapstructure:"log"`
}

// TCPConfig defines the Modbus TCP listener
type TCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SerialConfig defines the Modbus RTU serial link
type SerialConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"` // N, E, O
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"` // serial read timeout
}

// StorageConfig selects the persistence backend for register data
type StorageConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap", "sql"
	Path string `mapstructure:"path"` // file path or DSN
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // log file path, empty for stdout
}

// Load reads the configuration from the given file, or from the
// default search path when configFile is empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/hvac-emulator/")
		v.AddConfigPath("$HOME/.hvac-emulator")
		v.AddConfigPath(".")
	}

	// Defaults
	v.SetDefault("modbus_tcp.enabled", true)
	v.SetDefault("modbus_tcp.port", 502)
	v.SetDefault("modbus_rtu.enabled", false)
	v.SetDefault("modbus_rtu.device", "/dev/ttyUSB0")
	v.SetDefault("modbus_rtu.baud_rate", 9600)
	v.SetDefault("modbus_rtu.data_bits", 8)
	v.SetDefault("modbus_rtu.parity", "N")
	v.SetDefault("modbus_rtu.stop_bits", 1)
	v.SetDefault("slaves", "1")
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", "slaves.json")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.ModbusRTU)

	if _, err := ParseSlaveIDs(config.Slaves); err != nil {
		return nil, fmt.Errorf("invalid slaves list %q: %w", config.Slaves, err)
	}

	return &config, nil
}

// Save writes the configuration back out, so settings changed at
// runtime survive a restart.
func Save(cfg *Config, path string) error {
	v := viper.New()
	v.Set("modbus_tcp.enabled", cfg.ModbusTCP.Enabled)
	v.Set("modbus_tcp.port", cfg.ModbusTCP.Port)
	v.Set("modbus_rtu.enabled", cfg.ModbusRTU.Enabled)
	v.Set("modbus_rtu.device", cfg.ModbusRTU.Device)
	v.Set("modbus_rtu.baud_rate", cfg.ModbusRTU.BaudRate)
	v.Set("modbus_rtu.data_bits", cfg.ModbusRTU.DataBits)
	v.Set("modbus_rtu.parity", cfg.ModbusRTU.Parity)
	v.Set("modbus_rtu.stop_bits", cfg.ModbusRTU.StopBits)
	v.Set("slaves", cfg.Slaves)
	v.Set("storage.type", cfg.Storage.Type)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 500 * time.Millisecond
	}
}

// SlaveIDs returns the parsed slave id list.
func (c *Config) SlaveIDs() []uint8 {
	ids, _ := ParseSlaveIDs(c.Slaves)
	return ids
}

// ParseSlaveIDs parses a string of slave ids (e.g. "1,2,5-10") into a slice of bytes.
func ParseSlaveIDs(input string) ([]uint8, error) {
	var ids []uint8
	parts := strings.Split(input, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			// Range
			ranges := strings.Split(part, "-")
			if len(ranges) != 2 {
				return nil, fmt.Errorf("invalid range: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(ranges[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid start of range: %w", err)
			}
			end, err := strconv.Atoi(strings.TrimSpace(ranges[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid end of range: %w", err)
			}
			if start > end {
				return nil, fmt.Errorf("start of range %d is greater than end %d", start, end)
			}
			for i := start; i <= end; i++ {
				if i < 1 || i > 255 {
					return nil, fmt.Errorf("id out of range: %d", i)
				}
				ids = append(ids, uint8(i))
			}
		} else {
			// Single
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid id: %w", err)
			}
			if id < 1 || id > 255 {
				return nil, fmt.Errorf("id out of range: %d", id)
			}
			ids = append(ids, uint8(id))
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no slave ids configured")
	}
	return ids, nil
}
