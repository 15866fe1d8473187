// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestParseSlaveIDs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []uint8
		wantErr bool
	}{
		{"single", "1", []uint8{1}, false},
		{"list", "1,2,5", []uint8{1, 2, 5}, false},
		{"range", "5-8", []uint8{5, 6, 7, 8}, false},
		{"mixed with spaces", " 1, 3-5 ,9", []uint8{1, 3, 4, 5, 9}, false},
		{"zero is not a slave id", "0", nil, true},
		{"reversed range", "9-5", nil, true},
		{"out of range", "200-300", nil, true},
		{"garbage", "abc", nil, true},
		{"empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSlaveIDs(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSlaveIDs(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSlaveIDs(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
modbus_tcp:
  enabled: true
  port: 1502
modbus_rtu:
  enabled: true
  device: /dev/ttyUSB1
  baud_rate: 19200
  parity: e
slaves: "1-3"
storage:
  type: mmap
  path: /tmp/slaves.bin
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.ModbusTCP.Enabled || cfg.ModbusTCP.Port != 1502 {
		t.Errorf("tcp config = %+v, want enabled on port 1502", cfg.ModbusTCP)
	}
	if cfg.ModbusRTU.Device != "/dev/ttyUSB1" || cfg.ModbusRTU.BaudRate != 19200 {
		t.Errorf("rtu config = %+v", cfg.ModbusRTU)
	}
	// Parity is uppercased, missing serial fields get defaults.
	if cfg.ModbusRTU.Parity != "E" {
		t.Errorf("parity = %q, want E", cfg.ModbusRTU.Parity)
	}
	if cfg.ModbusRTU.DataBits != 8 || cfg.ModbusRTU.StopBits != 1 {
		t.Errorf("serial defaults = %d data bits, %d stop bits, want 8/1", cfg.ModbusRTU.DataBits, cfg.ModbusRTU.StopBits)
	}
	if cfg.ModbusRTU.Timeout != 500*time.Millisecond {
		t.Errorf("timeout = %v, want default 500ms", cfg.ModbusRTU.Timeout)
	}
	if got := cfg.SlaveIDs(); !reflect.DeepEqual(got, []uint8{1, 2, 3}) {
		t.Errorf("SlaveIDs() = %v, want [1 2 3]", got)
	}
	if cfg.Storage.Type != "mmap" {
		t.Errorf("storage type = %q, want mmap", cfg.Storage.Type)
	}
}

func TestLoad_InvalidSlaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(`slaves: "5-1"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted a reversed slave range")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := &Config{
		ModbusTCP: TCPConfig{Enabled: true, Port: 8502},
		ModbusRTU: SerialConfig{Enabled: true, Device: "/dev/ttyS0", BaudRate: 9600, DataBits: 8, Parity: "N", StopBits: 1},
		Slaves:    "2,4",
		Storage:   StorageConfig{Type: "file", Path: "slaves.json"},
		Log:       LogConfig{Level: "warn"},
	}
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save failed: %v", err)
	}
	if loaded.ModbusTCP.Port != 8502 || loaded.Slaves != "2,4" || loaded.Log.Level != "warn" {
		t.Errorf("round-tripped config = %+v", loaded)
	}
	if loaded.ModbusRTU.Device != "/dev/ttyS0" {
		t.Errorf("device = %q, want /dev/ttyS0", loaded.ModbusRTU.Device)
	}
}
