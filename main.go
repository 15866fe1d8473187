// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/pflag"

	"github.com/Aranyalma2/samsung-hvac-emulator/internal/config"
	"github.com/Aranyalma2/samsung-hvac-emulator/internal/slave"
	"github.com/Aranyalma2/samsung-hvac-emulator/internal/storage"
	"github.com/Aranyalma2/samsung-hvac-emulator/internal/store"
	"github.com/Aranyalma2/samsung-hvac-emulator/transport/rtu"
	"github.com/Aranyalma2/samsung-hvac-emulator/transport/tcp"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	slog.Info("Starting Samsung HVAC Modbus emulator...")

	slaveIDs := cfg.SlaveIDs()
	registers, backend := openStorage(cfg, slaveIDs)
	defer backend.Close()

	persister := storage.NewPersister(backend, registers.Snapshot)

	tcpServer := tcp.NewServer(
		slave.NewHandler(registers, persister.Request, slave.ModeTCP).HandleRequest,
		registers,
	)
	rtuServer := rtu.NewServer(
		slave.NewHandler(registers, persister.Request, slave.ModeRTU).HandleRequest,
		registers,
	)

	if cfg.ModbusTCP.Enabled {
		if err := tcpServer.Start(cfg.ModbusTCP.Port); err != nil {
			slog.Error("Failed to start Modbus TCP server", "err", err)
		}
	}
	if cfg.ModbusRTU.Enabled {
		// An unopenable serial device keeps the RTU transport inactive
		// but must not take the process down.
		if err := rtuServer.Start(cfg.ModbusRTU); err != nil {
			slog.Error("Failed to start Modbus RTU server", "err", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			break
		}

		// SIGHUP: re-read the config and restart the transports.
		slog.Info("Reloading configuration")
		newCfg, err := config.Load(*configFile)
		if err != nil {
			slog.Error("Failed to reload configuration, keeping current", "err", err)
			continue
		}
		if newCfg.ModbusTCP.Enabled {
			if err := tcpServer.Restart(newCfg.ModbusTCP.Port); err != nil {
				slog.Error("Failed to restart Modbus TCP server", "err", err)
			}
		} else {
			tcpServer.Stop()
		}
		if newCfg.ModbusRTU.Enabled {
			if err := rtuServer.Restart(newCfg.ModbusRTU); err != nil {
				slog.Error("Failed to restart Modbus RTU server", "err", err)
			}
		} else {
			rtuServer.Stop()
		}
	}

	slog.Info("Shutting down...")
	tcpServer.Stop()
	rtuServer.Stop()

	// One last snapshot so in-flight writes are not lost, then let the
	// persister drain.
	persister.Request()
	persister.Close()
	slog.Info("Goodbye.")
}

// openStorage opens the configured persistence backend and builds the
// register store from whatever it holds. A broken backend degrades to
// in-memory operation instead of refusing to start.
func openStorage(cfg *config.Config, slaveIDs []uint8) (*store.Store, storage.Storage) {
	var backend storage.Storage
	switch cfg.Storage.Type {
	case "file":
		slog.Info("Using file persistence", "path", cfg.Storage.Path)
		backend = storage.NewFileStorage(cfg.Storage.Path)
	case "mmap":
		slog.Info("Using mmap persistence", "path", cfg.Storage.Path)
		backend = storage.NewMmapStorage(cfg.Storage.Path, slaveIDs)
	case "sql":
		slog.Info("Using SQL persistence", "driver", "sqlite3", "dsn", cfg.Storage.Path)
		backend = storage.NewSQLStorage("sqlite3", cfg.Storage.Path)
	default:
		slog.Info("Using memory storage (non-persistent)")
		backend = storage.NewMemoryStorage()
	}

	banks, err := backend.Load()
	if err != nil {
		slog.Error("Failed to load persisted slave data, falling back to memory storage", "err", err)
		backend.Close()
		backend = storage.NewMemoryStorage()
		banks = map[uint8][]uint16{}
	}

	// Every configured slave gets a bank; persisted data for slaves no
	// longer configured is left behind in the backend.
	configured := make(map[uint8]bool, len(slaveIDs))
	for _, id := range slaveIDs {
		configured[id] = true
		if _, ok := banks[id]; !ok {
			banks[id] = make([]uint16, store.NumRegisters)
		}
	}
	for id := range banks {
		if !configured[id] {
			delete(banks, id)
		}
	}

	return store.NewFromBanks(banks), backend
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
