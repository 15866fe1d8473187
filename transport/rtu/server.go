// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package rtu implements the Modbus RTU side of the emulator over a
// serial link. The byte stream carries no frame boundaries, so frames
// are delimited by inter-byte silence and validated by CRC.
package rtu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/grid-x/serial"

	"github.com/Aranyalma2/samsung-hvac-emulator/internal/config"
	"github.com/Aranyalma2/samsung-hvac-emulator/transport"
)

// restartSettleDelay gives the OS time to release the serial device
// between close and reopen; some platforms report the port busy when
// reopened immediately.
const restartSettleDelay = 100 * time.Millisecond

// Server is a Modbus RTU slave endpoint on a serial link. Start, Stop
// and Restart are idempotent and safe to call at any time.
type Server struct {
	Handler transport.RequestHandler
	Slaves  transport.SlaveResolver

	mu      sync.Mutex
	port    io.ReadWriteCloser
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewServer creates an RTU server dispatching to handler. Frames
// addressed to unit ids that slaves does not know are dropped without
// a response; on a serial bus no other device may answer for them.
func NewServer(handler transport.RequestHandler, slaves transport.SlaveResolver) *Server {
	return &Server{
		Handler: handler,
		Slaves:  slaves,
	}
}

// Start opens the serial device and begins serving. An open failure
// (missing device, permissions) leaves the server inactive; the caller
// logs the error and the process carries on. Starting a running server
// is a no-op.
func (s *Server) Start(cfg config.SerialConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   cfg.Parity,
		StopBits: cfg.StopBits,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.port = port
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(ctx, port)
	}()

	slog.Info("Modbus RTU server listening", "device", cfg.Device, "baudRate", cfg.BaudRate)
	return nil
}

// Stop cancels the pending silence timer and closes the serial device.
// Stopping a stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	err := s.port.Close()
	s.port = nil
	s.cancel = nil
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("Modbus RTU server stopped")
	return err
}

// Restart stops the server and reopens it with the given settings,
// waiting briefly in between so the device node is free again.
func (s *Server) Restart(cfg config.SerialConfig) error {
	if err := s.Stop(); err != nil {
		slog.Warn("Error while closing serial port for restart", "err", err)
	}
	time.Sleep(restartSettleDelay)
	return s.Start(cfg)
}

// serve pumps bytes from the port into a silence framer and answers
// each delimited frame on the same port. Factored over
// io.ReadWriteCloser so tests can substitute a mock port.
func (s *Server) serve(ctx context.Context, port io.ReadWriteCloser) {
	framer := NewFramer(SilenceInterval, func(frame []byte) {
		s.handleFrame(ctx, port, frame)
	})
	defer framer.Reset()

	buf := make([]byte, rtuMaxSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := port.Read(buf)
		if n > 0 {
			framer.Push(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil || err == io.EOF {
				return
			}
			// Read timeouts just mean the line is quiet.
			continue
		}
	}
}

// handleFrame processes one silence-delimited buffer. Everything that
// fails before the handler runs is discarded in silence: RTU defines
// no reply for malformed frames.
func (s *Server) handleFrame(ctx context.Context, port io.Writer, frame []byte) {
	adu, err := Decode(frame)
	if err != nil {
		slog.Debug("Discarding invalid RTU frame", "err", err)
		return
	}

	if s.Slaves != nil && !s.Slaves.Exists(adu.SlaveID) {
		slog.Debug("Ignoring frame for unconfigured slave", "slaveID", adu.SlaveID)
		return
	}

	respPdu, err := s.Handler(ctx, adu.SlaveID, adu.Pdu)
	if err != nil {
		if err != transport.ErrNoResponse {
			slog.Error("Handler failed", "err", err)
		}
		return
	}

	respAdu := &ApplicationDataUnit{
		SlaveID: adu.SlaveID,
		Pdu:     respPdu,
	}
	respRaw, err := respAdu.Encode()
	if err != nil {
		slog.Error("Failed to encode RTU response", "err", err)
		return
	}

	if _, err := port.Write(respRaw); err != nil {
		slog.Error("Failed to write RTU response", "err", err)
	}
}
