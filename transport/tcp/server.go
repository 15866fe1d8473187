// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package tcp implements the Modbus TCP side of the emulator: a server
// accepting any number of concurrent master connections, one goroutine
// per connection, all funneling into the shared register store.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/Aranyalma2/samsung-hvac-emulator/modbus"
	"github.com/Aranyalma2/samsung-hvac-emulator/transport"
)

// Server is a Modbus TCP slave endpoint. Start, Stop and Restart are
// idempotent and safe to call at any time.
type Server struct {
	Handler transport.RequestHandler
	Slaves  transport.SlaveResolver

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	port     int
}

// NewServer creates a TCP server dispatching to handler. slaves decides
// which unit ids get served; frames for anyone else are answered with a
// gateway-target-failed exception.
func NewServer(handler transport.RequestHandler, slaves transport.SlaveResolver) *Server {
	return &Server{
		Handler: handler,
		Slaves:  slaves,
	}
}

// Start begins listening on the given port. Calling Start while already
// listening on the same port is a no-op; a different port triggers a
// restart.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	if s.listener != nil {
		if s.port == port {
			s.mu.Unlock()
			return nil
		}
		s.stopLocked()
	}

	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = listener
	s.cancel = cancel
	s.port = port

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx, listener)
	}()
	s.mu.Unlock()

	slog.Info("Modbus TCP server listening", "addr", addr)
	return nil
}

// Stop closes the listener and every active connection. Stopping a
// stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Server) stopLocked() {
	if s.listener == nil {
		return
	}
	s.cancel()
	s.listener.Close()
	s.listener = nil
	s.cancel = nil
	slog.Info("Modbus TCP server stopped", "port", s.port)
}

// Restart stops the server and starts it again on the given port.
func (s *Server) Restart(port int) error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start(port)
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				slog.Error("Failed to accept connection", "err", err)
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	slog.Info("New TCP client connected", "addr", conn.RemoteAddr())

	// The watcher unblocks the pending Read on shutdown and exits with
	// the connection, whichever comes first.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		// Each read is assumed to deliver exactly one complete ADU.
		// Segmentation or coalescing across reads is not handled.
		buf := make([]byte, tcpMaxSize+1) // +1 to detect overflow
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Info("TCP client disconnected gracefully", "addr", conn.RemoteAddr())
			} else if ctx.Err() == nil {
				slog.Error("Failed to read from connection", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}

		if n > tcpMaxSize {
			slog.Error("Invalid request length", "length", n)
			return
		}

		adu, err := Decode(buf[:n])
		if err != nil {
			// Framing error: discard without a response.
			slog.Error("Failed to decode TCP request", "err", err)
			continue
		}

		respPdu, ok := s.process(ctx, adu)
		if !ok {
			continue
		}

		respAdu := &ApplicationDataUnit{
			TransactionID: adu.TransactionID,
			ProtocolID:    adu.ProtocolID,
			SlaveID:       adu.SlaveID,
			Pdu:           respPdu,
		}

		respRaw, err := respAdu.Encode()
		if err != nil {
			slog.Error("Failed to encode TCP response", "err", err)
			continue
		}

		if _, err := conn.Write(respRaw); err != nil {
			slog.Error("Failed to write response to connection", "err", err)
			return
		}
	}
}

// process runs one decoded request through the handler. The second
// return value is false when no response must be sent.
func (s *Server) process(ctx context.Context, adu *ApplicationDataUnit) (modbus.ProtocolDataUnit, bool) {
	// A frame addressed to a device we do not emulate gets the
	// gateway-target-failed exception, echoing the transaction id.
	if s.Slaves != nil && !s.Slaves.Exists(adu.SlaveID) {
		slog.Warn("Request for unconfigured slave", "slaveID", adu.SlaveID)
		return modbus.NewException(adu.Pdu.FunctionCode, modbus.ExceptionCodeGatewayTargetFail), true
	}

	respPdu, err := s.Handler(ctx, adu.SlaveID, adu.Pdu)
	if err != nil {
		if !errors.Is(err, transport.ErrNoResponse) {
			slog.Error("Handler failed", "err", err)
		}
		return modbus.ProtocolDataUnit{}, false
	}
	return respPdu, true
}
