// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package tcp

import (
	"encoding/binary"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/Aranyalma2/samsung-hvac-emulator/internal/slave"
	"github.com/Aranyalma2/samsung-hvac-emulator/internal/store"
	"github.com/Aranyalma2/samsung-hvac-emulator/modbus"
)

// startServer brings up a server on an ephemeral port wired to a real
// store and codec, and returns a connected client.
func startServer(t *testing.T) (net.Conn, *store.Store) {
	t.Helper()

	st := store.New([]uint8{1})
	handler := slave.NewHandler(st, nil, slave.ModeTCP)
	s := NewServer(handler.HandleRequest, st)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close() // free the port so the server can bind it

	if err := s.Start(port); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })

	var conn net.Conn
	addr := l.Addr().String()
	for i := 0; i < 20; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if conn == nil {
		t.Fatalf("Failed to connect to server after retries, last error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn, st
}

// buildADU wraps a PDU in an MBAP header.
func buildADU(transactionID uint16, protocolID uint16, unitID byte, pdu []byte) []byte {
	adu := make([]byte, 7+len(pdu))
	binary.BigEndian.PutUint16(adu[0:], transactionID)
	binary.BigEndian.PutUint16(adu[2:], protocolID)
	binary.BigEndian.PutUint16(adu[4:], uint16(1+len(pdu)))
	adu[6] = unitID
	copy(adu[7:], pdu)
	return adu
}

func TestServer_ReadHoldingRegisters(t *testing.T) {
	conn, st := startServer(t)
	st.Write(1, 1, 0xAABB)

	req := buildADU(123, 0, 1, []byte{0x03, 0x00, 0x01, 0x00, 0x01})
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("Failed to write request: %v", err)
	}

	respBuf := make([]byte, 512)
	n, err := conn.Read(respBuf)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if n != 7+5 {
		t.Fatalf("response length = %d, want 12", n)
	}
	if binary.BigEndian.Uint16(respBuf[0:]) != 123 {
		t.Errorf("transaction id = %v, want 123", respBuf[:2])
	}
	if got := binary.BigEndian.Uint16(respBuf[4:]); got != 5 {
		t.Errorf("MBAP length = %d, want PDU length + 1 = 5", got)
	}
	if respBuf[7] != 0x03 || respBuf[8] != 0x02 {
		t.Errorf("function/byte count = %02X/%02X, want 03/02", respBuf[7], respBuf[8])
	}
	if got := binary.BigEndian.Uint16(respBuf[9:]); got != 0xAABB {
		t.Errorf("register value = %04X, want AABB", got)
	}
}

func TestServer_WriteThenRead(t *testing.T) {
	conn, st := startServer(t)

	req := buildADU(7, 0, 1, []byte{0x06, 0x00, 0x0A, 0x04, 0xD2})
	if _, err := conn.Write(req); err != nil {
		t.Fatal(err)
	}

	respBuf := make([]byte, 512)
	n, err := conn.Read(respBuf)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	// Echo of the request.
	if respBuf[7] != 0x06 || n != len(req) {
		t.Errorf("response func/len = %02X/%d, want echo of request", respBuf[7], n)
	}
	if got := st.Read(1, 10, 1)[0]; got != 1234 {
		t.Errorf("register 10 = %v after write, want 1234", got)
	}
}

func TestServer_UnknownUnitID(t *testing.T) {
	conn, _ := startServer(t)

	// Unit 99 is not configured: expect 0x83/0x0B with the original
	// transaction id.
	req := buildADU(555, 0, 99, []byte{0x03, 0x00, 0x00, 0x00, 0x01})
	if _, err := conn.Write(req); err != nil {
		t.Fatal(err)
	}

	respBuf := make([]byte, 512)
	n, err := conn.Read(respBuf)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if n != 9 {
		t.Fatalf("response length = %d, want 9", n)
	}
	if binary.BigEndian.Uint16(respBuf[0:]) != 555 {
		t.Errorf("transaction id = %v, want 555", respBuf[:2])
	}
	if respBuf[7] != 0x83 {
		t.Errorf("function code = %02X, want 83", respBuf[7])
	}
	if respBuf[8] != modbus.ExceptionCodeGatewayTargetFail {
		t.Errorf("exception code = %02X, want 0B", respBuf[8])
	}
}

func TestServer_NonZeroProtocolID(t *testing.T) {
	conn, _ := startServer(t)

	req := buildADU(1, 7, 1, []byte{0x03, 0x00, 0x00, 0x00, 0x01})
	if _, err := conn.Write(req); err != nil {
		t.Fatal(err)
	}

	// The frame is rejected with no response at all.
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	respBuf := make([]byte, 512)
	if n, err := conn.Read(respBuf); err == nil {
		t.Errorf("got %d response bytes for protocol id 7, want silence", n)
	}
}

func TestServer_NoGoroutineLeakPerConnection(t *testing.T) {
	conn, _ := startServer(t)
	addr := conn.RemoteAddr().String()

	// Let the first connection's goroutines settle before the baseline.
	time.Sleep(50 * time.Millisecond)
	baseline := runtime.NumGoroutine()

	// Many short-lived masters; each connection's goroutines must not
	// outlive it.
	for i := 0; i < 100; i++ {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("dial %d failed: %v", i, err)
		}
		c.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+5 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("goroutines = %d after 100 connections, baseline %d", runtime.NumGoroutine(), baseline)
}

func TestServer_Lifecycle(t *testing.T) {
	st := store.New([]uint8{1})
	handler := slave.NewHandler(st, nil, slave.ModeTCP)
	s := NewServer(handler.HandleRequest, st)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	if err := s.Start(port); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Starting again on the same port is a no-op.
	if err := s.Start(port); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if err := s.Restart(port); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Stopping twice is fine.
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}

	// The port is free again after Stop.
	l2, err := net.Listen("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("port still bound after Stop: %v", err)
	}
	l2.Close()
}
