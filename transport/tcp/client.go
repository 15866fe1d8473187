// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/Aranyalma2/samsung-hvac-emulator/modbus"
)

const tcpTimeout = 10 * time.Second

// Client is a small Modbus TCP master, used by the bundled test client
// to poke the emulator from the outside. One connection per request.
type Client struct {
	Address string
	Timeout time.Duration

	transactionID uint32 // atomic counter
}

// NewClient allocates and initializes a TCP Client.
func NewClient(address string) *Client {
	return &Client{
		Address: address,
		Timeout: tcpTimeout,
	}
}

// Send sends a PDU to the given slave and returns the response PDU,
// which may be an exception.
func (mb *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	tid := uint16(atomic.AddUint32(&mb.transactionID, 1))

	adu := &ApplicationDataUnit{
		TransactionID: tid,
		ProtocolID:    0,
		SlaveID:       slaveID,
		Pdu:           pdu,
	}

	aduBytes, err := adu.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to encode ADU: %w", err)
	}

	conn, err := net.DialTimeout("tcp", mb.Address, mb.Timeout)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("modbus: failed to connect to %s: %w", mb.Address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(mb.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err = conn.SetDeadline(deadline); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	respBytes, err := mb.sendAndRead(conn, aduBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	respAdu, err := Decode(respBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to decode response ADU: %w", err)
	}

	if respAdu.TransactionID != tid {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("modbus: response transaction id '%v' does not match request '%v'", respAdu.TransactionID, tid)
	}

	return respAdu.Pdu, nil
}

func (mb *Client) sendAndRead(conn net.Conn, aduRequest []byte) ([]byte, error) {
	if _, err := conn.Write(aduRequest); err != nil {
		return nil, err
	}

	// The MBAP header declares the remaining length.
	mbapHeader := make([]byte, 6)
	if _, err := io.ReadFull(conn, mbapHeader); err != nil {
		return nil, err
	}

	length := int(mbapHeader[4])<<8 | int(mbapHeader[5])

	response := make([]byte, 6+length)
	copy(response, mbapHeader)
	if _, err := io.ReadFull(conn, response[6:]); err != nil {
		return nil, err
	}

	slog.Debug("recv from emulator", "response", hex.EncodeToString(response))
	return response, nil
}
