// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package transport defines the contract between the wire transports
// and the protocol engine behind them.
package transport

import (
	"context"
	"errors"

	"github.com/Aranyalma2/samsung-hvac-emulator/modbus"
)

// ErrNoResponse tells a transport to answer a frame with silence.
// The RTU path uses it for garbled payloads: the bus has no negative
// acknowledgement, so a bad frame simply goes unanswered.
var ErrNoResponse = errors.New("transport: no response")

// RequestHandler processes one request PDU addressed to slaveID and
// returns the response PDU (which may itself be an exception).
// Returning ErrNoResponse suppresses the response entirely.
type RequestHandler func(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)

// SlaveResolver answers whether a unit id belongs to a configured
// emulated device. Frames addressed to unknown devices are rejected at
// the transport, each transport in its own way: TCP answers with a
// gateway-target-failed exception, RTU stays silent.
type SlaveResolver interface {
	Exists(slaveID uint8) bool
}
