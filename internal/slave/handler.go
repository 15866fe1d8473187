// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package slave implements the Modbus function code semantics of the
// emulated devices: decode a PDU, execute it against the register
// store, encode the response or exception PDU.
package slave

import (
	"context"
	"encoding/binary"

	"github.com/Aranyalma2/samsung-hvac-emulator/internal/store"
	"github.com/Aranyalma2/samsung-hvac-emulator/modbus"
	"github.com/Aranyalma2/samsung-hvac-emulator/transport"
)

// Mode selects the per-transport validation behavior. The TCP path
// validates quantities and write addresses and answers violations with
// exceptions; the RTU path is deliberately lax and echoes writes
// unconditionally. Both behaviors are pinned by tests.
type Mode int

const (
	ModeTCP Mode = iota
	ModeRTU
)

// Handler executes request PDUs against a register store.
type Handler struct {
	store   *store.Store
	persist func()
	mode    Mode
}

// NewHandler creates a Handler. persist is invoked after every mutating
// write; it must not block (the caller wires in the async persister).
// A nil persist is allowed for tests.
func NewHandler(st *store.Store, persist func(), mode Mode) *Handler {
	if persist == nil {
		persist = func() {}
	}
	return &Handler{store: st, persist: persist, mode: mode}
}

// HandleRequest adapts Process to the transport.RequestHandler
// signature. Frame processing is synchronous and never waits, so the
// context goes unused.
func (h *Handler) HandleRequest(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	return h.Process(slaveID, pdu)
}

// Process executes one request PDU and returns the response PDU.
// Protocol violations come back as exception PDUs, not Go errors;
// transport.ErrNoResponse is the only error the transports act on.
func (h *Handler) Process(slaveID uint8, req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	switch req.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		return h.readHoldingRegisters(slaveID, req)
	case modbus.FuncCodeWriteSingleRegister:
		return h.writeSingleRegister(slaveID, req)
	case modbus.FuncCodeWriteMultipleRegister:
		return h.writeMultipleRegisters(slaveID, req)
	default:
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalFunction), nil
	}
}

func (h *Handler) readHoldingRegisters(slaveID uint8, req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		if h.mode == ModeRTU {
			return modbus.ProtocolDataUnit{}, transport.ErrNoResponse
		}
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	// Only the TCP path enforces the protocol bound on quantity.
	if h.mode == ModeTCP && (quantity < 1 || quantity > modbus.MaxReadQuantity) {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	values := h.store.Read(slaveID, address, quantity)

	respData := make([]byte, 1+2*len(values))
	respData[0] = byte(2 * len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(respData[1+i*2:], v)
	}

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}

func (h *Handler) writeSingleRegister(slaveID uint8, req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		if h.mode == ModeRTU {
			return modbus.ProtocolDataUnit{}, transport.ErrNoResponse
		}
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	// TCP rejects writes past the bank; RTU echoes unconditionally and
	// lets the store drop the write silently.
	if h.mode == ModeTCP && address >= store.NumRegisters {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}

	if h.store.Write(slaveID, address, value) {
		h.persist()
	}

	return req, nil // echo address and value
}

func (h *Handler) writeMultipleRegisters(slaveID uint8, req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) < 5 {
		if h.mode == ModeRTU {
			return modbus.ProtocolDataUnit{}, transport.ErrNoResponse
		}
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])
	byteCount := req.Data[4]

	// The byte count must agree with the quantity and with the bytes
	// actually present in the frame.
	if int(byteCount) != int(quantity)*2 || len(req.Data) != 5+int(byteCount) {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}

	changed := false
	for i := 0; i < int(quantity); i++ {
		// The target is computed in int: address+i would wrap at
		// 0xFFFF and land back inside the bank.
		target := int(address) + i
		if target >= store.NumRegisters {
			continue
		}
		value := binary.BigEndian.Uint16(req.Data[5+i*2:])
		if h.store.Write(slaveID, uint16(target), value) {
			changed = true
		}
	}
	if changed {
		h.persist()
	}

	respData := make([]byte, 4)
	binary.BigEndian.PutUint16(respData[0:2], address)
	binary.BigEndian.PutUint16(respData[2:4], quantity)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}
