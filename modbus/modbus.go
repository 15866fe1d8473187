// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus holds the transport-independent protocol vocabulary:
// the Protocol Data Unit and the function/exception code constants
// shared by the TCP and RTU paths.
package modbus

// Function codes supported by the emulated slaves. Everything else is
// answered with an illegal-function exception.
const (
	FuncCodeReadHoldingRegisters  = 0x03
	FuncCodeWriteSingleRegister   = 0x06
	FuncCodeWriteMultipleRegister = 0x10
)

// Exception codes.
const (
	ExceptionCodeIllegalFunction    = 0x01
	ExceptionCodeIllegalDataAddress = 0x02
	ExceptionCodeIllegalDataValue   = 0x03
	ExceptionCodeGatewayTargetFail  = 0x0B
)

// MaxReadQuantity is the protocol limit for a single 0x03 request.
const MaxReadQuantity = 125

// ProtocolDataUnit is the function code plus payload, without any
// transport framing (MBAP header or CRC).
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// NewException builds an exception PDU for the given request function
// code: high bit set, one-byte exception code as payload.
func NewException(funcCode, exceptionCode byte) ProtocolDataUnit {
	return ProtocolDataUnit{
		FunctionCode: funcCode | 0x80,
		Data:         []byte{exceptionCode},
	}
}

// IsException reports whether the PDU carries an exception response.
func (pdu ProtocolDataUnit) IsException() bool {
	return pdu.FunctionCode&0x80 != 0
}
