// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/Aranyalma2/samsung-hvac-emulator/modbus"
	"github.com/Aranyalma2/samsung-hvac-emulator/modbus/crc"
)

const (
	// Minimum complete request on the wire: unit id, function code,
	// at least one payload byte per supported function, 2-byte CRC.
	rtuMinSize = 8
	rtuMaxSize = 256
)

// ApplicationDataUnit is a Modbus RTU frame: unit id, PDU, CRC.
type ApplicationDataUnit struct {
	SlaveID byte
	Pdu     modbus.ProtocolDataUnit
}

// Decode parses and CRC-checks a raw RTU frame. The CRC is transmitted
// low byte first.
func Decode(raw []byte) (adu *ApplicationDataUnit, err error) {
	if len(raw) < rtuMinSize {
		err = fmt.Errorf("modbus: request length '%v' does not meet minimum '%v'", len(raw), rtuMinSize)
		return
	}

	if !crc.Verify(raw) {
		received := uint16(raw[len(raw)-1])<<8 | uint16(raw[len(raw)-2])
		err = fmt.Errorf("modbus: frame crc '%04X' does not match expected '%04X'", received, crc.Checksum(raw[:len(raw)-2]))
		return
	}

	adu = &ApplicationDataUnit{}
	adu.SlaveID = raw[0]
	adu.Pdu.FunctionCode = raw[1]
	adu.Pdu.Data = raw[2 : len(raw)-2]
	return
}

// Encode encodes the PDU in an RTU frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes
func (adu *ApplicationDataUnit) Encode() (raw []byte, err error) {
	length := len(adu.Pdu.Data) + 4
	if length > rtuMaxSize {
		err = fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, rtuMaxSize)
		return
	}
	raw = make([]byte, 0, length)
	raw = append(raw, adu.SlaveID, adu.Pdu.FunctionCode)
	raw = append(raw, adu.Pdu.Data...)
	raw = crc.Append(raw)
	return
}
