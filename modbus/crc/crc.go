// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc implements CRC-16/MODBUS: initial value 0xFFFF,
// polynomial 0xA001 (reflected 0x8005).
package crc

// CRC is an incremental CRC-16/MODBUS register.
type CRC struct {
	value uint16
}

// Reset initializes the register and returns the receiver so calls
// can be chained.
func (c *CRC) Reset() *CRC {
	c.value = 0xFFFF
	return c
}

// PushBytes folds bs into the running checksum.
func (c *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		c.value ^= uint16(b)
		for i := 0; i < 8; i++ {
			if c.value&0x0001 != 0 {
				c.value = (c.value >> 1) ^ 0xA001
			} else {
				c.value >>= 1
			}
		}
	}
	return c
}

// Value returns the current checksum.
func (c *CRC) Value() uint16 {
	return c.value
}

// Checksum computes the CRC-16/MODBUS of bs in one call.
func Checksum(bs []byte) uint16 {
	var c CRC
	return c.Reset().PushBytes(bs).Value()
}

// Append returns bs with its checksum appended. Modbus transmits the
// CRC low byte first, unlike every other multi-byte field on the wire.
func Append(bs []byte) []byte {
	sum := Checksum(bs)
	return append(bs, byte(sum), byte(sum>>8))
}

// Verify splits the trailing two bytes of bs as a little-endian CRC,
// recomputes over the remainder and compares. Frames shorter than
// three bytes cannot carry a CRC and always fail.
func Verify(bs []byte) bool {
	if len(bs) < 3 {
		return false
	}
	received := uint16(bs[len(bs)-1])<<8 | uint16(bs[len(bs)-2])
	return Checksum(bs[:len(bs)-2]) == received
}
