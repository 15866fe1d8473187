// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package tcp

import (
	"bytes"
	"testing"

	"github.com/Aranyalma2/samsung-hvac-emulator/modbus"
)

func TestDecode(t *testing.T) {
	raw := []byte{0x00, 0x7B, 0x00, 0x00, 0x00, 0x06, 0x01, 0x03, 0x00, 0x0A, 0x00, 0x02}

	adu, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if adu.TransactionID != 123 || adu.ProtocolID != 0 || adu.Length != 6 {
		t.Errorf("header = %d/%d/%d, want 123/0/6", adu.TransactionID, adu.ProtocolID, adu.Length)
	}
	if adu.SlaveID != 1 || adu.Pdu.FunctionCode != 0x03 {
		t.Errorf("unit/func = %d/%02X, want 1/03", adu.SlaveID, adu.Pdu.FunctionCode)
	}
	if !bytes.Equal(adu.Pdu.Data, []byte{0x00, 0x0A, 0x00, 0x02}) {
		t.Errorf("payload = % X, want 00 0A 00 02", adu.Pdu.Data)
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"too short", []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x01}},
		{"non-zero protocol id", []byte{0x00, 0x01, 0x00, 0x07, 0x00, 0x02, 0x01, 0x03}},
		{"length longer than frame", []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x09, 0x01, 0x03, 0x00, 0x0A, 0x00, 0x02}},
		{"length shorter than frame", []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x01, 0x03, 0x00, 0x0A, 0x00, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.raw); err == nil {
				t.Errorf("Decode(% X) succeeded, want error", tt.raw)
			}
		})
	}
}

func TestEncode_RecomputesLength(t *testing.T) {
	adu := &ApplicationDataUnit{
		TransactionID: 42,
		ProtocolID:    0,
		SlaveID:       1,
		Pdu: modbus.ProtocolDataUnit{
			FunctionCode: 0x03,
			Data:         []byte{0x02, 0xAA, 0xBB},
		},
	}

	raw, err := adu.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := []byte{0x00, 0x2A, 0x00, 0x00, 0x00, 0x05, 0x01, 0x03, 0x02, 0xAA, 0xBB}
	if !bytes.Equal(raw, want) {
		t.Errorf("Encode = % X, want % X", raw, want)
	}
}

func TestEncode_TooLarge(t *testing.T) {
	adu := &ApplicationDataUnit{
		SlaveID: 1,
		Pdu: modbus.ProtocolDataUnit{
			FunctionCode: 0x03,
			Data:         make([]byte, tcpMaxSize),
		},
	}
	if _, err := adu.Encode(); err == nil {
		t.Error("Encode of oversized PDU succeeded, want error")
	}
}
