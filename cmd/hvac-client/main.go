// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command hvac-client is a small Modbus TCP master for exercising the
// emulator by hand:
//
//	hvac-client -a localhost:502 -s 1 read 0 10
//	hvac-client -a localhost:502 -s 1 write 10 1234
//	hvac-client -a localhost:502 -s 1 write 10 1 2 3 4
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/Aranyalma2/samsung-hvac-emulator/modbus"
	"github.com/Aranyalma2/samsung-hvac-emulator/transport/tcp"
)

func main() {
	var (
		address string
		slaveID uint8
	)
	pflag.StringVarP(&address, "address", "a", "localhost:502", "emulator address (host:port)")
	pflag.Uint8VarP(&slaveID, "slave", "s", 1, "slave id to address")
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 2 {
		usage()
	}

	client := tcp.NewClient(address)
	ctx := context.Background()

	var (
		resp modbus.ProtocolDataUnit
		err  error
	)
	switch args[0] {
	case "read":
		if len(args) != 3 {
			usage()
		}
		resp, err = read(ctx, client, slaveID, parseU16(args[1]), parseU16(args[2]))
	case "write":
		if len(args) < 3 {
			usage()
		}
		values := make([]uint16, 0, len(args)-2)
		for _, arg := range args[2:] {
			values = append(values, parseU16(arg))
		}
		resp, err = write(ctx, client, slaveID, parseU16(args[1]), values)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if resp.IsException() {
		fmt.Fprintf(os.Stderr, "exception: function %#02x code %#02x\n", resp.FunctionCode, resp.Data[0])
		os.Exit(1)
	}
}

func read(ctx context.Context, client *tcp.Client, slaveID uint8, addr, count uint16) (modbus.ProtocolDataUnit, error) {
	req := modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeReadHoldingRegisters,
		Data:         []byte{byte(addr >> 8), byte(addr), byte(count >> 8), byte(count)},
	}
	resp, err := client.Send(ctx, slaveID, req)
	if err != nil || resp.IsException() {
		return resp, err
	}
	if len(resp.Data) < 1 || len(resp.Data)-1 != int(resp.Data[0]) {
		return resp, fmt.Errorf("malformed read response: %v", resp.Data)
	}
	for i := 1; i+1 < len(resp.Data); i += 2 {
		value := uint16(resp.Data[i])<<8 | uint16(resp.Data[i+1])
		fmt.Printf("%d: %d\n", addr+uint16((i-1)/2), value)
	}
	return resp, nil
}

func write(ctx context.Context, client *tcp.Client, slaveID uint8, addr uint16, values []uint16) (modbus.ProtocolDataUnit, error) {
	var req modbus.ProtocolDataUnit
	if len(values) == 1 {
		req = modbus.ProtocolDataUnit{
			FunctionCode: modbus.FuncCodeWriteSingleRegister,
			Data:         []byte{byte(addr >> 8), byte(addr), byte(values[0] >> 8), byte(values[0])},
		}
	} else {
		quantity := uint16(len(values))
		data := []byte{
			byte(addr >> 8), byte(addr),
			byte(quantity >> 8), byte(quantity),
			byte(quantity * 2),
		}
		for _, v := range values {
			data = append(data, byte(v>>8), byte(v))
		}
		req = modbus.ProtocolDataUnit{
			FunctionCode: modbus.FuncCodeWriteMultipleRegister,
			Data:         data,
		}
	}
	resp, err := client.Send(ctx, slaveID, req)
	if err == nil && !resp.IsException() {
		fmt.Println("ok")
	}
	return resp, err
}

func parseU16(s string) uint16 {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid number %q\n", s)
		os.Exit(1)
	}
	return uint16(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] read <addr> <count> | write <addr> <value>...\n", os.Args[0])
	pflag.PrintDefaults()
	os.Exit(2)
}
