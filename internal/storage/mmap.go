// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package storage

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"

	"github.com/Aranyalma2/samsung-hvac-emulator/internal/store"
)

const (
	// One fixed-size bank slot per possible slave id. Unit ids are a
	// single byte, so the file covers all 256 slots regardless of
	// which ids are configured.
	mmapBankBytes = store.NumRegisters * 2
	mmapTotalSize = 256 * mmapBankBytes
)

// MmapStorage backs the register banks directly with a memory-mapped
// file. The banks handed out by Load alias the mapping, so every
// register write lands in the page cache immediately and Save is just
// an msync.
//
// Warning: multi-byte values rely on the host's endianness. The file
// is not portable across architectures with different byte order.
type MmapStorage struct {
	path     string
	slaveIDs []uint8
	file     *os.File
	data     mmap.MMap
}

// NewMmapStorage creates a MmapStorage serving banks for the given
// slave ids.
func NewMmapStorage(path string, slaveIDs []uint8) *MmapStorage {
	return &MmapStorage{
		path:     path,
		slaveIDs: slaveIDs,
	}
}

// Load maps the file and returns zero-copy banks for the configured
// slave ids.
func (ms *MmapStorage) Load() (map[uint8][]uint16, error) {
	f, err := os.OpenFile(ms.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open mmap file: %w", err)
	}
	ms.file = f

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != int64(mmapTotalSize) {
		if err := f.Truncate(int64(mmapTotalSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resize mmap file: %w", err)
		}
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	ms.data = data

	banks := make(map[uint8][]uint16, len(ms.slaveIDs))
	for _, id := range ms.slaveIDs {
		slot := data[int(id)*mmapBankBytes : (int(id)+1)*mmapBankBytes]
		banks[id] = unsafe.Slice((*uint16)(unsafe.Pointer(&slot[0])), store.NumRegisters)
	}
	return banks, nil
}

// Save flushes the mapping to disk. The banks argument is ignored, the
// mapping already holds the live values.
func (ms *MmapStorage) Save(banks map[uint8][]uint16) error {
	if ms.data == nil {
		return fmt.Errorf("mmap data is nil")
	}
	return ms.data.Flush()
}

// Close unmaps and closes the file.
func (ms *MmapStorage) Close() error {
	var err error
	if ms.data != nil {
		if e := ms.data.Unmap(); e != nil {
			err = e
		}
		ms.data = nil
	}
	if ms.file != nil {
		if e := ms.file.Close(); e != nil {
			err = e
		}
		ms.file = nil
	}
	return err
}
