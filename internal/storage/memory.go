// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package storage

// MemoryStorage is a no-op storage, register values do not survive a
// restart.
type MemoryStorage struct{}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (ms *MemoryStorage) Load() (map[uint8][]uint16, error) {
	return map[uint8][]uint16{}, nil
}

func (ms *MemoryStorage) Save(banks map[uint8][]uint16) error {
	return nil
}

func (ms *MemoryStorage) Close() error {
	return nil
}
