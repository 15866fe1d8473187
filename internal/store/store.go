// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package store holds the in-memory register banks of the emulated
// slave devices. Each configured slave id owns exactly NumRegisters
// holding registers; the bank is never resized.
package store

import "sync"

// NumRegisters is the fixed size of every slave's holding register bank.
const NumRegisters = 500

// Store is shared by both transports and by the control surface, so all
// access goes through one RWMutex. A register read or write completes
// fully before any other request touches the bank.
type Store struct {
	mu    sync.RWMutex
	banks map[uint8][]uint16
}

// New creates a Store with a zeroed bank for each of the given slave ids.
func New(slaveIDs []uint8) *Store {
	banks := make(map[uint8][]uint16, len(slaveIDs))
	for _, id := range slaveIDs {
		banks[id] = make([]uint16, NumRegisters)
	}
	return &Store{banks: banks}
}

// NewFromBanks creates a Store over externally owned banks, e.g. slices
// backed by a memory-mapped file. Banks shorter than NumRegisters are
// replaced by zeroed ones.
func NewFromBanks(banks map[uint8][]uint16) *Store {
	for id, bank := range banks {
		if len(bank) != NumRegisters {
			banks[id] = make([]uint16, NumRegisters)
		}
	}
	return &Store{banks: banks}
}

// Read returns count registers starting at addr. Registers past the end
// of the bank read as zero; a read never fails. Reads addressed to an
// unknown slave return all zeroes, callers gate on Exists first.
func (s *Store) Read(slaveID uint8, addr, count uint16) []uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]uint16, count)
	bank, ok := s.banks[slaveID]
	if !ok {
		return values
	}
	for i := 0; i < int(count); i++ {
		if int(addr)+i < len(bank) {
			values[i] = bank[int(addr)+i]
		}
	}
	return values
}

// Write assigns value to the register at addr. Writes past the end of
// the bank or to an unknown slave are silently dropped. The return
// value reports whether a register was actually assigned, so callers
// can decide whether persistence is due.
func (s *Store) Write(slaveID uint8, addr, value uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	bank, ok := s.banks[slaveID]
	if !ok || int(addr) >= len(bank) {
		return false
	}
	bank[addr] = value
	return true
}

// Exists reports whether a slave id is configured.
func (s *Store) Exists(slaveID uint8) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.banks[slaveID]
	return ok
}

// SlaveIDs returns the configured slave ids.
func (s *Store) SlaveIDs() []uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uint8, 0, len(s.banks))
	for id := range s.banks {
		ids = append(ids, id)
	}
	return ids
}

// Clear zeroes all registers of one slave.
func (s *Store) Clear(slaveID uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bank, ok := s.banks[slaveID]
	if !ok {
		return
	}
	for i := range bank {
		bank[i] = 0
	}
}

// ClearAll zeroes every configured slave.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bank := range s.banks {
		for i := range bank {
			bank[i] = 0
		}
	}
}

// Snapshot returns a deep copy of all banks, taken under the read lock.
// Persistence backends serialize the copy without holding up requests.
func (s *Store) Snapshot() map[uint8][]uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	banks := make(map[uint8][]uint16, len(s.banks))
	for id, bank := range s.banks {
		cp := make([]uint16, len(bank))
		copy(cp, bank)
		banks[id] = cp
	}
	return banks
}
