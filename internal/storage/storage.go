// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package storage persists the emulated slaves' register banks.
// Backends range from no-op memory to JSON files, memory-mapped files
// and a SQL database.
package storage

// Storage loads and saves the register banks of all configured slaves.
type Storage interface {
	// Load returns the persisted banks keyed by slave id. A backend
	// with no prior data returns an empty map; the caller creates
	// zeroed banks for any configured slave that is missing.
	Load() (map[uint8][]uint16, error)

	// Save persists a snapshot of all banks. Backends that track the
	// live banks directly (mmap) may ignore the argument.
	Save(banks map[uint8][]uint16) error

	Close() error
}
