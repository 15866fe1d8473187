// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStorage persists the register banks as a single JSON document.
// The whole document is rewritten on every Save; the persister's
// coalescing queue keeps that affordable under bursts of writes.
type FileStorage struct {
	path string
}

// NewFileStorage creates a FileStorage persisting to path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// document is the on-disk shape. Slave ids become JSON object keys.
type document struct {
	Slaves map[uint8][]uint16 `json:"slaves"`
}

// Load reads the JSON document. A missing file is not an error, it
// simply yields no banks.
func (fs *FileStorage) Load() (map[uint8][]uint16, error) {
	raw, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[uint8][]uint16{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", fs.path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fs.path, err)
	}
	if doc.Slaves == nil {
		doc.Slaves = map[uint8][]uint16{}
	}
	return doc.Slaves, nil
}

// Save writes the document to a temporary file and renames it into
// place, so a crash mid-save never leaves a truncated document.
func (fs *FileStorage) Save(banks map[uint8][]uint16) error {
	raw, err := json.Marshal(document{Slaves: banks})
	if err != nil {
		return fmt.Errorf("failed to encode slave data: %w", err)
	}

	tmp := fs.path + ".tmp"
	if dir := filepath.Dir(fs.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", fs.path, err)
	}
	return nil
}

func (fs *FileStorage) Close() error {
	return nil
}
