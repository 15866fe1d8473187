// Copyright (c) 2026 Aranyalma2. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package storage

import (
	"database/sql"
	"fmt"

	"github.com/Aranyalma2/samsung-hvac-emulator/internal/store"
)

// SQLStorage persists the register banks in a SQL database, one row
// per non-zero register.
// Note: the driver (e.g. sqlite3) must be imported in main.go.
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
}

// NewSQLStorage creates a SQLStorage for the given driver and DSN.
func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{
		driver: driver,
		dsn:    dsn,
	}
}

// Load connects to the database and reads all persisted registers.
func (s *SQLStorage) Load() (map[uint8][]uint16, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	s.db = db

	if err := s.initSchema(); err != nil {
		db.Close()
		s.db = nil
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	rows, err := db.Query("SELECT slave_id, address, value FROM hvac_registers")
	if err != nil {
		db.Close()
		s.db = nil
		return nil, fmt.Errorf("failed to query registers: %w", err)
	}
	defer rows.Close()

	banks := map[uint8][]uint16{}
	for rows.Next() {
		var id, addr, val int
		if err := rows.Scan(&id, &addr, &val); err != nil {
			continue
		}
		if id < 0 || id > 255 || addr < 0 || addr >= store.NumRegisters {
			continue
		}
		bank, ok := banks[uint8(id)]
		if !ok {
			bank = make([]uint16, store.NumRegisters)
			banks[uint8(id)] = bank
		}
		bank[addr] = uint16(val)
	}
	return banks, rows.Err()
}

func (s *SQLStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS hvac_registers (
		slave_id INTEGER,
		address INTEGER,
		value INTEGER,
		PRIMARY KEY (slave_id, address)
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Save rewrites the table from the snapshot inside one transaction.
// Zero registers are not stored, Load re-creates them implicitly.
func (s *SQLStorage) Save(banks map[uint8][]uint16) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM hvac_registers"); err != nil {
		return fmt.Errorf("failed to clear registers: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO hvac_registers (slave_id, address, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for id, bank := range banks {
		for addr, val := range bank {
			if val == 0 {
				continue
			}
			if _, err := stmt.Exec(int(id), addr, int(val)); err != nil {
				return fmt.Errorf("failed to persist register %d/%d: %w", id, addr, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
