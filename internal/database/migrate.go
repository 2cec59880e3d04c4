package database

import (
	"database/sql"
	"fmt"
	"log"
)

func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// preVersioned reports whether the file holds an articles table without a
// user_version stamp, i.e. it predates schema versioning.
func preVersioned(conn *sql.DB) (bool, error) {
	var n int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='articles'",
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("probing schema tables: %w", err)
	}
	return n > 0, nil
}

// migrate applies every migration above the stored user_version, in order.
func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	// A populated file at version 0 was created before versioning; its schema
	// already matches migration 1, so stamp it rather than re-running the DDL.
	if current == 0 {
		old, err := preVersioned(conn)
		if err != nil {
			return err
		}
		if old {
			log.Printf("stamping pre-versioning database as schema 1")
			if _, err := conn.Exec("PRAGMA user_version = 1"); err != nil {
				return fmt.Errorf("stamping schema 1: %w", err)
			}
			current = 1
		}
	}

	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		log.Printf("applying migration %d: %s", m.Version, m.Description)

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// modernc/sqlite rejects PRAGMA user_version inside a transaction. A
		// crash between the commit and the stamp only re-runs idempotent DDL.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("stamping schema %d: %w", m.Version, err)
		}
	}

	return nil
}
