package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS audits (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					bill_ref TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					total_declared INTEGER NOT NULL,
					confirmed INTEGER NOT NULL,
					controversial INTEGER NOT NULL,
					opaque INTEGER NOT NULL,
					legitimate INTEGER NOT NULL,
					state TEXT NOT NULL
				)`,
				`CREATE INDEX idx_audits_created ON audits(created_at)`,

				`CREATE TABLE IF NOT EXISTS findings (
					id TEXT NOT NULL,
					audit_id INTEGER NOT NULL,
					category TEXT NOT NULL,
					amount INTEGER NOT NULL,
					label TEXT NOT NULL,
					rationale TEXT,
					action TEXT NOT NULL,
					hypothesis_id TEXT,
					evidence TEXT,
					PRIMARY KEY (audit_id, id),
					FOREIGN KEY (audit_id) REFERENCES audits(id)
				)`,
				`CREATE INDEX idx_findings_category ON findings(category)`,
			}
			for _, q := range queries {
				if _, err := tx.Exec(q); err != nil {
					return fmt.Errorf("migration 1 failed: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add alerts table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS alerts (
				audit_id INTEGER NOT NULL,
				position INTEGER NOT NULL,
				message TEXT NOT NULL,
				PRIMARY KEY (audit_id, position),
				FOREIGN KEY (audit_id) REFERENCES audits(id)
			)`)
			if err != nil {
				return fmt.Errorf("migration 2 failed: %w", err)
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}

	var current sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_versions`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if current.Valid && m.Version <= int(current.Int64) {
			continue
		}

		slog.Info("Applying migration", "version", m.Version, "description", m.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return err
		}

		if _, err := tx.Exec(`INSERT INTO schema_versions (version) VALUES (?)`, m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
