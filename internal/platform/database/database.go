package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	log "github.com/Ptt-Alertor/logrus"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver for local runs and tests
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Open connects to the store and verifies the connection. SQLite databases are
// pinned to a single connection so ":memory:" stays one database.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver == DriverSQLite && !strings.Contains(dsn, "_time_format=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_time_format=sqlite"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	log.WithField("driver", driver).Info("Successfully connected to database")
	return db, nil
}

// Migrate creates the schema when missing. The DDL sticks to the subset that
// PostgreSQL and SQLite both accept.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			full_name TEXT NOT NULL,
			national_id TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'employee',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS expense_requests (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL UNIQUE,
			employee_id TEXT NOT NULL REFERENCES accounts(id),
			amount NUMERIC(14, 2) NOT NULL CHECK (amount > 0),
			currency TEXT NOT NULL,
			reason TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expense_requests_employee ON expense_requests (employee_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_expense_requests_status ON expense_requests (status, created_at)`,
		`CREATE TABLE IF NOT EXISTS expense_attachments (
			request_id TEXT NOT NULL REFERENCES expense_requests(id),
			position INTEGER NOT NULL,
			path TEXT NOT NULL,
			original_name TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			PRIMARY KEY (request_id, position)
		)`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
