// Package database owns the SQLite connection and the migration runner.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure-Go driver, registers "sqlite"
)

// recoverableErrors are migration failures that mean the statement already
// took effect on a previous, interrupted run.
var recoverableErrors = []string{
	"duplicate column name",
}

// DB wraps the shared connection pool.
type DB struct {
	Conn *sql.DB
}

// New opens (creating if needed) the SQLite database at dbPath and applies
// every pending migration from migrationsFS.
func New(dbPath string, migrationsFS fs.FS) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Conn: conn}

	if err := db.runMigrations(migrationsFS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	zap.L().Named("database").Info("connected and migrations applied", zap.String("path", dbPath))
	return db, nil
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.Conn.Close()
}

// Ping checks connectivity; used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.Conn.PingContext(ctx)
}

// runMigrations applies the .sql files of migrationsFS in lexical order,
// recording each one in schema_migrations so it runs only once.
func (db *DB) runMigrations(migrationsFS fs.FS) error {
	log := zap.L().Named("database")

	if _, err := db.Conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	applied, err := db.appliedMigrations()
	if err != nil {
		return err
	}

	for _, file := range sqlFiles {
		if applied[file] {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		if err := db.execStatements(file, string(content)); err != nil {
			return err
		}

		if _, err := db.Conn.Exec(
			"INSERT INTO schema_migrations (filename) VALUES (?)", file,
		); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}

		log.Info("migration applied", zap.String("file", file))
	}

	return nil
}

func (db *DB) appliedMigrations() (map[string]bool, error) {
	rows, err := db.Conn.Query("SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate migration rows: %w", err)
	}
	return applied, nil
}

// execStatements runs a migration one statement at a time so that a
// recoverable failure skips only the offending statement.
func (db *DB) execStatements(filename, content string) error {
	for i, stmt := range splitStatements(content) {
		if _, err := db.Conn.Exec(stmt); err != nil {
			if isRecoverable(err) {
				zap.L().Named("database").Warn("migration statement skipped",
					zap.String("file", filename), zap.Int("statement", i+1), zap.Error(err))
				continue
			}
			return fmt.Errorf("failed to execute migration %s (statement %d): %w", filename, i+1, err)
		}
	}
	return nil
}

func isRecoverable(err error) bool {
	msg := err.Error()
	for _, pattern := range recoverableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// splitStatements splits SQL on semicolons outside single-quoted literals.
// Line comments are dropped so a ';' inside "-- ..." does not split.
func splitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inString := false

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		if !inString && ch == '-' && i+1 < len(sql) && sql[i+1] == '-' {
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			current.WriteByte('\n')
			continue
		}

		if ch == '\'' {
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				current.WriteString("''")
				i++
				continue
			}
			inString = !inString
		}

		if ch == ';' && !inString {
			flush()
			continue
		}

		current.WriteByte(ch)
	}
	flush()

	return statements
}
