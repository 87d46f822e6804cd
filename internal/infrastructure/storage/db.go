package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id         TEXT PRIMARY KEY,
		scope      TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		body       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_scope ON records (scope, created_at)`,
	`CREATE TABLE IF NOT EXISTS record_labels (
		record_id TEXT NOT NULL REFERENCES records (id) ON DELETE CASCADE,
		label     TEXT NOT NULL,
		position  INTEGER NOT NULL,
		PRIMARY KEY (record_id, label)
	)`,
}

// DB is an open record database together with the placeholder style of its driver.
type DB struct {
	*sql.DB
	placeholder sq.PlaceholderFormat
}

// Open connects to Postgres for postgres:// DSNs and to SQLite otherwise, then ensures the schema.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if isPostgres(dsn) {
		return open(ctx, "postgres", dsn, sq.Dollar, nil)
	}

	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	return open(ctx, "sqlite", dsn, sq.Question, pragmas)
}

func open(ctx context.Context, driver, dsn string, placeholder sq.PlaceholderFormat, pragmas []string) (*DB, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// One connection keeps :memory: databases and PRAGMAs consistent.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	for _, stmt := range append(pragmas, schema...) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
	}

	return &DB{DB: conn, placeholder: placeholder}, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
