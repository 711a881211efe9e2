package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"   // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

const pingTimeout = 5 * time.Second

type dialect struct {
	name   string
	schema string
	load   string
	save   string
}

var (
	sqliteDialect = dialect{
		name: "sqlite",
		schema: `CREATE TABLE IF NOT EXISTS documents (
	doc_key    TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`,
		load: `SELECT data FROM documents WHERE doc_key = ?`,
		save: `INSERT INTO documents (doc_key, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT (doc_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
	}
	postgresDialect = dialect{
		name: "postgres",
		schema: `CREATE TABLE IF NOT EXISTS documents (
	doc_key    TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at BIGINT NOT NULL
)`,
		load: `SELECT data FROM documents WHERE doc_key = $1`,
		save: `INSERT INTO documents (doc_key, data, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (doc_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
	}
)

// SQL stores documents in a single "documents" table.
type SQL struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQLite opens (or creates) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; the mutation queue already serializes per document.
	db.SetMaxOpenConns(1)
	return newSQL(ctx, db, sqliteDialect)
}

// OpenPostgres connects to PostgreSQL with the given DSN.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return newSQL(ctx, db, postgresDialect)
}

func newSQL(ctx context.Context, db *sql.DB, d dialect) (*SQL, error) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if _, err := db.ExecContext(pingCtx, d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s schema: %w", d.name, err)
	}
	return &SQL{db: db, dialect: d}, nil
}

func (s *SQL) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, s.dialect.load, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return data, nil
}

func (s *SQL) Save(ctx context.Context, key string, data []byte) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.save, key, data, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
