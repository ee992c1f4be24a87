package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// The history schema is a single table, so Open applies it directly instead
// of running versioned migration files.
const schema = `
CREATE TABLE IF NOT EXISTS connections (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    hostname     TEXT NOT NULL DEFAULT '',
    address      TEXT NOT NULL,
    connected_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_connections_address ON connections (address);
`

// Connection is one recorded join, newest first in query results.
type Connection struct {
	ID          int64
	Hostname    string
	Address     string
	ConnectedAt time.Time
}

// Store persists the connection history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database under dir and ensures
// the schema exists.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	dbPath := filepath.Join(dir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one join. The same address recorded again keeps its own row,
// so Recent reflects actual order of play.
func (s *Store) Record(ctx context.Context, hostname, address string) (*Connection, error) {
	if address == "" {
		return nil, fmt.Errorf("connection address required")
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO connections (hostname, address, connected_at) VALUES (?, ?, ?)`,
		hostname,
		address,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert connection: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read insert id: %w", err)
	}

	return &Connection{ID: id, Hostname: hostname, Address: address, ConnectedAt: now}, nil
}

// Recent returns up to limit connections, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Connection, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, hostname, address, connected_at
           FROM connections
          ORDER BY id DESC
          LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	var connections []Connection
	for rows.Next() {
		var (
			conn      Connection
			timestamp string
		)
		if err := rows.Scan(&conn.ID, &conn.Hostname, &conn.Address, &timestamp); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339Nano, timestamp); parseErr == nil {
			conn.ConnectedAt = parsed
		}
		connections = append(connections, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}

	return connections, nil
}

// Addresses returns every distinct address ever joined, most recent first.
// The cache rebuild uses it to keep regions warm for known servers.
func (s *Store) Addresses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT address FROM connections GROUP BY address ORDER BY MAX(id) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addrs = append(addrs, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}

	return addrs, nil
}
