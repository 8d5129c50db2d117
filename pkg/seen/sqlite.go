package seen

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps seen keys across restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer keeps inserts and pruning ordered.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	const query = `
	CREATE TABLE IF NOT EXISTS seen_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		message_key TEXT NOT NULL UNIQUE,
		recorded_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT message_key FROM seen_messages ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query seen keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan seen key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen keys: %w", err)
	}
	return keys, nil
}

func (s *SQLiteStore) Add(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO seen_messages (message_key) VALUES (?)`, key); err != nil {
		return fmt.Errorf("insert seen key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Prune(ctx context.Context, keep int) error {
	const query = `
	DELETE FROM seen_messages
	WHERE seq NOT IN (SELECT seq FROM seen_messages ORDER BY seq DESC LIMIT ?)`
	if _, err := s.db.ExecContext(ctx, query, keep); err != nil {
		return fmt.Errorf("prune seen keys: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
