package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"
)

const ledgerFile = "requests.db"

// DB wraps the SQLite request ledger with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex

	// tempDir is removed by Close when the ledger was created by OpenTemp.
	tempDir string
}

// OpenTemp creates a ledger in a fresh temporary directory. The directory is
// deleted on Close, so nothing outlives the process.
func OpenTemp() (*DB, error) {
	dir, err := os.MkdirTemp("", "yoloview-")
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := New(filepath.Join(dir, ledgerFile))
	if err != nil {
		return nil, multierr.Append(err, os.RemoveAll(dir))
	}
	db.tempDir = dir
	return db, nil
}

// New opens the ledger at dbPath and creates its schema.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the requests table if it doesn't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		annotated_filename TEXT NOT NULL,
		pdf_filename TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		cleaned INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_requests_session_id ON requests(session_id);
	CREATE INDEX IF NOT EXISTS idx_requests_cleaned ON requests(cleaned);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection and drops a temporary ledger.
func (db *DB) Close() error {
	err := db.conn.Close()
	if db.tempDir != "" {
		err = multierr.Append(err, os.RemoveAll(db.tempDir))
	}
	return err
}

// Dir returns the directory holding a temporary ledger, or "".
func (db *DB) Dir() string {
	return db.tempDir
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
