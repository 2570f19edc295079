package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/scrypster/mnemex/internal/storage"
)

// Adapter implements storage.Adapter on a single-writer SQLite connection.
// The schema itself is created by the migration runner, not here — Open
// only establishes the connection and its pragmas.
type Adapter struct {
	db *sql.DB
}

// Open opens a SQLite database with the same WAL self-healing behavior the
// embedded store has always had: if the initial open fails because of a
// stale WAL left behind by a crashed process, it verifies no live process
// holds the WAL files and retries once after removing them.
func Open(dsn string) (*Adapter, error) {
	a, err := open(dsn)
	if err == nil {
		return a, nil
	}
	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}
	removeStaleWAL(dbPath)

	a, retryErr := open(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("sqlite: open failed after WAL recovery: %w (original: %v)", retryErr, err)
	}
	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return a, nil
}

func open(dsn string) (*Adapter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// One writer at a time; WAL lets readers proceed without blocking it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign_keys: %w", err)
	}

	return &Adapter{db: db}, nil
}

// DB exposes the underlying *sql.DB for the migration runner and the
// concrete MemoryStore, which both need lower-level access than the
// Adapter interface offers.
func (a *Adapter) DB() *sql.DB { return a.db }

func (a *Adapter) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.ClassifyError("sqlite.Query", err, isUniqueViolation)
	}
	return rows, nil
}

func (a *Adapter) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return a.db.QueryRowContext(ctx, query, args...)
}

func (a *Adapter) Insert(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, storage.ClassifyError("sqlite.Insert", err, isUniqueViolation)
	}
	return res, nil
}

func (a *Adapter) Update(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, storage.ClassifyError("sqlite.Update", err, isUniqueViolation)
	}
	return res, nil
}

func (a *Adapter) Delete(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, storage.ClassifyError("sqlite.Delete", err, isUniqueViolation)
	}
	return res, nil
}

func (a *Adapter) BeginTransaction(ctx context.Context) (storage.Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.ClassifyError("sqlite.BeginTransaction", err, nil)
	}
	return &txAdapter{tx: tx}, nil
}

func (a *Adapter) Close() error { return a.db.Close() }

// txAdapter adapts *sql.Tx to storage.Tx the same way Adapter adapts *sql.DB.
type txAdapter struct {
	tx *sql.Tx
}

func (t *txAdapter) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.ClassifyError("sqlite.tx.Query", err, isUniqueViolation)
	}
	return rows, nil
}

func (t *txAdapter) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *txAdapter) Insert(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, storage.ClassifyError("sqlite.tx.Insert", err, isUniqueViolation)
	}
	return res, nil
}

func (t *txAdapter) Update(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, storage.ClassifyError("sqlite.tx.Update", err, isUniqueViolation)
	}
	return res, nil
}

func (t *txAdapter) Delete(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, storage.ClassifyError("sqlite.tx.Delete", err, isUniqueViolation)
	}
	return res, nil
}

func (t *txAdapter) BeginTransaction(ctx context.Context) (storage.Tx, error) {
	return nil, fmt.Errorf("sqlite: nested transactions are not supported")
}

func (t *txAdapter) Commit() error   { return t.tx.Commit() }
func (t *txAdapter) Rollback() error { return t.tx.Rollback() }
func (t *txAdapter) Close() error    { return nil }

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") || strings.Contains(msg, "database is locked")
}

func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}
	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}
	return dsn
}

// isWALStale reports whether -shm/-wal files exist and no live process has
// them open (checked via lsof when available; conservative otherwise).
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"
	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}

	cmd := exec.Command(lsofPath, dbPath, shmPath, walPath)
	out, _ := cmd.Output()
	return len(strings.TrimSpace(string(out))) == 0
}

func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: failed to remove stale %s: %v", path, err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
