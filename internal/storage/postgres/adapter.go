package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/lib/pq"

	"github.com/scrypster/mnemex/internal/storage"
)

// Adapter implements storage.Adapter on a pooled lib/pq connection.
// Open's dim argument is the fixed embedding width; vector_entries.embedding
// is widened to vector(dim) once pgvector is confirmed available,
// mirroring the teacher's own extension probe-then-migrate sequence.
type Adapter struct {
	db                *sql.DB
	PgvectorAvailable bool
}

// Open connects to PostgreSQL and probes for the pgvector extension. The
// relational schema itself is created by the migration runner, not here.
// Callers that get PgvectorAvailable == false should fall back to a
// brute-force search path rather than use pgvectorindex.
func Open(ctx context.Context, dsn string, dim int) (*Adapter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	a := &Adapter{db: db}
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension not available (vector search disabled): %v", err)
	} else {
		a.PgvectorAvailable = true
		alterSQL := fmt.Sprintf("ALTER TABLE vector_entries ALTER COLUMN embedding TYPE vector(%d)", dim)
		if _, err := db.ExecContext(ctx, alterSQL); err != nil {
			log.Printf("postgres: failed to widen vector_entries.embedding (vector search disabled): %v", err)
			a.PgvectorAvailable = false
		}
	}

	return a, nil
}

func (a *Adapter) DB() *sql.DB { return a.db }

func (a *Adapter) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := a.db.QueryContext(ctx, rewritePlaceholders(query), args...)
	if err != nil {
		return nil, storage.ClassifyError("postgres.Query", err, isUniqueViolation)
	}
	return rows, nil
}

func (a *Adapter) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return a.db.QueryRowContext(ctx, rewritePlaceholders(query), args...)
}

func (a *Adapter) Insert(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := a.db.ExecContext(ctx, rewritePlaceholders(query), args...)
	if err != nil {
		return nil, storage.ClassifyError("postgres.Insert", err, isUniqueViolation)
	}
	return res, nil
}

func (a *Adapter) Update(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := a.db.ExecContext(ctx, rewritePlaceholders(query), args...)
	if err != nil {
		return nil, storage.ClassifyError("postgres.Update", err, isUniqueViolation)
	}
	return res, nil
}

func (a *Adapter) Delete(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := a.db.ExecContext(ctx, rewritePlaceholders(query), args...)
	if err != nil {
		return nil, storage.ClassifyError("postgres.Delete", err, isUniqueViolation)
	}
	return res, nil
}

func (a *Adapter) BeginTransaction(ctx context.Context) (storage.Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.ClassifyError("postgres.BeginTransaction", err, nil)
	}
	return &txAdapter{tx: tx}, nil
}

func (a *Adapter) Close() error { return a.db.Close() }

type txAdapter struct {
	tx *sql.Tx
}

func (t *txAdapter) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, rewritePlaceholders(query), args...)
	if err != nil {
		return nil, storage.ClassifyError("postgres.tx.Query", err, isUniqueViolation)
	}
	return rows, nil
}

func (t *txAdapter) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(ctx, rewritePlaceholders(query), args...)
}

func (t *txAdapter) Insert(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, rewritePlaceholders(query), args...)
	if err != nil {
		return nil, storage.ClassifyError("postgres.tx.Insert", err, isUniqueViolation)
	}
	return res, nil
}

func (t *txAdapter) Update(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, rewritePlaceholders(query), args...)
	if err != nil {
		return nil, storage.ClassifyError("postgres.tx.Update", err, isUniqueViolation)
	}
	return res, nil
}

func (t *txAdapter) Delete(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, rewritePlaceholders(query), args...)
	if err != nil {
		return nil, storage.ClassifyError("postgres.tx.Delete", err, isUniqueViolation)
	}
	return res, nil
}

func (t *txAdapter) BeginTransaction(ctx context.Context) (storage.Tx, error) {
	return nil, fmt.Errorf("postgres: nested transactions are not supported")
}

func (t *txAdapter) Commit() error   { return t.tx.Commit() }
func (t *txAdapter) Rollback() error { return t.tx.Rollback() }
func (t *txAdapter) Close() error    { return nil }

// rewritePlaceholders turns the Adapter interface's SQLite-convention '?'
// placeholders into Postgres's $1…$N, so MemoryStore's query text is shared
// verbatim between the sqlite and postgres packages (§4.1's "hide the
// dialect behind the same placeholder convention").
func rewritePlaceholders(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}
	return pqErr.Code == "23505"
}
