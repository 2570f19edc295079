// Package storage defines the relational storage adapter and the higher
// level memory-store façade built on top of it (§4.1, §4.10). Two concrete
// adapters exist: internal/storage/sqlite (embedded, single-file) and
// internal/storage/postgres (networked). Both accept query text written
// with '?' placeholders.
package storage

import (
	"context"
	"database/sql"

	"github.com/scrypster/mnemex/internal/apperr"
)

// Adapter is the thin, parameterized relational interface every backing
// store implements. Queries use '?' placeholders: the postgres adapter
// rewrites each one to $1…$N and the sqlite adapter passes the text through
// unchanged; query text written with $N placeholders is not rewritten.
// Operations return a Go error rather than panicking on expected
// conditions — unique-constraint violations surface as
// apperr.KindConflict, everything else as apperr.KindDatabase. The
// adapters do not check rows affected; callers that pass sql.ErrNoRows to
// ClassifyError get apperr.KindNotFound.
type Adapter interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
	Insert(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Update(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Delete(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	BeginTransaction(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a transaction-scoped Adapter. Commit and Rollback are each
// idempotent-safe to call once; callers must always defer a Rollback
// immediately after BeginTransaction — committing first makes the deferred
// Rollback a harmless no-op (sql.Tx already guarantees this), so release on
// both commit and rollback paths is guaranteed.
type Tx interface {
	Adapter
	Commit() error
	Rollback() error
}

// classify turns a raw database/sql error into an apperr-tagged error. op
// names the calling operation; isConflict lets each dialect's own
// unique-violation detector override the generic "database" default.
func classify(op string, err error, isConflict func(error) bool) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return apperr.Wrap(apperr.KindNotFound, op, err)
	}
	if isConflict != nil && isConflict(err) {
		return apperr.Wrap(apperr.KindConflict, op, err)
	}
	return apperr.Wrap(apperr.KindDatabase, op, err)
}

// ClassifyError is exported so the sqlite and postgres adapters can reuse
// the same classification helper with their own conflict detector.
func ClassifyError(op string, err error, isConflict func(error) bool) error {
	return classify(op, err, isConflict)
}
