// Package dbexec provides database query execution abstractions.
// It supports direct execution against a pool and execution inside a
// transaction shared by concurrent callers.
package dbexec

import (
	"context"
	"database/sql"
	"sync"
)

// Rows abstracts sql.Rows to allow wrapped cleanup behavior.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts SQL execution so callers can run the same code
// against a pool or a transaction.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TxExecutor is a QueryExecutor bound to one transaction.
type TxExecutor interface {
	QueryExecutor
	Commit() error
	Rollback() error
}

// Beginner starts transactions.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (TxExecutor, error)
}

// StandardExecutor executes queries directly against a database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor that runs queries directly against the database.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

func (e *StandardExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction. The returned executor is safe for concurrent
// use: statements are serialized and a query holds the transaction until its
// rows are closed, since a connection can only stream one result set at a time.
func (e *StandardExecutor) BeginTx(ctx context.Context, opts *sql.TxOptions) (TxExecutor, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	tx, err := e.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &txExecutor{tx: tx}, nil
}

type txExecutor struct {
	mu sync.Mutex
	tx *sql.Tx
}

func (e *txExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	e.mu.Lock()
	rows, err := e.tx.QueryContext(ctx, query, args...)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	return &lockedRows{Rows: rows, cleanup: e.mu.Unlock}, nil
}

func (e *txExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tx.ExecContext(ctx, query, args...)
}

func (e *txExecutor) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tx.Commit()
}

func (e *txExecutor) Rollback() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tx.Rollback()
}

type lockedRows struct {
	*sql.Rows
	once    sync.Once
	cleanup func()
}

func (r *lockedRows) Close() error {
	defer r.once.Do(r.cleanup)
	return r.Rows.Close()
}
