package executor

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/debug"
)

// ScopeState is the lifecycle state of a Scope.
type ScopeState int

const (
	// ScopeIdle has not begun.
	ScopeIdle ScopeState = iota
	// ScopeOpen owns a transaction on one pooled connection.
	ScopeOpen
	// ScopeCommitted has committed.
	ScopeCommitted
	// ScopeRolledBack has rolled back.
	ScopeRolledBack
)

func (s ScopeState) String() string {
	switch s {
	case ScopeIdle:
		return "idle"
	case ScopeOpen:
		return "open"
	case ScopeCommitted:
		return "committed"
	case ScopeRolledBack:
		return "rolled back"
	}
	return "unknown"
}

// Scope is one transaction moving Idle → Open → Committed | RolledBack.
// Scopes are not safe for concurrent use.
type Scope struct {
	adapter database.Adapter
	opts    *sql.TxOptions
	tx      database.Transaction
	state   ScopeState
}

// NewScope creates an idle scope.
func NewScope(adapter database.Adapter, opts *sql.TxOptions) *Scope {
	return &Scope{adapter: adapter, opts: opts}
}

// State returns the current state.
func (s *Scope) State() ScopeState {
	return s.state
}

func (s *Scope) illegal(op string) error {
	return domain.Errorf(domain.ErrTransactionAborted, "cannot %s a %s transaction", op, s.state)
}

// Begin opens the transaction.
func (s *Scope) Begin(ctx context.Context) error {
	if s.state != ScopeIdle {
		return s.illegal("begin")
	}
	tx, err := s.adapter.Begin(ctx, s.opts)
	if err != nil {
		return err
	}
	s.tx = tx
	s.state = ScopeOpen
	return nil
}

// Exec runs a statement that returns no rows.
func (s *Scope) Exec(ctx context.Context, stmt domain.CompiledStatement) (sql.Result, error) {
	if s.state != ScopeOpen {
		return nil, s.illegal("execute in")
	}
	logStatement(stmt)
	return s.tx.Execute(ctx, stmt.SQL, stmt.Params...)
}

// Query runs a statement that returns rows.
func (s *Scope) Query(ctx context.Context, stmt domain.CompiledStatement) (*sql.Rows, error) {
	if s.state != ScopeOpen {
		return nil, s.illegal("query in")
	}
	logStatement(stmt)
	return s.tx.Query(ctx, stmt.SQL, stmt.Params...)
}

// Commit commits an open scope. A failed commit leaves the scope rolled
// back and returns TransactionAborted.
func (s *Scope) Commit() error {
	if s.state != ScopeOpen {
		return s.illegal("commit")
	}
	if err := s.tx.Commit(); err != nil {
		s.state = ScopeRolledBack
		return domain.Wrap(domain.ErrTransactionAborted, err, "commit failed")
	}
	s.state = ScopeCommitted
	return nil
}

// Rollback rolls back an open scope.
func (s *Scope) Rollback() error {
	if s.state != ScopeOpen {
		return s.illegal("roll back")
	}
	s.state = ScopeRolledBack
	return s.tx.Rollback()
}

// Release rolls back the scope if it is still open. It is meant to be
// deferred right after Begin and also runs while a panic unwinds.
func (s *Scope) Release() {
	if s.state != ScopeOpen {
		return
	}
	// a canceled context has already rolled the transaction back
	if err := s.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		debug.Warn("rollback failed", "error", err)
	}
}

func logStatement(stmt domain.CompiledStatement) {
	if debug.Enabled() {
		debug.Debug("executing statement", "sql", stmt.SQL, "params", len(stmt.Params))
	}
}
