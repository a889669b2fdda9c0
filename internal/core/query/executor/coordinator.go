// Package executor runs compiled statements against a backend adapter.
// Reads stream lazily; writes run inside one transaction that either
// commits as a whole or rolls back.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/adapters/telemetry"
	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/query/mapper"
)

// Operation names reported to telemetry.
const (
	OperationQuery  = "query"
	OperationMutate = "mutate"
)

// Options configures a Coordinator.
type Options struct {
	// StatementTimeout bounds every operation; zero means no deadline
	// beyond the caller's context.
	StatementTimeout time.Duration
	// Isolation is the isolation level of write transactions.
	Isolation sql.IsolationLevel
}

// ParseIsolation maps a configuration value to an isolation level.
func ParseIsolation(s string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return sql.LevelDefault, nil
	case "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	}
	return sql.LevelDefault, fmt.Errorf("unknown isolation level: %s", s)
}

// Coordinator executes compiled statements. It is safe for concurrent use;
// every call works on its own pooled connection.
type Coordinator struct {
	adapter   database.Adapter
	telemetry telemetry.Telemetry
	mapper    *mapper.ResultMapper
	opts      Options
}

// NewCoordinator creates a coordinator. A nil tel discards telemetry.
func NewCoordinator(adapter database.Adapter, tel telemetry.Telemetry, opts Options) *Coordinator {
	if tel == nil {
		tel = telemetry.NewNoopTelemetry()
	}
	return &Coordinator{
		adapter:   adapter,
		telemetry: tel,
		mapper:    mapper.NewResultMapper(adapter.ValueDecoder()),
		opts:      opts,
	}
}

// Dialect returns the backend dialect.
func (c *Coordinator) Dialect() domain.SQLDialect {
	return c.adapter.GetDialect()
}

// errReleased is the cancel cause once an operation has finished; it
// keeps the coordinator's own cleanup from reading as a cancellation.
var errReleased = errors.New("operation released")

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelCauseFunc) {
	ctx, cancelCause := context.WithCancelCause(ctx)
	if c.opts.StatementTimeout <= 0 {
		return ctx, cancelCause
	}
	ctx, cancel := context.WithTimeout(ctx, c.opts.StatementTimeout)
	return ctx, func(cause error) {
		cancelCause(cause)
		cancel()
	}
}

// Query runs a read statement and streams its records. The caller must
// close the stream; closing releases the connection. When an identity
// role is attached to ctx the read runs in a read-only transaction so the
// role applies.
func (c *Coordinator) Query(ctx context.Context, stmt domain.CompiledStatement) (mapper.RecordStream, error) {
	ctx, cancel := c.withTimeout(ctx)
	start := time.Now()

	var once sync.Once
	finish := func(err error) {
		once.Do(func() {
			c.record(ctx, OperationQuery, 1, start, c.classify(ctx, err))
			cancel(errReleased)
		})
	}

	stream, err := c.query(ctx, stmt, finish)
	if err != nil {
		finish(err)
		return nil, err
	}
	return stream, nil
}

func (c *Coordinator) query(ctx context.Context, stmt domain.CompiledStatement, done func(error)) (mapper.RecordStream, error) {
	id, hasRole := IdentityFromContext(ctx)
	if !hasRole {
		logStatement(stmt)
		rows, err := c.adapter.Query(ctx, stmt.SQL, stmt.Params...)
		if err != nil {
			return nil, c.classify(ctx, err)
		}
		return c.stream(ctx, rows, func(err error) error {
			done(err)
			return nil
		})
	}

	roleSQL, err := c.adapter.RoleStatement(id.Role)
	if err != nil {
		return nil, err
	}
	scope := NewScope(c.adapter, &sql.TxOptions{ReadOnly: true})
	if err := scope.Begin(ctx); err != nil {
		return nil, c.classify(ctx, err)
	}
	if _, err := scope.Exec(ctx, domain.CompiledStatement{SQL: roleSQL}); err != nil {
		scope.Release()
		return nil, c.classify(ctx, err)
	}
	rows, err := scope.Query(ctx, stmt)
	if err != nil {
		scope.Release()
		return nil, c.classify(ctx, err)
	}
	return c.stream(ctx, rows, func(err error) error {
		var commitErr error
		if err != nil {
			scope.Release()
		} else if commitErr = scope.Commit(); commitErr != nil {
			commitErr = c.classify(ctx, commitErr)
		}
		done(errors.Join(err, commitErr))
		return commitErr
	})
}

func (c *Coordinator) stream(ctx context.Context, rows *sql.Rows, onClose func(error) error) (mapper.RecordStream, error) {
	s, err := c.mapper.Stream(rows, onClose)
	if err != nil {
		onClose(err)
		return nil, c.classify(ctx, err)
	}
	return &classifiedStream{RecordStream: s, classify: func(err error) error { return c.classify(ctx, err) }}, nil
}

// Mutate runs stmts in order inside one transaction. It commits when all
// succeed and otherwise rolls back and returns the first error. Records of
// statements without rows are replaced by a summary record.
func (c *Coordinator) Mutate(ctx context.Context, stmts ...domain.CompiledStatement) ([]mapper.Record, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel(errReleased)

	start := time.Now()
	records, err := c.mutate(ctx, stmts)
	c.record(ctx, OperationMutate, len(stmts), start, err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Coordinator) mutate(ctx context.Context, stmts []domain.CompiledStatement) ([]mapper.Record, error) {
	var roleSQL string
	if id, ok := IdentityFromContext(ctx); ok {
		var err error
		if roleSQL, err = c.adapter.RoleStatement(id.Role); err != nil {
			return nil, err
		}
	}

	scope := NewScope(c.adapter, &sql.TxOptions{Isolation: c.opts.Isolation})
	if err := scope.Begin(ctx); err != nil {
		return nil, c.classify(ctx, err)
	}
	defer scope.Release()

	if roleSQL != "" {
		if _, err := scope.Exec(ctx, domain.CompiledStatement{SQL: roleSQL}); err != nil {
			return nil, c.classify(ctx, err)
		}
	}

	records := []mapper.Record{}
	for _, stmt := range stmts {
		if !stmt.Returns {
			result, err := scope.Exec(ctx, stmt)
			if err != nil {
				return nil, c.classify(ctx, err)
			}
			records = append(records, mapper.SummaryRecord(result))
			continue
		}

		rows, err := scope.Query(ctx, stmt)
		if err != nil {
			return nil, c.classify(ctx, err)
		}
		stream, err := c.mapper.Stream(rows, nil)
		if err != nil {
			return nil, c.classify(ctx, err)
		}
		recs, err := mapper.Collect(stream)
		if err != nil {
			return nil, c.classify(ctx, err)
		}
		records = append(records, recs...)
	}

	if err := scope.Commit(); err != nil {
		return nil, c.classify(ctx, err)
	}
	return records, nil
}

// classify maps err onto the error taxonomy. A done context wins over
// whatever the driver reported for the interrupted call.
func (c *Coordinator) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && context.Cause(ctx) != errReleased {
		if errors.Is(err, domain.ErrTimeout) {
			return err
		}
		msg := "operation exceeded its deadline"
		if errors.Is(ctx.Err(), context.Canceled) {
			msg = "canceled"
		}
		return domain.Wrap(domain.ErrTimeout, errors.Join(ctx.Err(), err), msg)
	}
	return c.adapter.ClassifyError(err)
}

func (c *Coordinator) record(ctx context.Context, op string, n int, start time.Time, err error) {
	c.telemetry.RecordOperation(ctx, telemetry.OperationInfo{
		Operation:  op,
		Statements: n,
		Duration:   time.Since(start),
		Success:    err == nil,
	})
	if err == nil {
		return
	}
	info := telemetry.ErrorInfo{Operation: op, Kind: domain.KindBackendError}
	if e, ok := domain.AsError(err); ok {
		info.Kind = e.KindName()
		info.Code = e.Code
	}
	c.telemetry.RecordError(ctx, info)
}

// classifiedStream reports stream errors in the gateway taxonomy.
type classifiedStream struct {
	mapper.RecordStream
	classify func(error) error
}

func (s *classifiedStream) Err() error {
	return s.classify(s.RecordStream.Err())
}

func (s *classifiedStream) Close() error {
	return s.classify(s.RecordStream.Close())
}
