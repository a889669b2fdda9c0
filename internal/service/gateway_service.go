// Package service implements application services.
package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hexgate/hexgate/internal/core/query/compiler"
	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/query/executor"
	"github.com/hexgate/hexgate/internal/core/query/mapper"
	"github.com/hexgate/hexgate/internal/core/query/parser"
	"github.com/hexgate/hexgate/internal/core/resource"
)

// KeyAllowUnfiltered is the query key that opts into unfiltered update and
// delete. It never reaches the parser.
const KeyAllowUnfiltered = "allow_unfiltered"

// Operation is what a request does to its resource.
type Operation int

const (
	// OpRead selects rows from a table.
	OpRead Operation = iota
	// OpCreate inserts rows.
	OpCreate
	// OpUpdate updates filtered rows.
	OpUpdate
	// OpDelete deletes filtered rows.
	OpDelete
	// OpCall calls a function with query-string arguments.
	OpCall
	// OpCallWithBody calls a function with JSON body arguments.
	OpCallWithBody
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpCall, OpCallWithBody:
		return "call"
	}
	return "unknown"
}

// Request is one gateway call, already split from its transport.
type Request struct {
	Operation Operation
	Schema    string
	Name      string
	RawQuery  string
	Body      []byte
	// AllowUnfiltered is the caller's explicit opt-in, already checked
	// against configuration.
	AllowUnfiltered bool
}

// Plan is a compiled request.
type Plan struct {
	Address    domain.ResourceAddress
	Operation  Operation
	Statements []domain.CompiledStatement
}

// Transactional reports whether the plan runs inside Mutate. Only table
// reads stream outside a transaction; a function may write, so every call
// commits or rolls back like a mutation.
func (p Plan) Transactional() bool {
	return p.Operation != OpRead
}

// Result carries either a lazy stream (reads) or materialized records
// (writes and function calls).
type Result struct {
	Stream  mapper.RecordStream
	Records []mapper.Record
}

// GatewayService resolves, parses, compiles and executes requests.
type GatewayService struct {
	resolver    *resource.Resolver
	parser      *parser.Parser
	compiler    *compiler.SQLCompiler
	coordinator *executor.Coordinator
}

// NewGatewayService creates a gateway service. A nil coordinator gives a
// planning-only service.
func NewGatewayService(resolver *resource.Resolver, c *compiler.SQLCompiler, coordinator *executor.Coordinator) *GatewayService {
	return &GatewayService{
		resolver:    resolver,
		parser:      parser.New(KeyAllowUnfiltered),
		compiler:    c,
		coordinator: coordinator,
	}
}

// Compiler returns the statement compiler.
func (s *GatewayService) Compiler() *compiler.SQLCompiler {
	return s.compiler
}

// Plan compiles req without touching the backend.
func (s *GatewayService) Plan(req Request) (Plan, error) {
	kind := domain.Table
	if req.Operation == OpCall || req.Operation == OpCallWithBody {
		kind = domain.Function
	}
	addr, err := s.resolver.Resolve(req.Schema, req.Name, kind)
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{Address: addr, Operation: req.Operation}

	switch req.Operation {
	case OpCall:
		args, spec, err := s.parser.ParseFunctionArgs(req.RawQuery)
		if err != nil {
			return Plan{}, err
		}
		stmt, err := s.compiler.CompileFunction(addr, args, spec)
		if err != nil {
			return Plan{}, err
		}
		plan.Statements = []domain.CompiledStatement{stmt}
		return plan, nil

	case OpCallWithBody:
		spec, err := s.parser.Parse(req.RawQuery)
		if err != nil {
			return Plan{}, err
		}
		args, err := functionArgs(req.Body)
		if err != nil {
			return Plan{}, err
		}
		stmt, err := s.compiler.CompileFunction(addr, args, spec)
		if err != nil {
			return Plan{}, err
		}
		plan.Statements = []domain.CompiledStatement{stmt}
		return plan, nil
	}

	spec, err := s.parser.Parse(req.RawQuery)
	if err != nil {
		return Plan{}, err
	}
	opts := domain.MutationOptions{AllowUnfiltered: req.AllowUnfiltered}

	var stmt domain.CompiledStatement
	switch req.Operation {
	case OpRead:
		stmt, err = s.compiler.CompileSelect(addr, spec)
	case OpCreate:
		var payload domain.MutationPayload
		if payload, err = domain.DecodePayload(bytes.NewReader(req.Body)); err != nil {
			return Plan{}, err
		}
		plan.Statements, err = s.compiler.CompileInsert(addr, payload)
		if err != nil {
			return Plan{}, err
		}
		return plan, nil
	case OpUpdate:
		// the filter rule is checked before the body is read
		if !spec.HasFilters() && !opts.AllowUnfiltered {
			return Plan{}, domain.Errorf(domain.ErrMissingFilter, "update of %s requires at least one filter", addr)
		}
		var payload domain.MutationPayload
		if payload, err = domain.DecodePayload(bytes.NewReader(req.Body)); err != nil {
			return Plan{}, err
		}
		stmt, err = s.compiler.CompileUpdate(addr, spec, payload, opts)
	case OpDelete:
		stmt, err = s.compiler.CompileDelete(addr, spec, opts)
	default:
		return Plan{}, fmt.Errorf("unknown operation %d", req.Operation)
	}
	if err != nil {
		return Plan{}, err
	}
	plan.Statements = []domain.CompiledStatement{stmt}
	return plan, nil
}

// functionArgs decodes a body of named arguments. An empty body means no
// arguments.
func functionArgs(body []byte) (domain.Row, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.Row{}, nil
	}
	payload, err := domain.DecodePayload(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if payload.Bulk {
		return nil, domain.Errorf(domain.ErrSchemaMismatch, "function arguments must be a single JSON object")
	}
	return payload.Rows[0], nil
}

// Execute plans and runs req. Read results stream and must be closed by
// the caller.
func (s *GatewayService) Execute(ctx context.Context, req Request) (*Result, error) {
	if s.coordinator == nil {
		return nil, fmt.Errorf("gateway service has no backend")
	}
	plan, err := s.Plan(req)
	if err != nil {
		return nil, err
	}

	if !plan.Transactional() {
		stream, err := s.coordinator.Query(ctx, plan.Statements[0])
		if err != nil {
			return nil, err
		}
		return &Result{Stream: stream}, nil
	}

	records, err := s.coordinator.Mutate(ctx, plan.Statements...)
	if err != nil {
		return nil, err
	}
	return &Result{Records: records}, nil
}
