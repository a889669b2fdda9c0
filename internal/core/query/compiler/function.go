package compiler

import (
	"fmt"
	"strings"

	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// CompileFunction compiles a set-returning call with named arguments:
//
//	SELECT * FROM "schema"."fn"("a" := $1, "b" := $2)
//
// Argument names are sorted. Shaping clauses wrap the call the
// same way they wrap a table.
func (c *SQLCompiler) CompileFunction(addr domain.ResourceAddress, args domain.Row, spec domain.OperationSpec) (domain.CompiledStatement, error) {
	if addr.Kind != domain.Function {
		return domain.CompiledStatement{}, domain.Errorf(domain.ErrMalformedQuery, "%s is not a function", addr)
	}
	if !c.caps.NamedArgs {
		return domain.CompiledStatement{}, domain.Errorf(domain.ErrUnsupported, "function calls are not supported by %s", c.dialect)
	}

	names, err := rowColumns(args)
	if err != nil {
		return domain.CompiledStatement{}, err
	}

	argIndex := 1
	bound := make([]interface{}, 0, len(names))
	params := make([]string, len(names))
	for i, name := range names {
		v, err := bindValue(args[name.String()])
		if err != nil {
			return domain.CompiledStatement{}, err
		}
		params[i] = fmt.Sprintf("%s := %s", c.quote(name), c.placeholder(&argIndex))
		bound = append(bound, v)
	}

	call := c.table(addr) + "(" + strings.Join(params, ", ") + ")"
	return c.compileSelectFrom(call, bound, spec, &argIndex)
}
