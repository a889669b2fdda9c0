package parser

import (
	"errors"
	"strings"

	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// parseFilter parses one <column>=<op>.<operand> entry.
func parseFilter(key, value string) (domain.FilterClause, error) {
	col, err := domain.ParseIdentifier(key)
	if err != nil {
		return domain.FilterClause{}, err
	}

	token, operand, ok := strings.Cut(value, ".")
	if !ok {
		return domain.FilterClause{}, malformed("filter on %s must have the form <op>.<value>", key)
	}
	op, known := domain.Operators[token]
	if !known {
		return domain.FilterClause{}, malformed("unknown operator %q on %s", token, key)
	}
	if operand == "" {
		return domain.FilterClause{}, malformed("empty operand for %s on %s", token, key)
	}

	clause := domain.FilterClause{Column: col, Operator: op}
	switch op {
	case domain.IsNull:
		if operand != "true" && operand != "false" {
			return domain.FilterClause{}, malformed("is_null on %s expects true or false, got %q", key, operand)
		}
		clause.Operand = domain.ValueOperand(operand)
	case domain.In:
		items, err := parseInList(operand)
		if err != nil {
			return domain.FilterClause{}, malformed("in on %s: %v", key, err)
		}
		clause.Operand = domain.ListOperand(items)
	default:
		clause.Operand = domain.ValueOperand(operand)
	}
	return clause, nil
}

func parseInList(operand string) ([]string, error) {
	if !strings.HasPrefix(operand, "(") {
		return nil, errors.New("list must start with (")
	}
	if !strings.HasSuffix(operand, ")") {
		return nil, errors.New("unterminated list")
	}
	list, err := inParser.ParseString("", operand)
	if err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, errors.New("list must not be empty")
	}
	items := make([]string, len(list.Items))
	for i, item := range list.Items {
		items[i] = item.value()
	}
	return items, nil
}
