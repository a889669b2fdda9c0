// Package parser turns query strings into operation specs.
//
// Recognized keys:
//
//	limit=N            caps result rows
//	offset=N           skips the first N rows
//	columns=a,b        projected columns (default *)
//	distinct=true      deduplicates rows
//	distinct_on=a,b    DISTINCT ON the columns; implies distinct
//	sort=a,-b          ascending a, descending b; .nullsfirst/.nullslast per key
//	<col>=<op>.<val>   filter; repeated keys AND-combine
//
// Parsing is pure and never touches the backend.
package parser

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// Reserved query keys.
const (
	KeyLimit      = "limit"
	KeyOffset     = "offset"
	KeyColumns    = "columns"
	KeyDistinct   = "distinct"
	KeyDistinctOn = "distinct_on"
	KeySort       = "sort"
)

// IsReserved reports whether key shapes results rather than naming a column.
func IsReserved(key string) bool {
	switch key {
	case KeyLimit, KeyOffset, KeyColumns, KeyDistinct, KeyDistinctOn, KeySort:
		return true
	}
	return false
}

type pair struct {
	key   string
	value string
}

// Parser parses query strings. It is stateless and safe for concurrent use.
type Parser struct {
	ignored map[string]bool
}

// New creates a parser that skips the given keys. Transport-level keys such
// as allow_unfiltered are passed here.
func New(ignored ...string) *Parser {
	p := &Parser{ignored: make(map[string]bool, len(ignored))}
	for _, key := range ignored {
		p.ignored[key] = true
	}
	return p
}

var defaultParser = New()

// Parse parses a raw (still escaped) query string.
func Parse(rawQuery string) (domain.OperationSpec, error) {
	return defaultParser.Parse(rawQuery)
}

// ParseValues parses already-decoded values.
func ParseValues(values url.Values) (domain.OperationSpec, error) {
	return defaultParser.ParseValues(values)
}

// ParseFunctionArgs splits a query string into named function arguments
// and result-shaping options.
func ParseFunctionArgs(rawQuery string) (domain.Row, domain.OperationSpec, error) {
	return defaultParser.ParseFunctionArgs(rawQuery)
}

// Parse parses a raw (still escaped) query string. Filter order follows the
// query string.
func (p *Parser) Parse(rawQuery string) (domain.OperationSpec, error) {
	pairs, err := splitQuery(rawQuery)
	if err != nil {
		return domain.OperationSpec{}, err
	}
	spec, _, err := p.build(pairs, false)
	return spec, err
}

// ParseValues parses already-decoded values. Keys are visited in sorted
// order; values of one key keep their order.
func (p *Parser) ParseValues(values url.Values) (domain.OperationSpec, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []pair
	for _, k := range keys {
		for _, v := range values[k] {
			pairs = append(pairs, pair{key: k, value: v})
		}
	}
	spec, _, err := p.build(pairs, false)
	return spec, err
}

// ParseFunctionArgs treats every non-reserved key as a named argument whose
// value is passed verbatim. Reserved keys shape the function's result set.
func (p *Parser) ParseFunctionArgs(rawQuery string) (domain.Row, domain.OperationSpec, error) {
	pairs, err := splitQuery(rawQuery)
	if err != nil {
		return nil, domain.OperationSpec{}, err
	}
	spec, args, err := p.build(pairs, true)
	if err != nil {
		return nil, domain.OperationSpec{}, err
	}
	return args, spec, nil
}

func (p *Parser) build(pairs []pair, argsMode bool) (domain.OperationSpec, domain.Row, error) {
	var parts domain.SpecParts
	args := domain.Row{}
	seen := make(map[string]bool)

	for _, kv := range pairs {
		if p.ignored[kv.key] {
			continue
		}
		if IsReserved(kv.key) {
			if seen[kv.key] {
				return domain.OperationSpec{}, nil, malformed("%s given more than once", kv.key)
			}
			seen[kv.key] = true
			if err := applyReserved(&parts, kv); err != nil {
				return domain.OperationSpec{}, nil, err
			}
			continue
		}

		if argsMode {
			if _, dup := args[kv.key]; dup {
				return domain.OperationSpec{}, nil, malformed("argument %s given more than once", kv.key)
			}
			args[kv.key] = kv.value
			continue
		}

		clause, err := parseFilter(kv.key, kv.value)
		if err != nil {
			return domain.OperationSpec{}, nil, err
		}
		parts.Filters = append(parts.Filters, clause)
	}

	return domain.NewOperationSpec(parts), args, nil
}

func applyReserved(parts *domain.SpecParts, kv pair) error {
	switch kv.key {
	case KeyLimit:
		n, err := parseUint(kv)
		if err != nil {
			return err
		}
		parts.Limit = &n
	case KeyOffset:
		n, err := parseUint(kv)
		if err != nil {
			return err
		}
		parts.Offset = &n
	case KeyColumns:
		cols, err := parseColumnList(kv)
		if err != nil {
			return err
		}
		parts.Columns = cols
	case KeyDistinctOn:
		cols, err := parseColumnList(kv)
		if err != nil {
			return err
		}
		parts.DistinctOn = cols
	case KeyDistinct:
		b, err := parseBool(kv)
		if err != nil {
			return err
		}
		parts.Distinct = b
	case KeySort:
		keys, err := parseSort(kv.value)
		if err != nil {
			return err
		}
		parts.Sort = keys
	}
	return nil
}

func parseUint(kv pair) (uint64, error) {
	n, err := strconv.ParseUint(kv.value, 10, 64)
	if err != nil {
		return 0, malformed("%s must be an unsigned integer, got %q", kv.key, kv.value)
	}
	return n, nil
}

func parseBool(kv pair) (bool, error) {
	switch kv.value {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, malformed("%s must be true or false, got %q", kv.key, kv.value)
}

func parseColumnList(kv pair) ([]domain.Identifier, error) {
	if kv.value == "" {
		return nil, malformed("%s must not be empty", kv.key)
	}
	raw := strings.Split(kv.value, ",")
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		if seen[r] {
			return nil, malformed("%s lists %q more than once", kv.key, r)
		}
		seen[r] = true
	}
	return domain.ParseIdentifiers(raw)
}

func parseSort(value string) ([]domain.SortClause, error) {
	if value == "" {
		return nil, malformed("sort must not be empty")
	}
	list, err := sortParser.ParseString("", value)
	if err != nil {
		return nil, malformed("invalid sort %q: %v", value, err)
	}

	clauses := make([]domain.SortClause, 0, len(list.Keys))
	for _, key := range list.Keys {
		col, err := domain.ParseIdentifier(key.Column)
		if err != nil {
			return nil, err
		}
		clause := domain.SortClause{Column: col}
		if key.Desc {
			clause.Direction = domain.Desc
		}

		var sawDirection, sawNulls bool
		for _, m := range key.Modifiers {
			switch m {
			case "asc", "desc":
				if sawDirection || key.Desc {
					return nil, malformed("sort key %s has conflicting directions", key.Column)
				}
				sawDirection = true
				if m == "desc" {
					clause.Direction = domain.Desc
				}
			case "nullsfirst", "nullslast":
				if sawNulls {
					return nil, malformed("sort key %s has conflicting nulls ordering", key.Column)
				}
				sawNulls = true
				clause.Nulls = domain.NullsFirst
				if m == "nullslast" {
					clause.Nulls = domain.NullsLast
				}
			default:
				return nil, malformed("unknown sort modifier %q", m)
			}
		}
		clauses = append(clauses, clause)
	}
	return clauses, nil
}

// splitQuery decodes a raw query string into ordered pairs.
func splitQuery(rawQuery string) ([]pair, error) {
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	if rawQuery == "" {
		return nil, nil
	}

	parts := strings.Split(rawQuery, "&")
	pairs := make([]pair, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, malformed("invalid escape in key %q", rawKey)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, malformed("invalid escape in value of %s", key)
		}
		pairs = append(pairs, pair{key: key, value: value})
	}
	return pairs, nil
}

func malformed(format string, args ...interface{}) error {
	return domain.Errorf(domain.ErrMalformedQuery, format, args...)
}
