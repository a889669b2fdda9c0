package compiler

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// bindValue converts a decoded JSON value into a driver argument. Integers
// become int64; other numbers keep their exact text so decimal columns see
// no rounding. Objects and arrays are bound as JSON text.
func bindValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil, bool, string, int64, float64:
		return val, nil
	case int:
		return int64(val), nil
	case json.Number:
		if n, err := strconv.ParseInt(val.String(), 10, 64); err == nil {
			return n, nil
		}
		return val.String(), nil
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, domain.Wrap(domain.ErrSchemaMismatch, err, "value cannot be encoded as JSON")
		}
		return string(b), nil
	default:
		return nil, domain.Errorf(domain.ErrSchemaMismatch, "unsupported value type %T", v)
	}
}

// rowColumns validates and sorts the keys of row.
func rowColumns(row domain.Row) ([]domain.Identifier, error) {
	keys := row.Keys()
	cols := make([]domain.Identifier, len(keys))
	for i, k := range keys {
		id, err := domain.ParseIdentifier(k)
		if err != nil {
			return nil, domain.Wrap(domain.ErrSchemaMismatch, err, fmt.Sprintf("payload key %q is not a valid identifier", k))
		}
		cols[i] = id
	}
	return cols, nil
}

func sameColumns(a, b []domain.Identifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
