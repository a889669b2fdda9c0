package postgres

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/lib/pq"

	"github.com/hexgate/hexgate/internal/core/query/mapper"
)

// DecodeValue extends mapper.DefaultDecoder with one-dimensional native
// arrays, whose type names start with an underscore (_INT4, _TEXT, ...).
func DecodeValue(dbType string, v interface{}) (interface{}, error) {
	if v == nil || !strings.HasPrefix(dbType, "_") {
		return mapper.DefaultDecoder.Decode(dbType, v)
	}

	var src []byte
	switch val := v.(type) {
	case []byte:
		src = val
	case string:
		src = []byte(val)
	default:
		return mapper.DefaultDecoder.Decode(dbType, v)
	}

	out, err := decodeArray(strings.TrimPrefix(dbType, "_"), src)
	if err != nil {
		// multi-dimensional or exotic arrays keep their text form
		return string(src), nil
	}
	return out, nil
}

func decodeArray(elem string, src []byte) ([]interface{}, error) {
	switch elem {
	case "INT2", "INT4", "INT8", "OID":
		var a []sql.NullInt64
		if err := (pq.GenericArray{A: &a}).Scan(src); err != nil {
			return nil, err
		}
		out := make([]interface{}, len(a))
		for i, n := range a {
			if n.Valid {
				out[i] = n.Int64
			}
		}
		return out, nil
	case "FLOAT4", "FLOAT8":
		var a []sql.NullFloat64
		if err := (pq.GenericArray{A: &a}).Scan(src); err != nil {
			return nil, err
		}
		out := make([]interface{}, len(a))
		for i, f := range a {
			if f.Valid {
				out[i] = f.Float64
			}
		}
		return out, nil
	case "BOOL":
		var a []sql.NullBool
		if err := (pq.GenericArray{A: &a}).Scan(src); err != nil {
			return nil, err
		}
		out := make([]interface{}, len(a))
		for i, b := range a {
			if b.Valid {
				out[i] = b.Bool
			}
		}
		return out, nil
	}

	var a []sql.NullString
	if err := (pq.GenericArray{A: &a}).Scan(src); err != nil {
		return nil, err
	}
	out := make([]interface{}, len(a))
	for i, s := range a {
		if !s.Valid {
			continue
		}
		switch elem {
		case "NUMERIC":
			out[i] = json.Number(s.String)
		case "JSON", "JSONB":
			out[i] = json.RawMessage(s.String)
		default:
			out[i] = s.String
		}
	}
	return out, nil
}
