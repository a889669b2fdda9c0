// Package mapper converts backend rows into ordered records.
package mapper

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueDecoder converts one scanned value into its record representation.
// dbType is the driver's DatabaseTypeName, upper-cased.
type ValueDecoder interface {
	Decode(dbType string, v interface{}) (interface{}, error)
}

// DecoderFunc adapts a function to ValueDecoder.
type DecoderFunc func(dbType string, v interface{}) (interface{}, error)

// Decode calls f.
func (f DecoderFunc) Decode(dbType string, v interface{}) (interface{}, error) {
	return f(dbType, v)
}

// ResultMapper maps database rows to records.
type ResultMapper struct {
	decoder ValueDecoder
}

// NewResultMapper creates a mapper. A nil decoder means DefaultDecoder.
func NewResultMapper(decoder ValueDecoder) *ResultMapper {
	if decoder == nil {
		decoder = DefaultDecoder
	}
	return &ResultMapper{decoder: decoder}
}

// Stream wraps rows in a lazy record stream. onClose, if set, runs once
// after the rows are closed and receives the stream error; its own error
// becomes the stream error when there was none.
func (m *ResultMapper) Stream(rows *sql.Rows, onClose func(error) error) (RecordStream, error) {
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	types := make([]string, len(columns))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			types[i] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}
	return &rowStream{
		rows:    rows,
		columns: columns,
		types:   types,
		decoder: m.decoder,
		onClose: onClose,
	}, nil
}

// SummaryRecord describes a mutation on backends without RETURNING.
func SummaryRecord(result sql.Result) Record {
	rec := Record{Columns: []string{"rows_affected", "last_insert_id"}, Values: []interface{}{nil, nil}}
	if n, err := result.RowsAffected(); err == nil {
		rec.Values[0] = n
	}
	if id, err := result.LastInsertId(); err == nil {
		rec.Values[1] = id
	}
	return rec
}

type valueKind int

const (
	kindText valueKind = iota
	kindInt
	kindFloat
	kindDecimal
	kindBool
	kindJSON
	kindBinary
	kindDate
	kindTimestamp
	kindTime
	kindTimeTZ
)

func classify(dbType string) valueKind {
	if i := strings.IndexByte(dbType, '('); i >= 0 {
		dbType = strings.TrimSpace(dbType[:i])
	}
	dbType = strings.TrimPrefix(dbType, "UNSIGNED ")
	switch dbType {
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "SMALLINT", "BIGINT", "TINYINT", "MEDIUMINT", "SERIAL", "BIGSERIAL", "YEAR":
		return kindInt
	case "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "REAL":
		return kindFloat
	case "NUMERIC", "DECIMAL":
		return kindDecimal
	case "BOOL", "BOOLEAN":
		return kindBool
	case "JSON", "JSONB":
		return kindJSON
	case "BYTEA", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY":
		return kindBinary
	case "DATE":
		return kindDate
	case "TIMESTAMP", "TIMESTAMPTZ", "DATETIME":
		return kindTimestamp
	case "TIME":
		return kindTime
	case "TIMETZ":
		return kindTimeTZ
	}
	return kindText
}

// DefaultDecoder applies the gateway type mapping: integers to int64,
// floats to float64, decimals to json.Number, booleans to bool, dates to
// 2006-01-02, timestamps to RFC 3339, times of day to 15:04:05, JSON to
// json.RawMessage, binary data to []byte and everything else to string.
var DefaultDecoder ValueDecoder = DecoderFunc(decodeDefault)

func decodeDefault(dbType string, v interface{}) (interface{}, error) {
	kind := classify(dbType)

	switch val := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return decodeText(kind, string(val), val)
	case string:
		return decodeText(kind, val, nil)
	case int64:
		if kind == kindBool {
			return val != 0, nil
		}
		return val, nil
	case float64:
		if kind == kindDecimal {
			return json.Number(strconv.FormatFloat(val, 'f', -1, 64)), nil
		}
		return finite(val), nil
	case bool:
		return val, nil
	case time.Time:
		switch kind {
		case kindDate:
			return val.Format("2006-01-02"), nil
		case kindTime:
			return val.Format("15:04:05.999999999"), nil
		case kindTimeTZ:
			return val.Format("15:04:05.999999999Z07:00"), nil
		}
		return val.Format(time.RFC3339Nano), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}

func decodeText(kind valueKind, s string, raw []byte) (interface{}, error) {
	switch kind {
	case kindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			if u, uerr := strconv.ParseUint(s, 10, 64); uerr == nil {
				return json.Number(strconv.FormatUint(u, 10)), nil
			}
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", s)
		}
		return finite(f), nil
	case kindDecimal:
		if !isJSONNumber(s) {
			// NaN and Infinity stay text
			return s, nil
		}
		return json.Number(s), nil
	case kindBool:
		b, err := parseBool(s)
		if err != nil {
			return nil, err
		}
		return b, nil
	case kindJSON:
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("invalid JSON value")
		}
		return json.RawMessage(s), nil
	case kindBinary:
		if raw != nil {
			return append([]byte(nil), raw...), nil
		}
		return []byte(s), nil
	}
	return s, nil
}

func isJSONNumber(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	return json.Valid([]byte(s))
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "t", "true", "1", "y", "yes", "on":
		return true, nil
	case "f", "false", "0", "n", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// finite maps NaN and infinities, which JSON cannot carry, to strings.
func finite(f float64) interface{} {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}
